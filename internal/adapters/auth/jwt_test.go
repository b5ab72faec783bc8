package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	v := NewJWTVerifier("s3cret")

	token, err := v.Sign("user-42", time.Minute)
	req.NoError(err)

	userID, err := v.Verify(context.Background(), token)
	req.NoError(err)
	req.Equal(domain.UserID("user-42"), userID)
}

func TestJWTVerifier_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	v := NewJWTVerifier("s3cret")

	token, err := v.Sign("user-42", -time.Minute)
	req.NoError(err)

	_, err = v.Verify(context.Background(), token)
	req.ErrorIs(err, jwt.ErrTokenExpired)
}

func TestJWTVerifier_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := NewJWTVerifier("one").Sign("user-42", time.Minute)
	req.NoError(err)

	_, err = NewJWTVerifier("other").Verify(context.Background(), token)
	req.ErrorIs(err, jwt.ErrSignatureInvalid)
}

func TestJWTVerifier_RejectsTokenWithoutUserID(t *testing.T) {
	req := require.New(t)
	v := NewJWTVerifier("s3cret")

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	token, err := raw.SignedString([]byte("s3cret"))
	req.NoError(err)

	_, err = v.Verify(context.Background(), token)
	req.Error(err)
}

func TestJWTVerifier_RejectsUnexpectedAlgorithm(t *testing.T) {
	req := require.New(t)
	v := NewJWTVerifier("s3cret")

	raw := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{ID: "user-42"})
	token, err := raw.SignedString([]byte("s3cret"))
	req.NoError(err)

	_, err = v.Verify(context.Background(), token)
	req.Error(err)
}

func TestJWTVerifier_RejectsGarbage(t *testing.T) {
	_, err := NewJWTVerifier("s3cret").Verify(context.Background(), "not.a.token")
	require.Error(t, err)
}

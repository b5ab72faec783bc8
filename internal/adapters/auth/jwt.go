// Package auth implements the Auth port with HS256 JWTs. The token payload
// carries the user id under "id", matching what the account service signs.
package auth

import (
	"context"
	"time"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (domain.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return "", jwt.ErrSignatureInvalid
	}
	return domain.UserID(claims.ID), nil
}

// Sign issues a token for the given user. The server only verifies tokens;
// this is for tests and local tooling.
func (v *JWTVerifier) Sign(userID domain.UserID, ttl time.Duration) (string, error) {
	claims := &Claims{
		ID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

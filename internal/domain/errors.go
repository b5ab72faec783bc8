package domain

import "errors"

// Error texts double as the wire `error` payloads, so they are worded the way
// the client already displays them.
var (
	ErrTokenMissing  = errors.New("Token not present")
	ErrInvalidToken  = errors.New("Invalid token")
	ErrNotRoomMember = errors.New("Not a member of this room")

	ErrSelfCall      = errors.New("Cannot call yourself")
	ErrUserOffline   = errors.New("User is not online")
	ErrCallerOffline = errors.New("Caller is not online")
	ErrCalleeOffline = errors.New("Callee is not online")
	ErrNoActiveCall  = errors.New("No active call")

	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
	ErrMessageEmpty    = errors.New("message content cannot be empty")
	ErrMessageTooLong  = errors.New("message content too long")
)

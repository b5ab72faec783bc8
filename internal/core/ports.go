// Package core owns the shared realtime state: who is connected, who is
// present in which room, who is typing, and which calls are in flight.
// It never touches transports or external services directly.
package core

import (
	"context"

	"github.com/dkeye/Chatter/internal/domain"
)

// Frame is a marshaled outbound event.
type Frame []byte

// SignalConn abstracts one live transport session.
// Owned by the adapter; the adapter must Close() it.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}

// Auth verifies connect-time credentials and resolves the user identity.
type Auth interface {
	Verify(ctx context.Context, token string) (domain.UserID, error)
}

// RoomMembership answers whether a user belongs to a room's persisted roster.
type RoomMembership interface {
	IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
}

// MessageStore persists messages and pages through history. Create returns the
// canonical message with the author fields joined in.
type MessageStore interface {
	Create(ctx context.Context, roomID domain.RoomID, userID domain.UserID, content string) (domain.Message, error)
	History(ctx context.Context, roomID domain.RoomID, limit int, cursor string) ([]domain.Message, string, error)
}

// UserDirectory resolves a user id to its display fields.
type UserDirectory interface {
	Lookup(ctx context.Context, userID domain.UserID) (domain.User, error)
}

package core

import (
	"sync"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/google/uuid"
)

// ConnHandle is one live transport session for one authenticated user.
// It remembers which rooms it has joined so the disconnect cascade does not
// need a reverse scan over every room.
type ConnHandle struct {
	ID     string
	UserID domain.UserID

	conn SignalConn

	mu    sync.Mutex
	rooms map[domain.RoomID]struct{}
}

func NewConnHandle(userID domain.UserID, conn SignalConn) *ConnHandle {
	return &ConnHandle{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		rooms:  make(map[domain.RoomID]struct{}),
	}
}

func (h *ConnHandle) Send(f Frame) error { return h.conn.TrySend(f) }

func (h *ConnHandle) Close() { h.conn.Close() }

func (h *ConnHandle) JoinedRoom(roomID domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms[roomID] = struct{}{}
}

func (h *ConnHandle) LeftRoom(roomID domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

// Rooms returns a snapshot of the rooms this handle has joined.
func (h *ConnHandle) Rooms() []domain.RoomID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.RoomID, 0, len(h.rooms))
	for id := range h.rooms {
		out = append(out, id)
	}
	return out
}

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/google/uuid"
)

var ErrUnknownUser = errors.New("unknown user")

// MemoryDirectory is an in-process UserDirectory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[domain.UserID]domain.User
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[domain.UserID]domain.User)}
}

func (d *MemoryDirectory) Put(user domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *MemoryDirectory) Lookup(_ context.Context, userID domain.UserID) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	if !ok {
		return domain.User{}, ErrUnknownUser
	}
	return user, nil
}

// MemoryMembership is an in-process RoomMembership roster.
type MemoryMembership struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.UserID]struct{}
}

func NewMemoryMembership() *MemoryMembership {
	return &MemoryMembership{rooms: make(map[domain.RoomID]map[domain.UserID]struct{})}
}

func (m *MemoryMembership) Grant(roomID domain.RoomID, userID domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[domain.UserID]struct{})
	}
	m.rooms[roomID][userID] = struct{}{}
}

func (m *MemoryMembership) Revoke(roomID domain.RoomID, userID domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms[roomID], userID)
}

func (m *MemoryMembership) IsMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomID][userID]
	return ok, nil
}

// MemoryStore keeps messages per room, oldest first.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[domain.RoomID][]domain.Message
	users    *MemoryDirectory
}

func NewMemoryStore(users *MemoryDirectory) *MemoryStore {
	return &MemoryStore{
		messages: make(map[domain.RoomID][]domain.Message),
		users:    users,
	}
}

func (s *MemoryStore) Create(ctx context.Context, roomID domain.RoomID, userID domain.UserID, content string) (domain.Message, error) {
	author := domain.User{ID: userID}
	if s.users != nil {
		if u, err := s.users.Lookup(ctx, userID); err == nil {
			author = u
		}
	}
	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		RoomID:    roomID,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

// History pages newest-first; the cursor is the message id of the last entry
// of the previous page.
func (s *MemoryStore) History(_ context.Context, roomID domain.RoomID, limit int, cursor string) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[roomID]

	start := len(all) - 1
	if cursor != "" {
		for i := len(all) - 1; i >= 0; i-- {
			if string(all[i].ID) == cursor {
				start = i - 1
				break
			}
		}
	}

	var out []domain.Message
	for i := start; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	next := ""
	if len(out) == limit && start-limit >= 0 {
		next = string(out[len(out)-1].ID)
	}
	return out, next, nil
}

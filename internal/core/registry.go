package core

import (
	"sync"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Registry maps a user to its open connections, in connection order.
// A user key exists iff its list is non-empty; absence is the canonical
// "offline" state.
type Registry struct {
	mu    sync.RWMutex
	users map[domain.UserID][]*ConnHandle
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[domain.UserID][]*ConnHandle)}
}

// Register appends the handle and reports whether it is the user's first
// connection. The append and the check happen under one lock so two
// concurrent first-connects cannot both observe "first".
func (r *Registry) Register(h *ConnHandle) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[h.UserID] = append(r.users[h.UserID], h)
	first = len(r.users[h.UserID]) == 1
	log.Debug().Str("module", "core.registry").Str("user", string(h.UserID)).Str("conn", h.ID).Bool("first", first).Msg("registered")
	return first
}

// Deregister removes the handle and reports whether the user went offline.
// Unknown handles and absent users are a no-op.
func (r *Registry) Deregister(h *ConnHandle) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles, ok := r.users[h.UserID]
	if !ok {
		return false
	}
	kept := handles[:0]
	for _, c := range handles {
		if c.ID != h.ID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(handles) {
		return false
	}
	if len(kept) == 0 {
		delete(r.users, h.UserID)
		log.Debug().Str("module", "core.registry").Str("user", string(h.UserID)).Msg("user offline")
		return true
	}
	r.users[h.UserID] = kept
	return false
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

func (r *Registry) OnlineUserIDs() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.users)
}

// HandlesFor returns a copy of the user's connection list, oldest first.
func (r *Registry) HandlesFor(userID domain.UserID) []*ConnHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := r.users[userID]
	out := make([]*ConnHandle, len(handles))
	copy(out, handles)
	return out
}

// Primary returns the user's oldest connection. Call signaling is delivered
// only there, never fanned out to every device.
func (r *Registry) Primary(userID domain.UserID) (*ConnHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := r.users[userID]
	if len(handles) == 0 {
		return nil, false
	}
	return handles[0], true
}

// All returns every open connection across all users.
func (r *Registry) All() []*ConnHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ConnHandle, 0, len(r.users))
	for _, handles := range r.users {
		out = append(out, handles...)
	}
	return out
}

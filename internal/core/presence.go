package core

import (
	"sync"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Presence tracks which users are live in which room's session, independent
// of the persisted membership roster. Empty rooms are pruned so an entry
// exists iff someone is present.
type Presence struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.UserID]struct{}
}

func NewPresence() *Presence {
	return &Presence{rooms: make(map[domain.RoomID]map[domain.UserID]struct{})}
}

// Add marks the user present and returns the resulting member snapshot,
// including the user itself.
func (p *Presence) Add(roomID domain.RoomID, userID domain.UserID) []domain.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.rooms[roomID]
	if !ok {
		set = make(map[domain.UserID]struct{})
		p.rooms[roomID] = set
	}
	set[userID] = struct{}{}
	log.Debug().Str("module", "core.presence").Str("room", string(roomID)).Str("user", string(userID)).Int("count", len(set)).Msg("present")
	return lo.Keys(set)
}

// Remove reports whether the user was actually present. Removing the last
// member deletes the room entry.
func (p *Presence) Remove(roomID domain.RoomID, userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.rooms[roomID]
	if !ok {
		return false
	}
	if _, present := set[userID]; !present {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(p.rooms, roomID)
	}
	return true
}

func (p *Presence) Members(roomID domain.RoomID) []domain.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Keys(p.rooms[roomID])
}

func (p *Presence) Contains(roomID domain.RoomID, userID domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rooms[roomID][userID]
	return ok
}

package core

import (
	"sync"
	"time"

	"github.com/dkeye/Chatter/internal/domain"
)

type typingKey struct {
	Room domain.RoomID
	User domain.UserID
}

// TypingTracker holds per-(room,user) debounce timers. Clients are expected to
// send an explicit typing_stop after 2s of inactivity; the server-held timer
// only covers the case where that signal is lost, firing onExpire once and
// dropping the entry.
type TypingTracker struct {
	ttl      time.Duration
	onExpire func(roomID domain.RoomID, userID domain.UserID)

	mu     sync.Mutex
	active map[typingKey]*time.Timer
}

func NewTypingTracker(ttl time.Duration, onExpire func(domain.RoomID, domain.UserID)) *TypingTracker {
	return &TypingTracker{
		ttl:      ttl,
		onExpire: onExpire,
		active:   make(map[typingKey]*time.Timer),
	}
}

// Touch renews the user's typing deadline, creating the entry on first use.
// With a non-positive ttl the entry is tracked without a timer, so only an
// explicit Stop clears it.
func (t *TypingTracker) Touch(roomID domain.RoomID, userID domain.UserID) {
	key := typingKey{Room: roomID, User: userID}
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.active[key]; ok {
		if timer != nil {
			timer.Reset(t.ttl)
		}
		return
	}
	if t.ttl > 0 {
		t.active[key] = time.AfterFunc(t.ttl, func() { t.expire(key) })
	} else {
		t.active[key] = nil
	}
}

// Stop cancels the deadline and reports whether the user was marked typing.
func (t *TypingTracker) Stop(roomID domain.RoomID, userID domain.UserID) bool {
	key := typingKey{Room: roomID, User: userID}
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.active[key]
	if !ok {
		return false
	}
	if timer != nil {
		timer.Stop()
	}
	delete(t.active, key)
	return true
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	_, ok := t.active[key]
	if ok {
		delete(t.active, key)
	}
	t.mu.Unlock()
	// The entry may have been stopped explicitly between the timer firing
	// and the lock; only the goroutine that removed it notifies.
	if ok && t.onExpire != nil {
		t.onExpire(key.Room, key.User)
	}
}

package core

import (
	"sync"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

type callEntry struct {
	callee domain.UserID
	state  domain.CallState
}

// CallTable brokers two-party call sessions, keyed by the caller. A caller has
// at most one outbound session; a new request replaces any previous one. The
// callee side is deliberately unguarded: several callers may ring the same
// user at once and the clients sort it out.
type CallTable struct {
	mu    sync.Mutex
	calls map[domain.UserID]callEntry
}

func NewCallTable() *CallTable {
	return &CallTable{calls: make(map[domain.UserID]callEntry)}
}

// Request opens a REQUESTED session from caller to callee.
func (c *CallTable) Request(callerID, calleeID domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.calls[callerID]; ok {
		log.Warn().Str("module", "core.calls").Str("caller", string(callerID)).Str("replaced", string(prev.callee)).Msg("outbound call replaced")
	}
	c.calls[callerID] = callEntry{callee: calleeID, state: domain.CallRequested}
}

// Answer resolves the callee's accept/reject. Rejection deletes the session;
// acceptance moves it to ACCEPTED and keeps it for the SDP exchange.
func (c *CallTable) Answer(callerID, calleeID domain.UserID, accept bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.calls[callerID]
	if !ok || entry.callee != calleeID {
		return domain.ErrNoActiveCall
	}
	if !accept {
		delete(c.calls, callerID)
		return nil
	}
	entry.state = domain.CallAccepted
	c.calls[callerID] = entry
	return nil
}

// Offer validates that the caller has a session addressed to target.
func (c *CallTable) Offer(callerID, targetID domain.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.calls[callerID]; !ok || entry.callee != targetID {
		return domain.ErrNoActiveCall
	}
	return nil
}

// AnswerSDP validates the callee's SDP answer and marks the session ESTABLISHED.
func (c *CallTable) AnswerSDP(callerID, calleeID domain.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.calls[callerID]
	if !ok || entry.callee != calleeID {
		return domain.ErrNoActiveCall
	}
	entry.state = domain.CallEstablished
	c.calls[callerID] = entry
	return nil
}

// AllowICE accepts candidates flowing in either direction of a session.
func (c *CallTable) AllowICE(senderID, targetID domain.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.calls[senderID]; ok && entry.callee == targetID {
		return true
	}
	if entry, ok := c.calls[targetID]; ok && entry.callee == senderID {
		return true
	}
	return false
}

// End deletes the session between the two users regardless of direction and
// reports whether one existed.
func (c *CallTable) End(userID, otherID domain.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.calls[userID]; ok && entry.callee == otherID {
		delete(c.calls, userID)
		return true
	}
	if entry, ok := c.calls[otherID]; ok && entry.callee == userID {
		delete(c.calls, otherID)
		return true
	}
	return false
}

// Drop removes the session the user participates in, in either role, and
// returns the remaining party. Used by the disconnect cascade.
func (c *CallTable) Drop(userID domain.UserID) (peer domain.UserID, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, found := c.calls[userID]; found {
		delete(c.calls, userID)
		return entry.callee, true
	}
	for callerID, entry := range c.calls {
		if entry.callee == userID {
			delete(c.calls, callerID)
			return callerID, true
		}
	}
	return "", false
}

// State reports the session keyed by caller, if any.
func (c *CallTable) State(callerID domain.UserID) (calleeID domain.UserID, state domain.CallState, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.calls[callerID]
	if !ok {
		return "", domain.CallNone, false
	}
	return entry.callee, entry.state, true
}

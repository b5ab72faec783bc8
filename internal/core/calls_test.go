package core

import (
	"testing"

	"github.com/dkeye/Chatter/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCallTable_Lifecycle(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	// NONE → REQUESTED
	c.Request("alice", "bob")
	callee, state, ok := c.State("alice")
	req.True(ok)
	req.Equal(domain.UserID("bob"), callee)
	req.Equal(domain.CallRequested, state)

	// REQUESTED → ACCEPTED
	req.NoError(c.Answer("alice", "bob", true))
	_, state, _ = c.State("alice")
	req.Equal(domain.CallAccepted, state)

	// SDP exchange: offer is validated, answer establishes
	req.NoError(c.Offer("alice", "bob"))
	req.NoError(c.AnswerSDP("alice", "bob"))
	_, state, _ = c.State("alice")
	req.Equal(domain.CallEstablished, state)

	// ESTABLISHED → NONE
	req.True(c.End("alice", "bob"))
	_, _, ok = c.State("alice")
	req.False(ok)
	req.False(c.End("alice", "bob"))
}

func TestCallTable_AnswerRequiresMatchingSession(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	req.ErrorIs(c.Answer("alice", "bob", true), domain.ErrNoActiveCall)

	c.Request("alice", "bob")
	req.ErrorIs(c.Answer("alice", "carol", true), domain.ErrNoActiveCall)
	req.ErrorIs(c.Answer("bob", "alice", true), domain.ErrNoActiveCall)
}

func TestCallTable_RejectDeletesSession(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	c.Request("alice", "bob")
	req.NoError(c.Answer("alice", "bob", false))

	_, _, ok := c.State("alice")
	req.False(ok)
	req.ErrorIs(c.Answer("alice", "bob", true), domain.ErrNoActiveCall)
}

func TestCallTable_ICEFlowsBothDirections(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	c.Request("alice", "bob")
	req.True(c.AllowICE("alice", "bob"))
	req.True(c.AllowICE("bob", "alice"))
	req.False(c.AllowICE("alice", "carol"))
	req.False(c.AllowICE("carol", "bob"))
}

func TestCallTable_EndWorksFromEitherSide(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	c.Request("alice", "bob")
	req.True(c.End("bob", "alice"))
	_, _, ok := c.State("alice")
	req.False(ok)
}

func TestCallTable_DropCoversBothRoles(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	// Caller disconnects.
	c.Request("alice", "bob")
	peer, ok := c.Drop("alice")
	req.True(ok)
	req.Equal(domain.UserID("bob"), peer)

	// Callee disconnects.
	c.Request("alice", "bob")
	peer, ok = c.Drop("bob")
	req.True(ok)
	req.Equal(domain.UserID("alice"), peer)

	// Bystander disconnects.
	_, ok = c.Drop("carol")
	req.False(ok)
}

func TestCallTable_NewRequestReplacesPreviousOutbound(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	c.Request("alice", "bob")
	c.Request("alice", "carol")

	callee, state, ok := c.State("alice")
	req.True(ok)
	req.Equal(domain.UserID("carol"), callee)
	req.Equal(domain.CallRequested, state)
	req.ErrorIs(c.Answer("alice", "bob", true), domain.ErrNoActiveCall)
}

// A user can be rung by several callers at once; only the caller side of the
// table is unique. Documented limitation, not a bug.
func TestCallTable_CalleeSideIsUnguarded(t *testing.T) {
	req := require.New(t)
	c := NewCallTable()

	c.Request("alice", "bob")
	c.Request("carol", "bob")

	req.NoError(c.Answer("alice", "bob", true))
	req.NoError(c.Answer("carol", "bob", true))
}

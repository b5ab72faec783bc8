package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chatter/internal/adapters/store"
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(f, &ev))
		out = append(out, ev)
	}
	return out
}

func (c *fakeConn) typed(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

// staticAuth treats the token as the user id, except the literal "bad".
type staticAuth struct{}

func (staticAuth) Verify(_ context.Context, token string) (domain.UserID, error) {
	if token == "bad" {
		return "", errors.New("signature invalid")
	}
	return domain.UserID(token), nil
}

type testEnv struct {
	orch       *Orchestrator
	membership *store.MemoryMembership
}

func newEnv(typingTTL time.Duration) *testEnv {
	directory := store.NewMemoryDirectory()
	directory.Put(domain.User{ID: "alice", Username: "Alice"})
	directory.Put(domain.User{ID: "bob", Username: "Bob"})
	membership := store.NewMemoryMembership()
	return &testEnv{
		orch:       New(staticAuth{}, membership, store.NewMemoryStore(directory), typingTTL),
		membership: membership,
	}
}

func (e *testEnv) connect(t *testing.T, user string) (*core.ConnHandle, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	h, err := e.orch.Connect(context.Background(), user, conn)
	require.NoError(t, err)
	return h, conn
}

func TestConnect_RejectsMissingAndInvalidTokens(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)

	_, err := e.orch.Connect(context.Background(), "", &fakeConn{})
	req.ErrorIs(err, domain.ErrTokenMissing)

	_, err = e.orch.Connect(context.Background(), "bad", &fakeConn{})
	req.ErrorIs(err, domain.ErrInvalidToken)

	req.Empty(e.orch.Registry.OnlineUserIDs())
}

func TestConnect_BroadcastsOnlineExactlyOnce(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)

	_, observer := e.connect(t, "bob")

	// First connection announces the user; the second is silent.
	a1h, a1 := e.connect(t, "alice")
	a2h, _ := e.connect(t, "alice")

	var aliceOnline int
	for _, ev := range observer.typed(t, "user_online") {
		if ev["userId"] == "alice" {
			aliceOnline++
		}
	}
	req.Equal(1, aliceOnline)

	// Snapshot goes to the first connection only.
	req.Len(a1.typed(t, "online_users_list"), 1)
	list := a1.typed(t, "online_users_list")[0]["userIds"].([]any)
	req.ElementsMatch([]any{"alice", "bob"}, list)

	// Intermediate disconnect broadcasts nothing.
	e.orch.Disconnect(a1h)
	req.Empty(observer.typed(t, "user_offline"))

	e.orch.Disconnect(a2h)
	offline := observer.typed(t, "user_offline")
	req.Len(offline, 1)
	req.Equal("alice", offline[0]["userId"])
}

func TestJoinRoom_NonMemberIsRejectedWithoutSideEffects(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)
	h, conn := e.connect(t, "alice")

	err := e.orch.JoinRoom(context.Background(), h, "general")
	req.ErrorIs(err, domain.ErrNotRoomMember)
	req.Empty(e.orch.Presence.Members("general"))
	req.Empty(conn.typed(t, "room_members_online"))
	req.Empty(conn.typed(t, "user_joined"))
}

func TestJoinRoom_SnapshotAndBroadcast(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)
	e.membership.Grant("general", "alice")
	e.membership.Grant("general", "bob")

	ha, ca := e.connect(t, "alice")
	hb, cb := e.connect(t, "bob")

	req.NoError(e.orch.JoinRoom(context.Background(), ha, "general"))

	// The joiner sees itself in the snapshot.
	snap := ca.typed(t, "room_members_online")
	req.Len(snap, 1)
	req.ElementsMatch([]any{"alice"}, snap[0]["members"].([]any))
	req.Len(ca.typed(t, "user_joined"), 1)
	req.Len(ca.typed(t, "room_joined"), 1)

	req.NoError(e.orch.JoinRoom(context.Background(), hb, "general"))

	snap = cb.typed(t, "room_members_online")
	req.Len(snap, 1)
	req.ElementsMatch([]any{"alice", "bob"}, snap[0]["members"].([]any))

	// Alice saw both joins, Bob only its own.
	req.Len(ca.typed(t, "user_joined"), 2)
	req.Len(cb.typed(t, "user_joined"), 1)
}

// The scenario from the design review: A on two devices, B on one.
func TestMessaging_MultiDeviceScenario(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)
	e.membership.Grant("r", "alice")
	e.membership.Grant("r", "bob")

	ha1, ca1 := e.connect(t, "alice")
	ha2, ca2 := e.connect(t, "alice")
	hb, cb := e.connect(t, "bob")

	req.NoError(e.orch.JoinRoom(context.Background(), ha1, "r"))
	req.NoError(e.orch.JoinRoom(context.Background(), hb, "r"))

	req.NoError(e.orch.SendMessage(context.Background(), ha1, "r", "hi"))

	// Every connection of every present user receives it, devices included.
	for _, conn := range []*fakeConn{ca1, ca2, cb} {
		msgs := conn.typed(t, "new_message")
		req.Len(msgs, 1)
		body := msgs[0]["message"].(map[string]any)
		req.Equal("hi", body["content"])
		req.Equal("Alice", body["user"].(map[string]any)["username"])
	}

	// Closing one of A's connections changes nothing.
	e.orch.Disconnect(ha2)
	req.Empty(cb.typed(t, "user_offline"))
	req.ElementsMatch([]domain.UserID{"alice", "bob"}, e.orch.Presence.Members("r"))

	// Closing the last one goes offline and leaves the room.
	e.orch.Disconnect(ha1)
	req.Len(cb.typed(t, "user_offline"), 1)
	req.Len(cb.typed(t, "user_left"), 1)
	req.ElementsMatch([]domain.UserID{"bob"}, e.orch.Presence.Members("r"))
}

func TestSendMessage_RejectsNonMemberBeforePersisting(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)
	e.membership.Grant("r", "bob")

	ha, _ := e.connect(t, "alice")
	hb, cb := e.connect(t, "bob")
	req.NoError(e.orch.JoinRoom(context.Background(), hb, "r"))

	err := e.orch.SendMessage(context.Background(), ha, "r", "hi")
	req.ErrorIs(err, domain.ErrNotRoomMember)
	req.Empty(cb.typed(t, "new_message"))

	req.ErrorIs(e.orch.SendMessage(context.Background(), hb, "r", ""), domain.ErrMessageEmpty)
	req.Empty(cb.typed(t, "new_message"))
}

type failingStore struct{}

func (failingStore) Create(context.Context, domain.RoomID, domain.UserID, string) (domain.Message, error) {
	return domain.Message{}, errors.New("store down")
}

func (failingStore) History(context.Context, domain.RoomID, int, string) ([]domain.Message, string, error) {
	return nil, "", errors.New("store down")
}

func TestSendMessage_NoBroadcastWhenPersistenceFails(t *testing.T) {
	req := require.New(t)
	membership := store.NewMemoryMembership()
	membership.Grant("r", "alice")
	membership.Grant("r", "bob")
	orch := New(staticAuth{}, membership, failingStore{}, 0)

	ha, err := orch.Connect(context.Background(), "alice", &fakeConn{})
	req.NoError(err)
	cb := &fakeConn{}
	hb, err := orch.Connect(context.Background(), "bob", cb)
	req.NoError(err)
	req.NoError(orch.JoinRoom(context.Background(), ha, "r"))
	req.NoError(orch.JoinRoom(context.Background(), hb, "r"))

	req.Error(orch.SendMessage(context.Background(), ha, "r", "hi"))
	req.Empty(cb.typed(t, "new_message"))
}

func TestLeaveRoom_IsIdempotent(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)
	e.membership.Grant("r", "alice")
	e.membership.Grant("r", "bob")

	ha, _ := e.connect(t, "alice")
	hb, cb := e.connect(t, "bob")
	req.NoError(e.orch.JoinRoom(context.Background(), ha, "r"))
	req.NoError(e.orch.JoinRoom(context.Background(), hb, "r"))

	e.orch.LeaveRoom(ha, "r")
	e.orch.LeaveRoom(ha, "r")

	req.Len(cb.typed(t, "user_left"), 1)

	// Leaving a room never joined is quiet too.
	e.orch.LeaveRoom(ha, "elsewhere")
	req.Len(cb.typed(t, "user_left"), 1)
}

func TestTyping_RelayExcludesSenderAndDeduplicatesStop(t *testing.T) {
	req := require.New(t)
	e := newEnv(time.Minute)
	e.membership.Grant("r", "alice")
	e.membership.Grant("r", "bob")

	ha, ca := e.connect(t, "alice")
	hb, cb := e.connect(t, "bob")
	req.NoError(e.orch.JoinRoom(context.Background(), ha, "r"))
	req.NoError(e.orch.JoinRoom(context.Background(), hb, "r"))

	e.orch.StartTyping(ha, "r")
	e.orch.StartTyping(ha, "r")
	req.Len(cb.typed(t, "user_start_typing"), 2)
	req.Empty(ca.typed(t, "user_start_typing"))

	e.orch.StopTyping(ha, "r")
	e.orch.StopTyping(ha, "r")
	req.Len(cb.typed(t, "user_stopped_typing"), 1)
}

func TestTyping_AutoStopWhenSignalIsLost(t *testing.T) {
	req := require.New(t)
	e := newEnv(30 * time.Millisecond)
	e.membership.Grant("r", "alice")
	e.membership.Grant("r", "bob")

	ha, _ := e.connect(t, "alice")
	hb, cb := e.connect(t, "bob")
	req.NoError(e.orch.JoinRoom(context.Background(), ha, "r"))
	req.NoError(e.orch.JoinRoom(context.Background(), hb, "r"))

	e.orch.StartTyping(ha, "r")

	req.Eventually(func() bool {
		return len(cb.typed(t, "user_stopped_typing")) == 1
	}, time.Second, 5*time.Millisecond)

	// The expiry consumed the entry; a late stop adds nothing.
	e.orch.StopTyping(ha, "r")
	req.Len(cb.typed(t, "user_stopped_typing"), 1)
}

func TestCall_FullSignalingSequence(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)

	ha, ca := e.connect(t, "alice")
	hb, cb := e.connect(t, "bob")

	req.NoError(e.orch.CallRequest(ha, "bob"))
	rings := cb.typed(t, "user_request_video_call")
	req.Len(rings, 1)
	req.Equal("alice", rings[0]["callerId"])
	req.Len(ca.typed(t, "video_call_request_sent"), 1)

	req.NoError(e.orch.CallAnswer(hb, "alice", true))
	req.Len(ca.typed(t, "video_call_accepted"), 1)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	req.NoError(e.orch.CallOffer(ha, "bob", offer))
	offers := cb.typed(t, "video_call_offer")
	req.Len(offers, 1)
	req.Equal("v=0", offers[0]["offer"].(map[string]any)["sdp"])

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	req.NoError(e.orch.CallAnswerSDP(hb, "alice", answer))
	req.Len(ca.typed(t, "video_call_answer_sdp"), 1)

	_, state, ok := e.orch.Calls.State("alice")
	req.True(ok)
	req.Equal(domain.CallEstablished, state)

	cand := json.RawMessage(`{"candidate":"candidate:1"}`)
	req.NoError(e.orch.CallICE(ha, "bob", cand))
	req.NoError(e.orch.CallICE(hb, "alice", cand))
	req.Len(cb.typed(t, "video_ice_candidate"), 1)
	req.Len(ca.typed(t, "video_ice_candidate"), 1)

	req.NoError(e.orch.CallEnd(ha, "bob"))
	endedA := ca.typed(t, "video_call_ended")
	endedB := cb.typed(t, "video_call_ended")
	req.Len(endedA, 1)
	req.Len(endedB, 1)
	req.Equal("alice", endedB[0]["endedBy"])

	_, _, ok = e.orch.Calls.State("alice")
	req.False(ok)
	req.ErrorIs(e.orch.CallEnd(ha, "bob"), domain.ErrNoActiveCall)
}

func TestCall_RequestValidation(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)
	ha, _ := e.connect(t, "alice")

	req.ErrorIs(e.orch.CallRequest(ha, "alice"), domain.ErrSelfCall)
	req.ErrorIs(e.orch.CallRequest(ha, "bob"), domain.ErrUserOffline)
}

func TestCall_RejectThenAnswerAgainFails(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)

	ha, ca := e.connect(t, "alice")
	hb, _ := e.connect(t, "bob")

	req.NoError(e.orch.CallRequest(ha, "bob"))
	req.NoError(e.orch.CallAnswer(hb, "alice", false))
	req.Len(ca.typed(t, "video_call_rejected"), 1)

	req.ErrorIs(e.orch.CallAnswer(hb, "alice", false), domain.ErrNoActiveCall)
	req.ErrorIs(e.orch.CallOffer(ha, "bob", json.RawMessage(`{}`)), domain.ErrNoActiveCall)
}

func TestCall_DisconnectMidCallNotifiesSurvivorOnce(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)

	ha, ca := e.connect(t, "alice")
	hb, _ := e.connect(t, "bob")

	// Callee disconnects.
	req.NoError(e.orch.CallRequest(ha, "bob"))
	req.NoError(e.orch.CallAnswer(hb, "alice", true))
	e.orch.Disconnect(hb)

	ended := ca.typed(t, "video_call_ended")
	req.Len(ended, 1)
	req.Equal("bob", ended[0]["endedBy"])
	req.Equal("user_disconnected", ended[0]["reason"])
	_, _, ok := e.orch.Calls.State("alice")
	req.False(ok)

	// Caller disconnects.
	hb2, cb2 := e.connect(t, "bob")
	req.NoError(e.orch.CallRequest(ha, "bob"))
	req.NoError(e.orch.CallAnswer(hb2, "alice", true))
	e.orch.Disconnect(ha)

	ended = cb2.typed(t, "video_call_ended")
	req.Len(ended, 1)
	req.Equal("alice", ended[0]["endedBy"])
	req.Equal("user_disconnected", ended[0]["reason"])
}

func TestCall_SignalingUnicastsToFirstConnection(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)

	ha, _ := e.connect(t, "alice")
	_, cb1 := e.connect(t, "bob")
	_, cb2 := e.connect(t, "bob")

	req.NoError(e.orch.CallRequest(ha, "bob"))

	req.Len(cb1.typed(t, "user_request_video_call"), 1)
	req.Empty(cb2.typed(t, "user_request_video_call"))
}

// Several callers may ring the same callee concurrently; the table only keys
// the caller side. Documented limitation.
func TestCall_MultipleInboundRingsAreAccepted(t *testing.T) {
	req := require.New(t)
	e := newEnv(0)

	ha, _ := e.connect(t, "alice")
	hc, _ := e.connect(t, "carol")
	_, cb := e.connect(t, "bob")

	req.NoError(e.orch.CallRequest(ha, "bob"))
	req.NoError(e.orch.CallRequest(hc, "bob"))

	req.Len(cb.typed(t, "user_request_video_call"), 2)
}

// Package app coordinates the core trackers with the external collaborators.
// Every inbound operation lands here after the transport has parsed it.
package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry   *core.Registry
	Presence   *core.Presence
	Typing     *core.TypingTracker
	Calls      *core.CallTable
	Auth       core.Auth
	Membership core.RoomMembership
	Store      core.MessageStore
}

func New(auth core.Auth, membership core.RoomMembership, store core.MessageStore, typingTTL time.Duration) *Orchestrator {
	o := &Orchestrator{
		Registry:   core.NewRegistry(),
		Presence:   core.NewPresence(),
		Calls:      core.NewCallTable(),
		Auth:       auth,
		Membership: membership,
		Store:      store,
	}
	o.Typing = core.NewTypingTracker(typingTTL, o.typingExpired)
	return o
}

// Connect authenticates the transport and registers the handle. On the user's
// first connection it broadcasts user_online to everyone and hands the new
// client a point-in-time snapshot of all online users.
func (o *Orchestrator) Connect(ctx context.Context, token string, conn core.SignalConn) (*core.ConnHandle, error) {
	if token == "" {
		return nil, domain.ErrTokenMissing
	}
	userID, err := o.Auth.Verify(ctx, token)
	if err != nil {
		log.Warn().Err(err).Str("module", "app").Msg("token rejected")
		return nil, domain.ErrInvalidToken
	}

	h := core.NewConnHandle(userID, conn)
	first := o.Registry.Register(h)
	log.Info().Str("module", "app").Str("user", string(userID)).Str("conn", h.ID).Bool("first", first).Msg("connected")

	if first {
		o.broadcastAll(struct {
			Type   string        `json:"type"`
			UserID domain.UserID `json:"userId"`
		}{"user_online", userID})

		o.emit(h, struct {
			Type    string          `json:"type"`
			UserIDs []domain.UserID `json:"userIds"`
		}{"online_users_list", o.Registry.OnlineUserIDs()})
	}
	return h, nil
}

// Disconnect deregisters the handle. When it was the user's last connection it
// broadcasts user_offline and cascades room-presence and call cleanup, as if
// the client had issued the leave/end requests itself.
func (o *Orchestrator) Disconnect(h *core.ConnHandle) {
	last := o.Registry.Deregister(h)
	log.Info().Str("module", "app").Str("user", string(h.UserID)).Str("conn", h.ID).Bool("last", last).Msg("disconnected")
	if !last {
		return
	}

	o.broadcastAll(struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"userId"`
	}{"user_offline", h.UserID})

	for _, roomID := range h.Rooms() {
		o.leave(h, roomID)
	}
	o.dropCalls(h.UserID)
}

func (o *Orchestrator) typingExpired(roomID domain.RoomID, userID domain.UserID) {
	log.Debug().Str("module", "app").Str("room", string(roomID)).Str("user", string(userID)).Msg("typing expired")
	o.broadcastRoomExcept(roomID, userID, stoppedTypingEvent(roomID, userID))
}

// emit marshals and queues one event on one connection. Send failures are a
// delivery concern of the transport, not the operation; they are logged and
// the operation proceeds.
func (o *Orchestrator) emit(h *core.ConnHandle, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Msg("marshal event")
		return
	}
	if err := h.Send(b); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("user", string(h.UserID)).Str("conn", h.ID).Msg("dropped event")
	}
}

// emitPrimary delivers to the user's first connection only. Call signaling is
// never fanned out across devices.
func (o *Orchestrator) emitPrimary(userID domain.UserID, v any) {
	h, ok := o.Registry.Primary(userID)
	if !ok {
		return
	}
	o.emit(h, v)
}

func (o *Orchestrator) broadcastAll(v any) {
	for _, h := range o.Registry.All() {
		o.emit(h, v)
	}
}

// broadcastRoom fans out to every connection of every user present in the room.
func (o *Orchestrator) broadcastRoom(roomID domain.RoomID, v any) {
	for _, userID := range o.Presence.Members(roomID) {
		for _, h := range o.Registry.HandlesFor(userID) {
			o.emit(h, v)
		}
	}
}

func (o *Orchestrator) broadcastRoomExcept(roomID domain.RoomID, except domain.UserID, v any) {
	for _, userID := range o.Presence.Members(roomID) {
		if userID == except {
			continue
		}
		for _, h := range o.Registry.HandlesFor(userID) {
			o.emit(h, v)
		}
	}
}

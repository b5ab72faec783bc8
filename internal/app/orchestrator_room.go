package app

import (
	"context"
	"fmt"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinRoom validates membership against the roster, marks the user present,
// sends the joiner the current presence snapshot and notifies every present
// connection, the joiner included.
func (o *Orchestrator) JoinRoom(ctx context.Context, h *core.ConnHandle, roomID domain.RoomID) error {
	ok, err := o.Membership.IsMember(ctx, roomID, h.UserID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return domain.ErrNotRoomMember
	}

	members := o.Presence.Add(roomID, h.UserID)
	h.JoinedRoom(roomID)
	log.Info().Str("module", "app").Str("room", string(roomID)).Str("user", string(h.UserID)).Int("present", len(members)).Msg("joined room")

	o.emit(h, struct {
		Type    string          `json:"type"`
		Members []domain.UserID `json:"members"`
	}{"room_members_online", members})

	o.broadcastRoom(roomID, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		UserID domain.UserID `json:"userId"`
	}{"user_joined", roomID, h.UserID})

	o.emit(h, struct {
		Type    string        `json:"type"`
		RoomID  domain.RoomID `json:"roomId"`
		Message string        `json:"message"`
	}{"room_joined", roomID, fmt.Sprintf("Joined room %s", roomID)})
	return nil
}

// LeaveRoom removes the user from the room's live session. Leaving a room the
// user was never present in is a no-op, not an error.
func (o *Orchestrator) LeaveRoom(h *core.ConnHandle, roomID domain.RoomID) {
	o.leave(h, roomID)

	o.emit(h, struct {
		Type    string        `json:"type"`
		RoomID  domain.RoomID `json:"roomId"`
		Message string        `json:"message"`
	}{"room_left", roomID, fmt.Sprintf("Left room %s", roomID)})
}

// leave is the shared removal path for explicit leaves and disconnect
// cascades. It only notifies whoever remains when the user was present.
func (o *Orchestrator) leave(h *core.ConnHandle, roomID domain.RoomID) {
	h.LeftRoom(roomID)
	if o.Typing.Stop(roomID, h.UserID) {
		o.broadcastRoomExcept(roomID, h.UserID, stoppedTypingEvent(roomID, h.UserID))
	}
	if !o.Presence.Remove(roomID, h.UserID) {
		return
	}
	log.Info().Str("module", "app").Str("room", string(roomID)).Str("user", string(h.UserID)).Msg("left room")

	o.broadcastRoom(roomID, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		UserID domain.UserID `json:"userId"`
	}{"user_left", roomID, h.UserID})
}

// SendMessage persists via the store and fans the stored message out to every
// connection presently joined to the room. Nothing is broadcast unless
// persistence succeeded.
func (o *Orchestrator) SendMessage(ctx context.Context, h *core.ConnHandle, roomID domain.RoomID, content string) error {
	if err := domain.ValidateContent(content); err != nil {
		return err
	}
	ok, err := o.Membership.IsMember(ctx, roomID, h.UserID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return domain.ErrNotRoomMember
	}

	msg, err := o.Store.Create(ctx, roomID, h.UserID, content)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	o.broadcastRoom(roomID, struct {
		Type    string         `json:"type"`
		Message domain.Message `json:"message"`
	}{"new_message", msg})
	return nil
}

// StartTyping renews the typing deadline and notifies every other present
// connection. Repeated starts are relayed as-is; receivers debounce display.
func (o *Orchestrator) StartTyping(h *core.ConnHandle, roomID domain.RoomID) {
	o.Typing.Touch(roomID, h.UserID)
	o.broadcastRoomExcept(roomID, h.UserID, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		UserID domain.UserID `json:"userId"`
	}{"user_start_typing", roomID, h.UserID})
}

// StopTyping clears the deadline. Only the first stop after a start produces a
// broadcast; a stray stop is silent.
func (o *Orchestrator) StopTyping(h *core.ConnHandle, roomID domain.RoomID) {
	if !o.Typing.Stop(roomID, h.UserID) {
		return
	}
	o.broadcastRoomExcept(roomID, h.UserID, stoppedTypingEvent(roomID, h.UserID))
}

func stoppedTypingEvent(roomID domain.RoomID, userID domain.UserID) any {
	return struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		UserID domain.UserID `json:"userId"`
	}{"user_stopped_typing", roomID, userID}
}

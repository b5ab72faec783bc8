package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

type roomPayload struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func decodeRoom(data []byte) (domain.RoomID, error) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return "", errBadPayload
	}
	return domain.RoomID(p.RoomID), nil
}

func (ctl *Controller) handleJoinRoom(ctx context.Context, h *core.ConnHandle, c *wsConn, data []byte) {
	roomID, err := decodeRoom(data)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Orch.JoinRoom(ctx, h, roomID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", string(roomID)).Str("user", string(h.UserID)).Msg("join rejected")
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleLeaveRoom(h *core.ConnHandle, c *wsConn, data []byte) {
	roomID, err := decodeRoom(data)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.Orch.LeaveRoom(h, roomID)
}

func (ctl *Controller) handleSendMessage(ctx context.Context, h *core.ConnHandle, c *wsConn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, errBadPayload)
		return
	}
	if err := ctl.Orch.SendMessage(ctx, h, domain.RoomID(p.RoomID), p.Content); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.RoomID).Str("user", string(h.UserID)).Msg("send rejected")
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleTypingStart(h *core.ConnHandle, c *wsConn, data []byte) {
	roomID, err := decodeRoom(data)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.Orch.StartTyping(h, roomID)
}

func (ctl *Controller) handleTypingStop(h *core.ConnHandle, c *wsConn, data []byte) {
	roomID, err := decodeRoom(data)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.Orch.StopTyping(h, roomID)
}

package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, h *core.ConnHandle, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", h.ID).Msg("readPump closing")
		ctl.Orch.Disconnect(h)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", h.ID).Msg("unexpected close")
				}
				return
			}
			ctl.handle(ctx, h, c, data)
		}
	}
}

func (ctl *Controller) handle(ctx context.Context, h *core.ConnHandle, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, errBadPayload)
		return
	}

	switch env.Type {
	case "join_room":
		ctl.handleJoinRoom(ctx, h, c, data)
	case "leave_room":
		ctl.handleLeaveRoom(h, c, data)
	case "send_message":
		ctl.handleSendMessage(ctx, h, c, data)
	case "typing_start":
		ctl.handleTypingStart(h, c, data)
	case "typing_stop":
		ctl.handleTypingStop(h, c, data)
	case "video_call_request":
		ctl.handleCallRequest(h, c, data)
	case "video_call_answer":
		ctl.handleCallAnswer(h, c, data)
	case "video_call_offer":
		ctl.handleCallOffer(h, c, data)
	case "video_call_answer_sdp":
		ctl.handleCallAnswerSDP(h, c, data)
	case "video_ice_candidate":
		ctl.handleICECandidate(h, c, data)
	case "video_call_end":
		ctl.handleCallEnd(h, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

var errBadPayload = errors.New("bad payload")

// clientErrors are safe to echo verbatim; anything else is an internal detail.
var clientErrors = []error{
	errBadPayload,
	domain.ErrNotRoomMember,
	domain.ErrSelfCall,
	domain.ErrUserOffline,
	domain.ErrCallerOffline,
	domain.ErrCalleeOffline,
	domain.ErrNoActiveCall,
	domain.ErrMessageEmpty,
	domain.ErrMessageTooLong,
}

func (ctl *Controller) sendError(c *wsConn, err error) {
	message := "internal error"
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			message = known.Error()
			break
		}
	}
	ctl.sendJSON(c, struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", message})
}

package signal

import (
	"encoding/json"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleCallRequest(h *core.ConnHandle, c *wsConn, data []byte) {
	var p struct {
		Type         string `json:"type"`
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.TargetUserID == "" {
		ctl.sendError(c, errBadPayload)
		return
	}
	if err := ctl.Orch.CallRequest(h, domain.UserID(p.TargetUserID)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("caller", string(h.UserID)).Str("target", p.TargetUserID).Msg("call request rejected")
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleCallAnswer(h *core.ConnHandle, c *wsConn, data []byte) {
	var p struct {
		Type       string `json:"type"`
		CallerID   string `json:"callerId"`
		AcceptCall bool   `json:"acceptCall"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallerID == "" {
		ctl.sendError(c, errBadPayload)
		return
	}
	if err := ctl.Orch.CallAnswer(h, domain.UserID(p.CallerID), p.AcceptCall); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("callee", string(h.UserID)).Str("caller", p.CallerID).Msg("call answer rejected")
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleCallOffer(h *core.ConnHandle, c *wsConn, data []byte) {
	var p struct {
		Type         string          `json:"type"`
		TargetUserID string          `json:"targetUserId"`
		Offer        json.RawMessage `json:"offer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.TargetUserID == "" || len(p.Offer) == 0 {
		ctl.sendError(c, errBadPayload)
		return
	}
	if err := ctl.Orch.CallOffer(h, domain.UserID(p.TargetUserID), p.Offer); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleCallAnswerSDP(h *core.ConnHandle, c *wsConn, data []byte) {
	var p struct {
		Type     string          `json:"type"`
		CallerID string          `json:"callerId"`
		Answer   json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallerID == "" || len(p.Answer) == 0 {
		ctl.sendError(c, errBadPayload)
		return
	}
	if err := ctl.Orch.CallAnswerSDP(h, domain.UserID(p.CallerID), p.Answer); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleICECandidate(h *core.ConnHandle, c *wsConn, data []byte) {
	var p struct {
		Type         string          `json:"type"`
		TargetUserID string          `json:"targetUserId"`
		Candidate    json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.TargetUserID == "" || len(p.Candidate) == 0 {
		ctl.sendError(c, errBadPayload)
		return
	}
	if err := ctl.Orch.CallICE(h, domain.UserID(p.TargetUserID), p.Candidate); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleCallEnd(h *core.ConnHandle, c *wsConn, data []byte) {
	var p struct {
		Type         string `json:"type"`
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.TargetUserID == "" {
		ctl.sendError(c, errBadPayload)
		return
	}
	if err := ctl.Orch.CallEnd(h, domain.UserID(p.TargetUserID)); err != nil {
		ctl.sendError(c, err)
	}
}

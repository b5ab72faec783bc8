package app

import (
	"encoding/json"

	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/rs/zerolog/log"
)

// SDP offers/answers and ICE candidates are opaque blobs. The relay forwards
// them verbatim and only maintains the call-session bookkeeping around them.

// CallRequest opens a REQUESTED session and rings the target's primary
// connection.
func (o *Orchestrator) CallRequest(h *core.ConnHandle, targetID domain.UserID) error {
	if targetID == h.UserID {
		return domain.ErrSelfCall
	}
	target, ok := o.Registry.Primary(targetID)
	if !ok {
		return domain.ErrUserOffline
	}

	o.Calls.Request(h.UserID, targetID)
	log.Info().Str("module", "app").Str("caller", string(h.UserID)).Str("callee", string(targetID)).Msg("call requested")

	o.emit(target, struct {
		Type     string        `json:"type"`
		CallerID domain.UserID `json:"callerId"`
	}{"user_request_video_call", h.UserID})

	o.emit(h, struct {
		Type         string        `json:"type"`
		TargetUserID domain.UserID `json:"targetUserId"`
	}{"video_call_request_sent", targetID})
	return nil
}

// CallAnswer resolves the callee's accept/reject of a session addressed to it.
func (o *Orchestrator) CallAnswer(h *core.ConnHandle, callerID domain.UserID, accept bool) error {
	caller, online := o.Registry.Primary(callerID)
	if !online {
		return domain.ErrCallerOffline
	}
	if err := o.Calls.Answer(callerID, h.UserID, accept); err != nil {
		return err
	}
	log.Info().Str("module", "app").Str("caller", string(callerID)).Str("callee", string(h.UserID)).Bool("accepted", accept).Msg("call answered")

	if accept {
		o.emit(caller, struct {
			Type     string        `json:"type"`
			CalleeID domain.UserID `json:"calleeId"`
		}{"video_call_accepted", h.UserID})
	} else {
		o.emit(caller, struct {
			Type     string        `json:"type"`
			CalleeID domain.UserID `json:"calleeId"`
		}{"video_call_rejected", h.UserID})
	}
	return nil
}

// CallOffer forwards the caller's SDP offer to the callee's primary connection.
func (o *Orchestrator) CallOffer(h *core.ConnHandle, targetID domain.UserID, offer json.RawMessage) error {
	if err := o.Calls.Offer(h.UserID, targetID); err != nil {
		return err
	}
	target, ok := o.Registry.Primary(targetID)
	if !ok {
		return domain.ErrCalleeOffline
	}

	o.emit(target, struct {
		Type     string          `json:"type"`
		CallerID domain.UserID   `json:"callerId"`
		Offer    json.RawMessage `json:"offer"`
	}{"video_call_offer", h.UserID, offer})
	return nil
}

// CallAnswerSDP forwards the callee's SDP answer back to the caller and marks
// the session established.
func (o *Orchestrator) CallAnswerSDP(h *core.ConnHandle, callerID domain.UserID, answer json.RawMessage) error {
	if err := o.Calls.AnswerSDP(callerID, h.UserID); err != nil {
		return err
	}
	caller, ok := o.Registry.Primary(callerID)
	if !ok {
		return domain.ErrUserOffline
	}

	o.emit(caller, struct {
		Type     string          `json:"type"`
		CalleeID domain.UserID   `json:"calleeId"`
		Answer   json.RawMessage `json:"answer"`
	}{"video_call_answer_sdp", h.UserID, answer})
	return nil
}

// CallICE relays an ICE candidate; candidates flow in both directions of a
// session regardless of which side is the caller in the table.
func (o *Orchestrator) CallICE(h *core.ConnHandle, targetID domain.UserID, candidate json.RawMessage) error {
	if !o.Calls.AllowICE(h.UserID, targetID) {
		return domain.ErrNoActiveCall
	}
	target, ok := o.Registry.Primary(targetID)
	if !ok {
		return domain.ErrUserOffline
	}

	o.emit(target, struct {
		Type      string          `json:"type"`
		SenderID  domain.UserID   `json:"senderId"`
		Candidate json.RawMessage `json:"candidate"`
	}{"video_ice_candidate", h.UserID, candidate})
	return nil
}

// CallEnd tears the session down regardless of direction and notifies both
// sides, tagged with who ended it.
func (o *Orchestrator) CallEnd(h *core.ConnHandle, targetID domain.UserID) error {
	if !o.Calls.End(h.UserID, targetID) {
		return domain.ErrNoActiveCall
	}
	log.Info().Str("module", "app").Str("ended_by", string(h.UserID)).Str("peer", string(targetID)).Msg("call ended")

	ended := struct {
		Type         string        `json:"type"`
		EndedBy      domain.UserID `json:"endedBy"`
		TargetUserID domain.UserID `json:"targetUserId"`
	}{"video_call_ended", h.UserID, targetID}

	o.emit(h, ended)
	o.emitPrimary(targetID, ended)
	return nil
}

// dropCalls removes the session the disconnecting user was party to, in either
// role, and tells the surviving side exactly once why the call died.
func (o *Orchestrator) dropCalls(userID domain.UserID) {
	peer, ok := o.Calls.Drop(userID)
	if !ok {
		return
	}
	log.Info().Str("module", "app").Str("user", string(userID)).Str("peer", string(peer)).Msg("call dropped on disconnect")

	o.emitPrimary(peer, struct {
		Type         string        `json:"type"`
		EndedBy      domain.UserID `json:"endedBy"`
		TargetUserID domain.UserID `json:"targetUserId"`
		Reason       string        `json:"reason"`
	}{"video_call_ended", userID, peer, domain.EndReasonDisconnected})
}

package domain

// CallState tracks how far a caller→callee negotiation has progressed.
// There is one session per caller at most; the callee side is intentionally
// unguarded, so a user can be the target of several REQUESTED sessions at once.
type CallState int

const (
	CallNone CallState = iota
	CallRequested
	CallAccepted
	CallEstablished
)

func (s CallState) String() string {
	switch s {
	case CallRequested:
		return "requested"
	case CallAccepted:
		return "accepted"
	case CallEstablished:
		return "established"
	default:
		return "none"
	}
}

// CallEndReason tags video_call_ended notifications.
const (
	EndReasonHangup       = ""
	EndReasonDisconnected = "user_disconnected"
)

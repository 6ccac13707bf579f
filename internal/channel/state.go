package channel

// State is the lifecycle phase of a Channel.
type State int32

const (
	StateCreated State = iota
	StateOpening
	StateNegotiating
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpening:
		return "opening"
	case StateNegotiating:
		return "negotiating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

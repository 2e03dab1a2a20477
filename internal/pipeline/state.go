package pipeline

// State is the lifecycle stage of a Pipeline
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

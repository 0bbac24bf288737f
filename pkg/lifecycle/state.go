package lifecycle

// State is the observed state of a supervised engine.
//
// The Controller never drives the engine through these states; it derives
// them from the engine's status methods for logging and metrics.
type State int32

const (
	// StateNotServing indicates the engine has not reported serving yet.
	StateNotServing State = iota
	// StateServing indicates the engine is accepting work.
	StateServing
	// StateStopping indicates a stop was requested and the engine is draining.
	StateStopping
	// StateStopped is terminal: the engine has fully stopped.
	StateStopped
	// StateFailed is terminal: Serve returned an error or panicked.
	StateFailed
)

// String returns the snake_case name used in logs and metric labels.
func (s State) String() string {
	switch s {
	case StateNotServing:
		return "not_serving"
	case StateServing:
		return "serving"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// States returns every defined state in declaration order.
func States() []State {
	return []State{StateNotServing, StateServing, StateStopping, StateStopped, StateFailed}
}

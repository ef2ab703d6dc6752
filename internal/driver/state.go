package driver

// State is the lifecycle phase of a Driver. The orthogonal paused flag is
// reported separately because pausing can overlap Running and Draining.
type State int32

// Driver lifecycle states.
const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

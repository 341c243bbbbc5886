package flight

import "fmt"

// State is the flight computer's current mode
type State int

const (
	Ground State = iota
	Hover
	Landing
	Failed
	EmergencyLanding
	ManualControl
	EngagingAutoControl
)

func (s State) String() string {
	switch s {
	case Ground:
		return "GROUND"
	case Hover:
		return "HOVER"
	case Landing:
		return "LANDING"
	case Failed:
		return "FAILED"
	case EmergencyLanding:
		return "EMERGENCY_LANDING"
	case ManualControl:
		return "MANUAL_CONTROL"
	case EngagingAutoControl:
		return "ENGAGING_AUTO_CONTROL"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// automatic reports whether the throttle is under closed-loop altitude control
func (s State) automatic() bool {
	return s == Hover || s == Landing || s == EngagingAutoControl
}

// fault reports whether the state is one of the failure states
func (s State) fault() bool {
	return s == Failed || s == EmergencyLanding
}

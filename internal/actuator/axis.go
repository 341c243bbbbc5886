package actuator

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// Commanded speed range shared by every axis channel
const (
	DegreesOfFreedom = 4
	MinSpeed         = -100
	StopSpeed        = 0
	MaxSpeed         = 100
)

// Auxiliary gain channel range
const (
	MinGain     = 0
	MaxGain     = 100
	DefaultGain = 50
)

// Axis identifies one of the four independently actuated channels
type Axis int

const (
	Longitudinal Axis = iota // elevator
	Lateral                  // aileron
	Vertical                 // throttle
	Rotational               // rudder
)

// Axes lists the axis channels in array order
var Axes = [DegreesOfFreedom]Axis{Longitudinal, Lateral, Vertical, Rotational}

func (a Axis) String() string {
	switch a {
	case Longitudinal:
		return "longitudinal"
	case Lateral:
		return "lateral"
	case Vertical:
		return "vertical"
	case Rotational:
		return "rotational"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Valid reports whether a names one of the four axis channels
func (a Axis) Valid() bool {
	return a >= Longitudinal && a <= Rotational
}

// Channel addresses a hardware output: one of the axes or the gain channel
type Channel int

// GainChannel is the auxiliary gain/gear output
const GainChannel Channel = DegreesOfFreedom

// AxisChannel returns the hardware channel for an axis
func AxisChannel(a Axis) Channel {
	return Channel(a)
}

func (c Channel) String() string {
	if c == GainChannel {
		return "gain"
	}
	return Axis(c).String()
}

// ParseChannel resolves an axis, surface or gain channel name
func ParseChannel(name string) (Channel, error) {
	switch strings.ToLower(name) {
	case "longitudinal", "elevator":
		return AxisChannel(Longitudinal), nil
	case "lateral", "aileron":
		return AxisChannel(Lateral), nil
	case "vertical", "throttle":
		return AxisChannel(Vertical), nil
	case "rotational", "rudder":
		return AxisChannel(Rotational), nil
	case "gain":
		return GainChannel, nil
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Clamp limits x to [lo, hi]. Every bound in the actuation path goes
// through it.
func Clamp[T constraints.Integer | constraints.Float](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

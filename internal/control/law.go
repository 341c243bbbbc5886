// Package control defines the contract between the flight computer and
// its closed-loop control-law units.
package control

import "time"

// Configuration is the gain set and setpoint for one control phase
type Configuration struct {
	Setpoint     float64 `json:"setpoint"`
	Proportional float64 `json:"kp"`
	Integral     float64 `json:"ki"`
	Derivative   float64 `json:"kd"`
	Feedforward  float64 `json:"feedforward"`
}

// IsZero reports whether no gain has been set
func (c Configuration) IsZero() bool {
	return c.Proportional == 0 && c.Integral == 0 && c.Derivative == 0
}

// Sink receives the correction produced by a control law
type Sink interface {
	Adjust(x float64)
}

// Law is one closed-loop controller. Update feeds a relative measurement
// taken at now and pushes the resulting correction to the law's sink.
type Law interface {
	Configure(conf Configuration)
	Update(measurement float64, now time.Duration)
	Reset()
}

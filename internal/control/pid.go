package control

import (
	"time"

	"go.einride.tech/pid"
)

// PID is a Law backed by a proportional-integral-derivative controller
type PID struct {
	sink       Sink
	conf       Configuration
	controller pid.Controller
	last       time.Duration
	started    bool
}

// NewPID creates a PID law pushing its output to sink
func NewPID(sink Sink) *PID {
	return &PID{sink: sink}
}

// Configure installs a gain set. Controller state is kept so reinstalling
// the active configuration does not disturb the loop.
func (p *PID) Configure(conf Configuration) {
	p.conf = conf
	p.controller.Config = pid.ControllerConfig{
		ProportionalGain: conf.Proportional,
		IntegralGain:     conf.Integral,
		DerivativeGain:   conf.Derivative,
	}
}

// Configuration returns the installed gain set
func (p *PID) Configuration() Configuration {
	return p.conf
}

// Update runs one controller step. The first call only starts the clock;
// calls whose sampling interval is not positive are skipped.
func (p *PID) Update(measurement float64, now time.Duration) {
	if !p.started {
		p.started = true
		p.last = now
		return
	}

	interval := now - p.last
	if interval <= 0 {
		return
	}
	p.last = now

	p.controller.Update(pid.ControllerInput{
		ReferenceSignal:  p.conf.Setpoint,
		ActualSignal:     measurement,
		SamplingInterval: interval,
	})
	p.sink.Adjust(p.conf.Feedforward + p.controller.State.ControlSignal)
}

// Reset clears the controller state and the sampling clock
func (p *PID) Reset() {
	p.controller.Reset()
	p.started = false
	p.last = 0
}

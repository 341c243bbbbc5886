package flight

import (
	"math"

	"rotorfc/internal/actuator"
)

// output is the control sink for one automatically controlled axis. It
// clamps the control-law correction to the axis bounds before the mixer
// clamps it again, and blends it with the manual command while automatic
// control is engaging.
type output struct {
	axis   actuator.Axis
	mixer  Actuator
	bounds func() (int, int)

	current   int
	raw       float64
	hasRaw    bool
	base      int
	authority float64
}

func newOutput(axis actuator.Axis, mixer Actuator, initial int, bounds func() (int, int)) *output {
	return &output{
		axis:      axis,
		mixer:     mixer,
		bounds:    bounds,
		current:   initial,
		authority: 1,
	}
}

// Adjust receives a control-law correction
func (o *output) Adjust(x float64) {
	o.raw = x
	o.hasRaw = true
	o.apply()
}

// blend starts a handoff from the given manual command
func (o *output) blend(base int) {
	o.base = base
	o.authority = 0
	o.hasRaw = false
	o.current = base
}

// setAuthority moves the handoff and reapplies the last correction
func (o *output) setAuthority(a float64) {
	o.authority = actuator.Clamp(a, 0, 1)
	if o.hasRaw {
		o.apply()
	}
}

// force commands a fixed value inside the axis bounds
func (o *output) force(v int) {
	lo, hi := o.bounds()
	o.current = actuator.Clamp(v, lo, hi)
	o.hasRaw = false
	o.authority = 1
	o.mixer.SetAxis(o.axis, o.current)
}

// cut commands the neutral value, which is always permitted
func (o *output) cut() {
	o.current = actuator.StopSpeed
	o.hasRaw = false
	o.authority = 1
	o.mixer.StopAxis(o.axis)
}

// reset drops law history and full authority is restored
func (o *output) reset(current int) {
	o.current = current
	o.base = current
	o.hasRaw = false
	o.authority = 1
}

func (o *output) apply() {
	lo, hi := o.bounds()
	target := actuator.Clamp(o.raw, float64(lo), float64(hi))
	v := float64(o.base) + o.authority*(target-float64(o.base))
	o.current = actuator.Clamp(int(math.Round(v)), lo, hi)
	o.mixer.SetAxis(o.axis, o.current)
}

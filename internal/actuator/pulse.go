package actuator

import (
	"errors"
	"fmt"
)

// Servo pulse timing
const (
	ServoFrequency    = 50   // Hz
	MinPulseWidthUs   = 1000 // full negative deflection
	MaxPulseWidthUs   = 2000 // full positive deflection
	NeutralPulseWidth = 1500
	pulseCycleLen     = 1000 * 1000 / ServoFrequency // one duty unit per microsecond
)

// Pin map errors
var (
	ErrPinNotPWM    = errors.New("pin has no hardware PWM function")
	ErrPWMPinShared = errors.New("channels share one PWM peripheral")
)

// PWMConfig maps channels onto PWM-capable GPIO pins. A zero pin leaves
// the channel unbound and its writes are dropped.
//
// The Raspberry Pi has two PWM peripherals, and every pin routed to the
// same peripheral carries the same duty cycle, so at most two channels
// can be bound.
type PWMConfig struct {
	Pins    [DegreesOfFreedom + 1]uint8
	Reverse [DegreesOfFreedom + 1]bool
}

// DefaultPWMConfig binds throttle to PWM0 and elevator to PWM1. Aileron,
// rudder and gain are left unbound.
func DefaultPWMConfig() PWMConfig {
	return PWMConfig{
		Pins: [DegreesOfFreedom + 1]uint8{
			Vertical:     18,
			Longitudinal: 13,
		},
	}
}

// Validate rejects pins without hardware PWM and maps that put two
// channels on one peripheral
func (c PWMConfig) Validate() error {
	var owner [2]Channel
	var used [2]bool
	for i, pin := range c.Pins {
		if pin == 0 {
			continue
		}
		ch := Channel(i)
		peripheral, ok := PWMPeripheral(pin)
		if !ok {
			return fmt.Errorf("%s on GPIO %d: %w", ch, pin, ErrPinNotPWM)
		}
		if used[peripheral] {
			return fmt.Errorf("%s and %s on PWM%d: %w", owner[peripheral], ch, peripheral, ErrPWMPinShared)
		}
		used[peripheral] = true
		owner[peripheral] = ch
	}
	return nil
}

// PWMPeripheral returns the PWM peripheral a BCM pin is routed to
func PWMPeripheral(pin uint8) (int, bool) {
	switch pin {
	case 12, 18, 40, 52:
		return 0, true
	case 13, 19, 41, 45, 53:
		return 1, true
	}
	return 0, false
}

// Bound returns the channels that have a pin
func (c PWMConfig) Bound() []Channel {
	var bound []Channel
	for i, pin := range c.Pins {
		if pin != 0 {
			bound = append(bound, Channel(i))
		}
	}
	return bound
}

// PulseWidth converts a clamped channel value to a servo pulse width in
// microseconds.
func PulseWidth(ch Channel, value int, reverse bool) uint32 {
	if ch == GainChannel {
		value = Clamp(value, MinGain, MaxGain)
		return uint32(mapRange(float64(value), MinGain, MaxGain, MinPulseWidthUs, MaxPulseWidthUs))
	}
	value = Clamp(value, MinSpeed, MaxSpeed)
	if reverse {
		value = -value
	}
	return uint32(mapRange(float64(value), MinSpeed, MaxSpeed, MinPulseWidthUs, MaxPulseWidthUs))
}

func mapRange(value, fromMin, fromMax, toMin, toMax float64) float64 {
	return (value-fromMin)/(fromMax-fromMin)*(toMax-toMin) + toMin
}

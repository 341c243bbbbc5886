// Package sim provides a simulated airframe for running the flight
// computer without hardware.
package sim

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rotorfc/internal/actuator"
	"rotorfc/internal/sensor"
)

// Model constants. Height is in centimetres and forces are in g.
const (
	HoverThrottle = 20
	ClimbGain     = 4.0
	Damping       = 0.8
	TiltForce     = 0.004
	ForceDecay    = 5.0
)

// Channels is the commanded actuator state the airframe responds to
type Channels interface {
	ReadAll() [actuator.DegreesOfFreedom]int
}

// Sensors are the listeners the simulated drivers push into
type Sensors struct {
	Height       sensor.Sink
	Longitudinal sensor.Sink
	Lateral      sensor.Sink
}

// State is the simulated physical state
type State struct {
	Time         time.Duration
	Height       float64
	VerticalRate float64
	Longitudinal float64
	Lateral      float64
}

// Airframe is a first-order rotorcraft model driven by the mixer output
type Airframe struct {
	channels Channels
	sensors  Sensors
	logger   *logrus.Logger

	mutex   sync.Mutex
	state   State
	wind    [2]float64
	dropout bool
}

// NewAirframe creates an airframe at rest on the ground
func NewAirframe(channels Channels, sensors Sensors, logger *logrus.Logger) *Airframe {
	return &Airframe{
		channels: channels,
		sensors:  sensors,
		logger:   logger,
	}
}

// SetWind applies a constant horizontal force in g
func (a *Airframe) SetWind(longitudinal, lateral float64) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.wind = [2]float64{longitudinal, lateral}
}

// SetHeightDropout stops or resumes height readings
func (a *Airframe) SetHeightDropout(on bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.dropout != on {
		a.logger.WithField("dropout", on).Info("Simulated height sensor changed")
	}
	a.dropout = on
}

// Now returns the simulation clock
func (a *Airframe) Now() time.Duration {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state.Time
}

// State returns the current physical state
func (a *Airframe) State() State {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state
}

// Step advances the model by dt and pushes the new readings
func (a *Airframe) Step(dt time.Duration) State {
	if dt <= 0 {
		return a.State()
	}
	channels := a.channels.ReadAll()

	a.mutex.Lock()
	seconds := dt.Seconds()
	s := &a.state
	s.Time += dt

	thrust := float64(channels[actuator.Vertical]-HoverThrottle) * ClimbGain
	s.VerticalRate += (thrust - Damping*s.VerticalRate) * seconds
	s.Height += s.VerticalRate * seconds
	if s.Height <= 0 {
		s.Height = 0
		if s.VerticalRate < 0 {
			s.VerticalRate = 0
		}
	}

	airborne := s.Height > 0
	s.Longitudinal = settle(s.Longitudinal, a.force(channels[actuator.Longitudinal], a.wind[0], airborne), seconds)
	s.Lateral = settle(s.Lateral, a.force(channels[actuator.Lateral], a.wind[1], airborne), seconds)

	state := *s
	dropout := a.dropout
	a.mutex.Unlock()

	if !dropout {
		a.sensors.Height.Update(state.Height, state.Time)
	}
	a.sensors.Longitudinal.Update(state.Longitudinal, state.Time)
	a.sensors.Lateral.Update(state.Lateral, state.Time)
	return state
}

func (a *Airframe) force(tilt int, wind float64, airborne bool) float64 {
	if !airborne {
		return 0
	}
	return wind + float64(tilt)*TiltForce
}

// settle moves v toward target at ForceDecay per second
func settle(v, target, seconds float64) float64 {
	k := ForceDecay * seconds
	if k > 1 {
		k = 1
	}
	return v + (target-v)*k
}

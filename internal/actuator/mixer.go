package actuator

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Mixer owns the four axis channels and the gain channel. Every command is
// clamped to the safe range before it reaches the binding; the mixer never
// refuses a command.
type Mixer struct {
	binding Binding
	logger  *logrus.Logger

	mutex         sync.Mutex
	attached      bool
	armed         bool
	speed         [DegreesOfFreedom]int
	gain          int
	writeFailures uint64
}

// NewMixer creates a mixer over a hardware binding. All channels start at
// StopSpeed.
func NewMixer(binding Binding, logger *logrus.Logger) *Mixer {
	return &Mixer{
		binding: binding,
		logger:  logger,
		gain:    DefaultGain,
	}
}

// Attach binds the hardware outputs. It must run once before any command
// has an effect.
func (m *Mixer) Attach() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.attached {
		return nil
	}
	if err := m.binding.Attach(); err != nil {
		return fmt.Errorf("failed to attach actuator binding: %w", err)
	}
	m.attached = true
	m.logger.Info("Actuator binding attached")
	return nil
}

// Arm runs the startup sequence and leaves every channel at StopSpeed.
// Commands issued before Arm are dropped.
func (m *Mixer) Arm() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.attached {
		return fmt.Errorf("failed to arm actuators: %w", ErrNotAttached)
	}

	for _, axis := range Axes {
		if err := m.binding.Write(AxisChannel(axis), StopSpeed); err != nil {
			return fmt.Errorf("failed to arm %s channel: %w", axis, err)
		}
		m.speed[axis] = StopSpeed
	}
	if err := m.binding.Write(GainChannel, m.gain); err != nil {
		return fmt.Errorf("failed to arm gain channel: %w", err)
	}

	m.armed = true
	m.logger.WithField("gain", m.gain).Info("Actuators armed")
	return nil
}

// Armed reports whether Arm completed
func (m *Mixer) Armed() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.armed
}

// SetAll writes all four axis channels under one lock, so no reader sees
// a partially applied vector.
func (m *Mixer) SetAll(longitudinal, lateral, vertical, rotational int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.ready("set_all") {
		return
	}
	m.write(Longitudinal, longitudinal)
	m.write(Lateral, lateral)
	m.write(Vertical, vertical)
	m.write(Rotational, rotational)
}

// SetAxis writes one axis channel
func (m *Mixer) SetAxis(axis Axis, value int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !axis.Valid() || !m.ready("set_axis") {
		return
	}
	m.write(axis, value)
}

// StopAxis sets one axis channel to StopSpeed
func (m *Mixer) StopAxis(axis Axis) {
	m.SetAxis(axis, StopSpeed)
}

// StopAll sets every axis channel to StopSpeed
func (m *Mixer) StopAll() {
	m.SetAll(StopSpeed, StopSpeed, StopSpeed, StopSpeed)
}

// Read returns the last commanded value for an axis. It never reads back
// from hardware.
func (m *Mixer) Read(axis Axis) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !axis.Valid() {
		return StopSpeed
	}
	return m.speed[axis]
}

// ReadAll returns the last commanded vector in axis order
func (m *Mixer) ReadAll() [DegreesOfFreedom]int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.speed
}

// Throttle commands the vertical channel
func (m *Mixer) Throttle(v int) { m.SetAxis(Vertical, v) }

// Elevator commands the longitudinal channel
func (m *Mixer) Elevator(v int) { m.SetAxis(Longitudinal, v) }

// Aileron commands the lateral channel
func (m *Mixer) Aileron(v int) { m.SetAxis(Lateral, v) }

// Rudder commands the rotational channel
func (m *Mixer) Rudder(v int) { m.SetAxis(Rotational, v) }

// AdjustGain writes the auxiliary gain channel, clamped to [MinGain, MaxGain]
func (m *Mixer) AdjustGain(v int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.ready("adjust_gain") {
		return
	}
	v = Clamp(v, MinGain, MaxGain)
	if err := m.binding.Write(GainChannel, v); err != nil {
		m.writeFailures++
		m.logger.WithError(err).WithField("channel", GainChannel.String()).Error("Actuator write failed")
	}
	m.gain = v
}

// Gain returns the last commanded gain value
func (m *Mixer) Gain() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.gain
}

// WriteFailures returns how many binding writes failed after arming
func (m *Mixer) WriteFailures() uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.writeFailures
}

// Close stops every channel and releases the binding
func (m *Mixer) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.armed {
		for _, axis := range Axes {
			m.write(axis, StopSpeed)
		}
	}
	m.armed = false
	m.attached = false

	if err := m.binding.Close(); err != nil {
		return fmt.Errorf("failed to close actuator binding: %w", err)
	}
	return nil
}

// ready must be called with the mutex held
func (m *Mixer) ready(op string) bool {
	if m.armed {
		return true
	}
	m.logger.WithFields(logrus.Fields{
		"operation": op,
		"attached":  m.attached,
	}).Warn("Actuator command dropped before arming")
	return false
}

// write must be called with the mutex held. The commanded value is kept
// even when the binding write fails.
func (m *Mixer) write(axis Axis, value int) {
	clamped := Clamp(value, MinSpeed, MaxSpeed)
	if clamped != value {
		m.logger.WithFields(logrus.Fields{
			"axis":      axis.String(),
			"requested": value,
			"clamped":   clamped,
		}).Debug("Actuator command clamped")
	}
	if err := m.binding.Write(AxisChannel(axis), clamped); err != nil {
		m.writeFailures++
		m.logger.WithError(err).WithField("channel", axis.String()).Error("Actuator write failed")
	}
	m.speed[axis] = clamped
}

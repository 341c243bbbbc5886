//go:build linux

package actuator

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

// PWMBinding drives servos from the Raspberry Pi PWM peripheral
type PWMBinding struct {
	config PWMConfig
	logger *logrus.Logger
	pins   [DegreesOfFreedom + 1]*rpio.Pin
	mutex  sync.Mutex
	isOpen bool
}

// NewPWMBinding creates an unattached PWM binding
func NewPWMBinding(config PWMConfig, logger *logrus.Logger) *PWMBinding {
	return &PWMBinding{
		config: config,
		logger: logger,
	}
}

// Attach maps the GPIO memory and puts every bound pin into PWM mode
func (b *PWMBinding) Attach() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.isOpen {
		return nil
	}
	if err := b.config.Validate(); err != nil {
		return fmt.Errorf("invalid PWM pin map: %w", err)
	}
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open gpio memory: %w", err)
	}
	b.isOpen = true

	for ch, num := range b.config.Pins {
		if num == 0 {
			continue
		}
		pin := rpio.Pin(num)
		pin.Mode(rpio.Pwm)
		pin.Freq(ServoFrequency * pulseCycleLen)
		b.pins[ch] = &pin
	}

	b.logger.WithFields(logrus.Fields{
		"pins":      b.config.Pins,
		"reverse":   b.config.Reverse,
		"bound":     b.config.Bound(),
		"frequency": ServoFrequency,
	}).Info("PWM binding attached")
	return nil
}

// Write sets the pulse width for one channel
func (b *PWMBinding) Write(ch Channel, value int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isOpen {
		return ErrNotAttached
	}
	if ch < 0 || int(ch) >= len(b.pins) {
		return fmt.Errorf("channel %d out of range", int(ch))
	}
	pin := b.pins[ch]
	if pin == nil {
		return nil
	}
	pin.DutyCycle(PulseWidth(ch, value, b.config.Reverse[ch]), pulseCycleLen)
	return nil
}

// Close parks every bound servo at neutral and unmaps GPIO memory
func (b *PWMBinding) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isOpen {
		return nil
	}
	for _, pin := range b.pins {
		if pin != nil {
			pin.DutyCycle(NeutralPulseWidth, pulseCycleLen)
		}
	}
	b.isOpen = false
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to close gpio memory: %w", err)
	}
	b.logger.Info("PWM binding closed")
	return nil
}

//go:build !linux

package actuator

import (
	"errors"

	"github.com/sirupsen/logrus"
)

var errPWMUnsupported = errors.New("PWM servo output is only available on linux builds")

// PWMBinding is a placeholder on platforms without GPIO memory access
type PWMBinding struct{}

// NewPWMBinding creates a binding whose Attach always fails
func NewPWMBinding(config PWMConfig, logger *logrus.Logger) *PWMBinding {
	return &PWMBinding{}
}

// Attach returns an error for the stub implementation
func (b *PWMBinding) Attach() error { return errPWMUnsupported }

// Write returns an error for the stub implementation
func (b *PWMBinding) Write(ch Channel, value int) error { return errPWMUnsupported }

// Close is a no-op for the stub implementation
func (b *PWMBinding) Close() error { return nil }

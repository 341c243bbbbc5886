// Package pilot holds the manual input sources polled by the flight
// computer.
package pilot

import (
	"sync"

	"rotorfc/internal/actuator"
)

// Sticks is the latest stick vector received from the pilot's receiver
type Sticks struct {
	mutex    sync.Mutex
	position [actuator.DegreesOfFreedom]int
	updates  uint64
}

// NewSticks creates a centered stick vector
func NewSticks() *Sticks {
	return &Sticks{}
}

// Set stores a full stick vector, clamped to the actuator range
func (s *Sticks) Set(longitudinal, lateral, vertical, rotational int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.position[actuator.Longitudinal] = actuator.Clamp(longitudinal, actuator.MinSpeed, actuator.MaxSpeed)
	s.position[actuator.Lateral] = actuator.Clamp(lateral, actuator.MinSpeed, actuator.MaxSpeed)
	s.position[actuator.Vertical] = actuator.Clamp(vertical, actuator.MinSpeed, actuator.MaxSpeed)
	s.position[actuator.Rotational] = actuator.Clamp(rotational, actuator.MinSpeed, actuator.MaxSpeed)
	s.updates++
}

// Stick returns the position of one axis
func (s *Sticks) Stick(axis actuator.Axis) int {
	if !axis.Valid() {
		return actuator.StopSpeed
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.position[axis]
}

// Vector returns all four positions from the same update
func (s *Sticks) Vector() [actuator.DegreesOfFreedom]int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.position
}

// Updates returns how many vectors have been received
func (s *Sticks) Updates() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.updates
}

// Center returns every stick to neutral
func (s *Sticks) Center() {
	s.Set(actuator.StopSpeed, actuator.StopSpeed, actuator.StopSpeed, actuator.StopSpeed)
}

// Neutral is a pilot that never moves the sticks
type Neutral struct{}

// Vector always returns centered sticks
func (Neutral) Vector() [actuator.DegreesOfFreedom]int {
	return [actuator.DegreesOfFreedom]int{}
}

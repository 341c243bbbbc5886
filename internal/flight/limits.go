package flight

import (
	"time"

	"rotorfc/internal/actuator"
)

// Sensor freshness and telemetry timing
const (
	MinTimeUltraSound    = 100 * time.Millisecond
	MinTimeAccel         = 50 * time.Millisecond
	MinTimeStatusMessage = 5000 * time.Millisecond
)

// Actuation limits
const (
	MinThrottle = actuator.MinSpeed + (actuator.MaxSpeed-actuator.MinSpeed)/3
	MaxThrottle = actuator.MaxSpeed - (actuator.MaxSpeed-actuator.MinSpeed)/8
	MinTilt     = actuator.MinSpeed / 2
	MaxTilt     = actuator.MaxSpeed / 2
)

// Landing throttle cutoff, in height units above the zero reference
const ThrottleOffHeight = 10

// Open-loop descent used when the height is no longer trustworthy
const (
	EmergencyDescent  = actuator.StopSpeed - (actuator.MaxSpeed-actuator.MinSpeed)/20
	EmergencyDeadband = (actuator.MaxSpeed - actuator.MinSpeed) / 100
	EmergencyDelta    = 1000 * time.Millisecond
)

// DefaultHeightFailureWindow is how long the height may stay stale under
// automatic control before the computer declares an altitude failure
const DefaultHeightFailureWindow = 500 * time.Millisecond

// EngageDuration is the manual to automatic blend time
const EngageDuration = 1000 * time.Millisecond

package flight

import (
	"time"

	"github.com/sirupsen/logrus"

	"rotorfc/internal/actuator"
	"rotorfc/internal/sensor"
)

// Adjust runs one control tick at the given time since boot
func (c *Computer) Adjust(now time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.advance(now)
	if c.aborted {
		c.mixer.StopAll()
		return
	}

	switch c.state {
	case Ground:
	case ManualControl:
		c.passThrough()
	case Hover, Landing:
		if c.holdAltitude() {
			c.stabilize(c.nextLateral())
		}
	case EngagingAutoControl:
		c.engage()
	case Failed:
		c.stabilize(c.nextLateral())
		if c.escalate && c.now-c.failedAt >= EmergencyDelta {
			c.logger.WithField("failed_for", c.now-c.failedAt).Warn("Altitude not recovered, starting emergency descent")
			c.emergencyDescent()
		}
	case EmergencyLanding:
		c.descend()
		c.stabilize(c.nextLateral())
	}
}

// Stabilize runs the elevator law and, when runLateral is set, the
// aileron law. Stale accelerometer readings hold the previous command.
func (c *Computer) Stabilize(runLateral bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.aborted {
		return
	}
	c.stabilize(runLateral)
}

func (c *Computer) stabilize(runLateral bool) {
	if r, ok := c.fresh(c.longitudinal, MinTimeAccel); ok {
		c.autoElevator.Update(r.Value-c.zeroLongitudinal, r.At)
	}
	if !runLateral {
		return
	}
	if r, ok := c.fresh(c.lateral, MinTimeAccel); ok {
		c.autoAileron.Update(r.Value-c.zeroLateral, r.At)
	}
}

func (c *Computer) nextLateral() bool {
	c.lateralTick = !c.lateralTick
	return c.lateralTick
}

// fresh returns the latest reading if it is within the freshness window
func (c *Computer) fresh(l *sensor.Listener, window time.Duration) (sensor.Reading, bool) {
	r, ok := l.Latest()
	if !ok || c.now-r.At > window {
		return r, false
	}
	return r, true
}

// holdAltitude runs the throttle law for Hover and Landing. It returns
// false when the height has been stale for too long and the computer
// has failed.
func (c *Computer) holdAltitude() bool {
	if c.heightLost() {
		c.failedAltitude()
		return false
	}
	r, ok := c.fresh(c.height, MinTimeUltraSound)
	if !ok {
		return true
	}

	height := r.Value - c.zeroHeight
	if c.state == Landing && height < ThrottleOffHeight {
		if c.throttle.current != actuator.StopSpeed || c.mixer.Read(actuator.Vertical) != actuator.StopSpeed {
			c.logger.WithField("height", height).Info("Below landing cutoff, throttle off")
		}
		c.throttle.cut()
		return true
	}
	c.autoThrottle.Update(height, r.At)
	return true
}

// heightLost reports whether the height has gone unrefreshed for longer
// than the failure window since the current phase began
func (c *Computer) heightLost() bool {
	last := c.phaseStart
	if r, ok := c.height.Latest(); ok && r.At > last {
		last = r.At
	}
	return c.now-last > c.failureWindow
}

func (c *Computer) passThrough() {
	if c.pilot == nil {
		return
	}
	sticks := c.pilot.Vector()
	c.mixer.SetAll(
		sticks[actuator.Longitudinal],
		sticks[actuator.Lateral],
		sticks[actuator.Vertical],
		sticks[actuator.Rotational],
	)
}

// engage blends law outputs in from the manual command. The rudder is
// returned to neutral over the same period.
func (c *Computer) engage() {
	if !c.engageStarted {
		c.engageStarted = true
		c.engageStart = c.now
		c.phaseStart = c.now
		c.rudderBase = c.mixer.Read(actuator.Rotational)
	}

	if c.heightLost() {
		c.failedAltitude()
		return
	}

	elapsed := c.now - c.engageStart
	authority := actuator.Clamp(float64(elapsed)/float64(EngageDuration), 0, 1)

	c.throttle.setAuthority(authority)
	c.elevator.setAuthority(authority)
	c.aileron.setAuthority(authority)
	c.mixer.SetAxis(actuator.Rotational, int(float64(c.rudderBase)*(1-authority)))

	if r, ok := c.fresh(c.height, MinTimeUltraSound); ok {
		c.autoThrottle.Update(r.Value-c.zeroHeight, r.At)
	}
	c.stabilize(c.nextLateral())

	if elapsed >= EngageDuration {
		target := c.engageTarget
		c.completeHandoff()
		c.phaseStart = c.now
		c.transition(target)
	}
}

// descend holds the open-loop emergency throttle within its deadband
func (c *Computer) descend() {
	target := actuator.Clamp(EmergencyDescent, c.minThrottle, c.maxThrottle)
	current := c.mixer.Read(actuator.Vertical)
	if current < target-EmergencyDeadband || current > target+EmergencyDeadband {
		c.throttle.force(target)
	}
}

// Log records a status snapshot when the status interval has elapsed.
// Telemetry failures are logged and otherwise ignored.
func (c *Computer) Log(now time.Duration) {
	c.mutex.Lock()
	c.advance(now)
	if c.logged && c.now-c.lastLog < MinTimeStatusMessage {
		c.mutex.Unlock()
		return
	}
	c.logged = true
	c.lastLog = c.now
	status := c.status()
	c.mutex.Unlock()

	c.logger.WithFields(logrus.Fields{
		"state":    status.State.String(),
		"height":   status.Height.Value,
		"channels": status.Channels,
	}).Debug("Flight status")

	if c.telemetry == nil {
		return
	}
	if err := c.telemetry.Record(status); err != nil {
		c.logger.WithError(err).Warn("Failed to record flight status")
	}
}

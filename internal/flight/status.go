package flight

import (
	"time"

	"rotorfc/internal/actuator"
	"rotorfc/internal/sensor"
)

// Status is a point-in-time snapshot for telemetry
type Status struct {
	Time    time.Duration
	State   State
	Aborted bool

	Height       sensor.Reading
	Longitudinal sensor.Reading
	Lateral      sensor.Reading

	ZeroHeight       float64
	ZeroLongitudinal float64
	ZeroLateral      float64

	Channels    [actuator.DegreesOfFreedom]int
	MinThrottle int
	MaxThrottle int
}

// RelativeHeight is the height above the zero reference
func (s Status) RelativeHeight() float64 {
	return s.Height.Value - s.ZeroHeight
}

// Status returns the current snapshot
func (c *Computer) Status() Status {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.status()
}

func (c *Computer) status() Status {
	height, _ := c.height.Latest()
	longitudinal, _ := c.longitudinal.Latest()
	lateral, _ := c.lateral.Latest()

	return Status{
		Time:             c.now,
		State:            c.state,
		Aborted:          c.aborted,
		Height:           height,
		Longitudinal:     longitudinal,
		Lateral:          lateral,
		ZeroHeight:       c.zeroHeight,
		ZeroLongitudinal: c.zeroLongitudinal,
		ZeroLateral:      c.zeroLateral,
		Channels:         c.mixer.ReadAll(),
		MinThrottle:      c.minThrottle,
		MaxThrottle:      c.maxThrottle,
	}
}

package sim

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotorfc/internal/actuator"
	"rotorfc/internal/sensor"
)

type fixedChannels [actuator.DegreesOfFreedom]int

func (f *fixedChannels) ReadAll() [actuator.DegreesOfFreedom]int { return *f }

type rig struct {
	channels     *fixedChannels
	height       *sensor.Listener
	longitudinal *sensor.Listener
	lateral      *sensor.Listener
	airframe     *Airframe
}

func newRig() *rig {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := &rig{
		channels:     &fixedChannels{},
		height:       sensor.NewListener(),
		longitudinal: sensor.NewListener(),
		lateral:      sensor.NewListener(),
	}
	r.airframe = NewAirframe(r.channels, Sensors{
		Height:       r.height,
		Longitudinal: r.longitudinal,
		Lateral:      r.lateral,
	}, logger)
	return r
}

func (r *rig) run(steps int, dt time.Duration) State {
	var s State
	for i := 0; i < steps; i++ {
		s = r.airframe.Step(dt)
	}
	return s
}

func TestAirframe_StaysGroundedBelowHoverThrottle(t *testing.T) {
	tests := []struct {
		name     string
		throttle int
	}{
		{"stopped", actuator.StopSpeed},
		{"minimum", actuator.MinSpeed},
		{"hover", HoverThrottle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig()
			r.channels[actuator.Vertical] = tt.throttle

			s := r.run(50, 20*time.Millisecond)
			assert.Equal(t, 0.0, s.Height)
			assert.Equal(t, time.Second, s.Time)
		})
	}
}

func TestAirframe_ClimbAndDescend(t *testing.T) {
	r := newRig()
	r.channels[actuator.Vertical] = 60

	climbing := r.run(50, 20*time.Millisecond)
	assert.Greater(t, climbing.Height, 0.0)
	assert.Greater(t, climbing.VerticalRate, 0.0)

	reading, ok := r.height.Latest()
	require.True(t, ok)
	assert.Equal(t, climbing.Height, reading.Value)
	assert.Equal(t, climbing.Time, reading.At)

	r.channels[actuator.Vertical] = actuator.StopSpeed
	landed := r.run(500, 20*time.Millisecond)
	assert.Equal(t, 0.0, landed.Height)
	assert.GreaterOrEqual(t, landed.VerticalRate, 0.0)
}

func TestAirframe_TiltProducesForce(t *testing.T) {
	r := newRig()
	r.channels[actuator.Vertical] = 60
	r.run(10, 20*time.Millisecond)

	r.channels[actuator.Longitudinal] = 50
	r.channels[actuator.Lateral] = -50
	r.airframe.SetWind(0.1, 0)
	s := r.run(100, 20*time.Millisecond)

	assert.InDelta(t, 0.1+50*TiltForce, s.Longitudinal, 1e-3)
	assert.InDelta(t, -50*TiltForce, s.Lateral, 1e-3)

	lon, ok := r.longitudinal.Latest()
	require.True(t, ok)
	assert.Equal(t, s.Longitudinal, lon.Value)
}

func TestAirframe_HeightDropout(t *testing.T) {
	r := newRig()
	r.airframe.Step(20 * time.Millisecond)

	r.airframe.SetHeightDropout(true)
	r.run(10, 20*time.Millisecond)

	reading, ok := r.height.Latest()
	require.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, reading.At)

	lateral, ok := r.lateral.Latest()
	require.True(t, ok)
	assert.Equal(t, 220*time.Millisecond, lateral.At)

	r.airframe.SetHeightDropout(false)
	r.airframe.Step(20 * time.Millisecond)
	reading, _ = r.height.Latest()
	assert.Equal(t, 240*time.Millisecond, reading.At)
}

func TestAirframe_IgnoresNonPositiveStep(t *testing.T) {
	r := newRig()
	s := r.airframe.Step(0)
	assert.Equal(t, time.Duration(0), s.Time)

	_, ok := r.height.Latest()
	assert.False(t, ok)
}

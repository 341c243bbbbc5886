package flight

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotorfc/internal/actuator"
	"rotorfc/internal/control"
)

type fakeLaw struct {
	sink    control.Sink
	out     float64
	conf    control.Configuration
	updates []float64
	resets  int
}

func (f *fakeLaw) Configure(conf control.Configuration) { f.conf = conf }

func (f *fakeLaw) Update(measurement float64, now time.Duration) {
	f.updates = append(f.updates, measurement)
	f.sink.Adjust(f.out)
}

func (f *fakeLaw) Reset() { f.resets++ }

type fakePilot struct {
	sticks [actuator.DegreesOfFreedom]int
}

func (p *fakePilot) Vector() [actuator.DegreesOfFreedom]int { return p.sticks }

type fakeTelemetry struct {
	records []Status
	err     error
}

func (f *fakeTelemetry) Record(status Status) error {
	f.records = append(f.records, status)
	return f.err
}

type rig struct {
	config    Config
	computer  *Computer
	mixer     *actuator.Mixer
	pilot     *fakePilot
	telemetry *fakeTelemetry
	laws      []*fakeLaw
}

func newRig(t *testing.T) *rig {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := &rig{
		config:    DefaultConfig(),
		pilot:     &fakePilot{},
		telemetry: &fakeTelemetry{},
	}
	r.mixer = actuator.NewMixer(actuator.NewRecorder(), logger)
	r.config.NewLaw = func(sink control.Sink) control.Law {
		law := &fakeLaw{sink: sink}
		r.laws = append(r.laws, law)
		return law
	}

	computer, err := New(r.config, r.mixer, r.pilot, r.telemetry, logger)
	require.NoError(t, err)
	r.computer = computer
	require.Len(t, r.laws, 3)
	return r
}

func (r *rig) throttleLaw() *fakeLaw { return r.laws[0] }
func (r *rig) elevatorLaw() *fakeLaw { return r.laws[1] }
func (r *rig) aileronLaw() *fakeLaw  { return r.laws[2] }

func (r *rig) height(value float64, at time.Duration) {
	r.computer.HeightListener().Update(value, at)
}

func (r *rig) accel(longitudinal, lateral float64, at time.Duration) {
	r.computer.LongitudinalListener().Update(longitudinal, at)
	r.computer.LateralListener().Update(lateral, at)
}

func (r *rig) initialize(t *testing.T) {
	t.Helper()
	r.height(0, 0)
	r.accel(0, 0, 0)
	require.NoError(t, r.computer.Init())
}

func neutral() [actuator.DegreesOfFreedom]int {
	return [actuator.DegreesOfFreedom]int{}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{
			name:   "defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "missing hover",
			modify:  func(c *Config) { c.Hover = control.Configuration{Setpoint: 100} },
			wantErr: ErrConfigurationMissing,
		},
		{
			name:    "missing landing",
			modify:  func(c *Config) { c.Landing = control.Configuration{} },
			wantErr: ErrConfigurationMissing,
		},
		{
			name:    "missing stabilizer",
			modify:  func(c *Config) { c.Stabilizer = control.Configuration{} },
			wantErr: ErrConfigurationMissing,
		},
		{
			name:    "inverted throttle bounds",
			modify:  func(c *Config) { c.MinThrottle, c.MaxThrottle = 50, 40 },
			wantErr: ErrInvalidBounds,
		},
		{
			name:    "throttle beyond hardware range",
			modify:  func(c *Config) { c.MaxThrottle = actuator.MaxSpeed + 1 },
			wantErr: ErrInvalidBounds,
		},
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			mixer := actuator.NewMixer(actuator.NewRecorder(), logger)

			computer, err := New(config, mixer, nil, nil, logger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, computer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Ground, computer.State())
		})
	}
}

func TestComputer_InitCapturesZeroReference(t *testing.T) {
	r := newRig(t)
	r.height(12, 0)
	r.accel(0.25, -0.5, 0)

	require.NoError(t, r.computer.Init())

	status := r.computer.Status()
	assert.Equal(t, Ground, status.State)
	assert.Equal(t, 12.0, status.ZeroHeight)
	assert.Equal(t, 0.25, status.ZeroLongitudinal)
	assert.Equal(t, -0.5, status.ZeroLateral)
	assert.True(t, r.mixer.Armed())
	assert.Equal(t, neutral(), r.mixer.ReadAll())
}

func TestComputer_RequiresInit(t *testing.T) {
	r := newRig(t)

	assert.ErrorIs(t, r.computer.Takeoff(0), ErrNotInitialized)
	assert.ErrorIs(t, r.computer.ManualControl(), ErrNotInitialized)
	assert.Equal(t, Ground, r.computer.State())
}

func TestComputer_InvalidTransitions(t *testing.T) {
	r := newRig(t)
	r.initialize(t)

	assert.ErrorIs(t, r.computer.Hover(0), ErrInvalidTransition)
	assert.ErrorIs(t, r.computer.Land(), ErrInvalidTransition)
	assert.ErrorIs(t, r.computer.EmergencyDescent(), ErrInvalidTransition)
	assert.ErrorIs(t, r.computer.AutoControl(), ErrInvalidTransition)

	require.NoError(t, r.computer.Takeoff(0))
	assert.ErrorIs(t, r.computer.Takeoff(0), ErrInvalidTransition)

	r.computer.FailedAltitude()
	assert.Equal(t, Failed, r.computer.State())
	assert.ErrorIs(t, r.computer.Ground(), ErrInvalidTransition)
	assert.ErrorIs(t, r.computer.Hover(0), ErrInvalidTransition)
}

func TestComputer_TakeoffHoldsAltitude(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))
	assert.Equal(t, Hover, r.computer.State())
	assert.Equal(t, r.config.Hover, r.throttleLaw().conf)

	r.height(42, 10*time.Millisecond)
	r.throttleLaw().out = 30
	r.computer.Adjust(10 * time.Millisecond)

	assert.Equal(t, []float64{42}, r.throttleLaw().updates)
	assert.Equal(t, 30, r.mixer.Read(actuator.Vertical))
}

// TestComputer_LandingCutoff tests that the throttle is cut below the cutoff height
func TestComputer_LandingCutoff(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))
	require.NoError(t, r.computer.Land())
	assert.Equal(t, Landing, r.computer.State())
	assert.Equal(t, r.config.Landing, r.throttleLaw().conf)

	r.throttleLaw().out = 40
	r.height(50, 10*time.Millisecond)
	r.computer.Adjust(10 * time.Millisecond)
	assert.Equal(t, 40, r.mixer.Read(actuator.Vertical))

	r.height(8, 20*time.Millisecond)
	r.computer.Adjust(20 * time.Millisecond)

	assert.Equal(t, actuator.StopSpeed, r.mixer.Read(actuator.Vertical))
	assert.Len(t, r.throttleLaw().updates, 1)
	assert.Equal(t, Landing, r.computer.State())
}

func TestComputer_LandingCutoffUsesZeroReference(t *testing.T) {
	r := newRig(t)
	r.height(30, 0)
	require.NoError(t, r.computer.Init())
	require.NoError(t, r.computer.Takeoff(0))
	require.NoError(t, r.computer.Land())

	r.throttleLaw().out = 25
	r.height(45, 10*time.Millisecond)
	r.computer.Adjust(10 * time.Millisecond)

	assert.Equal(t, 25, r.mixer.Read(actuator.Vertical))
	assert.Equal(t, []float64{15}, r.throttleLaw().updates)
}

// TestComputer_ManualPassThrough tests that pilot sticks reach the mixer unchanged
func TestComputer_ManualPassThrough(t *testing.T) {
	tests := []struct {
		name   string
		sticks [actuator.DegreesOfFreedom]int
		want   [actuator.DegreesOfFreedom]int
	}{
		{
			name:   "in range",
			sticks: [actuator.DegreesOfFreedom]int{40, -20, 60, 0},
			want:   [actuator.DegreesOfFreedom]int{40, -20, 60, 0},
		},
		{
			name:   "beyond hardware range",
			sticks: [actuator.DegreesOfFreedom]int{140, -120, 60, 101},
			want:   [actuator.DegreesOfFreedom]int{100, -100, 60, 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.initialize(t)
			require.NoError(t, r.computer.ManualControl())

			r.pilot.sticks = tt.sticks
			r.computer.Adjust(10 * time.Millisecond)

			assert.Equal(t, tt.want, r.mixer.ReadAll())
			assert.Empty(t, r.throttleLaw().updates)
		})
	}
}

// TestComputer_EmergencyDescent tests the stale height to emergency landing path
func TestComputer_EmergencyDescent(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))

	r.computer.Adjust(600 * time.Millisecond)
	require.Equal(t, Failed, r.computer.State())

	require.NoError(t, r.computer.EmergencyDescent())
	assert.Equal(t, EmergencyLanding, r.computer.State())

	r.height(500, 700*time.Millisecond)
	r.computer.Adjust(700 * time.Millisecond)

	throttle := r.mixer.Read(actuator.Vertical)
	assert.InDelta(t, EmergencyDescent, throttle, EmergencyDeadband)
	assert.Empty(t, r.throttleLaw().updates)
}

func TestComputer_FailedEscalatesToEmergencyDescent(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))

	r.computer.Adjust(600 * time.Millisecond)
	require.Equal(t, Failed, r.computer.State())

	r.computer.Adjust(1500 * time.Millisecond)
	assert.Equal(t, Failed, r.computer.State())

	r.computer.Adjust(1600 * time.Millisecond)
	assert.Equal(t, EmergencyLanding, r.computer.State())
	assert.Equal(t, EmergencyDescent, r.mixer.Read(actuator.Vertical))
}

func TestComputer_EmergencyDeadband(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))
	r.computer.FailedAltitude()
	require.NoError(t, r.computer.EmergencyDescent())

	r.mixer.Throttle(EmergencyDescent + EmergencyDeadband)
	r.computer.Adjust(10 * time.Millisecond)
	assert.Equal(t, EmergencyDescent+EmergencyDeadband, r.mixer.Read(actuator.Vertical))

	r.mixer.Throttle(EmergencyDescent + EmergencyDeadband + 1)
	r.computer.Adjust(20 * time.Millisecond)
	assert.Equal(t, EmergencyDescent, r.mixer.Read(actuator.Vertical))
}

// TestComputer_StaleHeightHoldsThrottle tests that a stale height is not fed to the law
func TestComputer_StaleHeightHoldsThrottle(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))

	r.throttleLaw().out = 30
	r.height(50, 0)
	r.computer.Adjust(0)
	require.Equal(t, 30, r.mixer.Read(actuator.Vertical))

	r.throttleLaw().out = 60
	r.computer.Adjust(150 * time.Millisecond)

	assert.Equal(t, 30, r.mixer.Read(actuator.Vertical))
	assert.Len(t, r.throttleLaw().updates, 1)
	assert.Equal(t, Hover, r.computer.State())

	r.computer.Adjust(600 * time.Millisecond)
	assert.Equal(t, Failed, r.computer.State())
	assert.Equal(t, 30, r.mixer.Read(actuator.Vertical))
}

// TestComputer_AbortFromEveryState tests that abort neutralizes every channel
func TestComputer_AbortFromEveryState(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, r *rig)
		from      State
		wantState State
	}{
		{
			name:      "ground",
			setup:     func(t *testing.T, r *rig) {},
			from:      Ground,
			wantState: Ground,
		},
		{
			name: "hover",
			setup: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Takeoff(0))
			},
			from:      Hover,
			wantState: Failed,
		},
		{
			name: "landing",
			setup: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Takeoff(0))
				require.NoError(t, r.computer.Land())
			},
			from:      Landing,
			wantState: Failed,
		},
		{
			name: "failed",
			setup: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Takeoff(0))
				r.computer.Adjust(5 * time.Millisecond)
				r.computer.FailedAltitude()
			},
			from:      Failed,
			wantState: Failed,
		},
		{
			name: "emergency landing",
			setup: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Takeoff(0))
				r.computer.FailedAltitude()
				require.NoError(t, r.computer.EmergencyDescent())
			},
			from:      EmergencyLanding,
			wantState: Failed,
		},
		{
			name: "manual control",
			setup: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.ManualControl())
			},
			from:      ManualControl,
			wantState: Failed,
		},
		{
			name: "engaging auto control",
			setup: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.ManualControl())
				r.computer.Adjust(5 * time.Millisecond)
				require.NoError(t, r.computer.AutoControl())
			},
			from:      EngagingAutoControl,
			wantState: Failed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.initialize(t)
			r.pilot.sticks = [actuator.DegreesOfFreedom]int{30, -30, 50, 20}
			r.throttleLaw().out = 45
			r.elevatorLaw().out = 20
			r.aileronLaw().out = -20

			tt.setup(t, r)
			require.Equal(t, tt.from, r.computer.State())

			r.height(60, 10*time.Millisecond)
			r.accel(0.1, 0.1, 10*time.Millisecond)
			r.computer.Adjust(10 * time.Millisecond)
			if tt.from != Ground {
				require.NotEqual(t, neutral(), r.mixer.ReadAll())
			}

			r.computer.Abort()
			assert.Equal(t, neutral(), r.mixer.ReadAll())
			assert.Equal(t, tt.wantState, r.computer.State())
			assert.True(t, r.computer.Aborted())

			r.height(60, 20*time.Millisecond)
			r.accel(0.1, 0.1, 20*time.Millisecond)
			r.computer.Adjust(20 * time.Millisecond)
			r.computer.Stabilize(true)
			assert.Equal(t, neutral(), r.mixer.ReadAll())
		})
	}
}

func TestComputer_AbortLatchesUntilInit(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))
	r.computer.Abort()

	assert.ErrorIs(t, r.computer.Takeoff(0), ErrInvalidTransition)
	assert.ErrorIs(t, r.computer.EmergencyDescent(), ErrInvalidTransition)

	r.computer.Adjust(2 * time.Second)
	assert.Equal(t, Failed, r.computer.State())

	require.NoError(t, r.computer.Init())
	assert.False(t, r.computer.Aborted())
	assert.Equal(t, Ground, r.computer.State())
	assert.NoError(t, r.computer.Takeoff(2*time.Second))
}

func TestComputer_HoverIdempotent(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))
	require.NoError(t, r.computer.Land())

	require.NoError(t, r.computer.Hover(10*time.Millisecond))
	once := r.throttleLaw().conf
	resets := r.throttleLaw().resets
	state := r.computer.State()

	require.NoError(t, r.computer.Hover(20*time.Millisecond))

	assert.Equal(t, once, r.throttleLaw().conf)
	assert.Equal(t, r.config.Hover, r.throttleLaw().conf)
	assert.Equal(t, resets, r.throttleLaw().resets)
	assert.Equal(t, state, r.computer.State())
	assert.Equal(t, Hover, r.computer.State())
}

func TestComputer_GroundCutsThrottle(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.Takeoff(0))

	r.throttleLaw().out = 50
	r.height(40, 10*time.Millisecond)
	r.computer.Adjust(10 * time.Millisecond)
	require.Equal(t, 50, r.mixer.Read(actuator.Vertical))

	resets := r.throttleLaw().resets
	require.NoError(t, r.computer.Ground())

	assert.Equal(t, Ground, r.computer.State())
	assert.Equal(t, neutral(), r.mixer.ReadAll())
	assert.Equal(t, resets+1, r.throttleLaw().resets)

	r.height(40, 20*time.Millisecond)
	r.computer.Adjust(20 * time.Millisecond)
	assert.Len(t, r.throttleLaw().updates, 1)
}

// TestComputer_EngageBlendsOutputs tests the manual to automatic handoff
func TestComputer_EngageBlendsOutputs(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.ManualControl())

	r.pilot.sticks = [actuator.DegreesOfFreedom]int{10, 0, 40, 20}
	r.computer.Adjust(0)
	require.Equal(t, [actuator.DegreesOfFreedom]int{10, 0, 40, 20}, r.mixer.ReadAll())

	require.NoError(t, r.computer.AutoControl())
	assert.Equal(t, EngagingAutoControl, r.computer.State())
	r.throttleLaw().out = 60

	tick := func(at time.Duration) {
		r.height(100, at)
		r.accel(0, 0, at)
		r.computer.Adjust(at)
	}

	tick(100 * time.Millisecond)
	assert.Equal(t, [actuator.DegreesOfFreedom]int{10, 0, 40, 20}, r.mixer.ReadAll())

	tick(600 * time.Millisecond)
	assert.Equal(t, [actuator.DegreesOfFreedom]int{5, 0, 50, 10}, r.mixer.ReadAll())
	assert.Equal(t, EngagingAutoControl, r.computer.State())

	tick(1100 * time.Millisecond)
	assert.Equal(t, [actuator.DegreesOfFreedom]int{0, 0, 60, 0}, r.mixer.ReadAll())
	assert.Equal(t, Hover, r.computer.State())
}

func TestComputer_LandDuringEngage(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.ManualControl())
	require.NoError(t, r.computer.AutoControl())

	r.height(100, 0)
	r.computer.Adjust(0)
	require.NoError(t, r.computer.Land())
	assert.Equal(t, EngagingAutoControl, r.computer.State())
	assert.Equal(t, r.config.Landing, r.throttleLaw().conf)

	r.height(100, EngageDuration)
	r.computer.Adjust(EngageDuration)
	assert.Equal(t, Landing, r.computer.State())
}

func TestComputer_EngageFailsOnLostHeight(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.ManualControl())
	r.pilot.sticks = [actuator.DegreesOfFreedom]int{0, 0, 30, 20}
	r.computer.Adjust(0)
	require.NoError(t, r.computer.AutoControl())

	r.computer.Adjust(10 * time.Millisecond)
	r.computer.Adjust(600 * time.Millisecond)

	assert.Equal(t, Failed, r.computer.State())
	assert.Equal(t, actuator.StopSpeed, r.mixer.Read(actuator.Rotational))
	assert.Equal(t, 30, r.mixer.Read(actuator.Vertical))
}

// engageFrom hands manual sticks over to automatic control and runs the
// first engagement tick. The laws are primed to command throttle 30,
// elevator 5 and aileron -5 once they have authority.
func (r *rig) engageFrom(t *testing.T, sticks [actuator.DegreesOfFreedom]int) {
	t.Helper()
	require.NoError(t, r.computer.ManualControl())
	r.pilot.sticks = sticks
	r.computer.Adjust(0)
	require.NoError(t, r.computer.AutoControl())

	r.throttleLaw().out = 30
	r.elevatorLaw().out = 5
	r.aileronLaw().out = -5
	r.fly(100 * time.Millisecond)
	require.Equal(t, EngagingAutoControl, r.computer.State())
	require.Equal(t, sticks, r.mixer.ReadAll())
}

func (r *rig) fly(at time.Duration) {
	r.height(100, at)
	r.accel(0, 0, at)
	r.computer.Adjust(at)
}

func TestComputer_LeavingEngagementRestoresAuthority(t *testing.T) {
	sticks := [actuator.DegreesOfFreedom]int{30, -20, 40, 0}

	tests := []struct {
		name  string
		leave func(t *testing.T, r *rig)
		fly   func(t *testing.T, r *rig)
		want  [actuator.DegreesOfFreedom]int
		state State
	}{
		{
			name: "ground",
			leave: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Ground())
				assert.Equal(t, neutral(), r.mixer.ReadAll())
				r.fly(150 * time.Millisecond)
				assert.Equal(t, neutral(), r.mixer.ReadAll())
			},
			fly: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Takeoff(200*time.Millisecond))
			},
			want:  [actuator.DegreesOfFreedom]int{5, -5, 30, 0},
			state: Hover,
		},
		{
			name: "init",
			leave: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Init())
				assert.Equal(t, neutral(), r.mixer.ReadAll())
			},
			fly: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.Takeoff(200*time.Millisecond))
			},
			want:  [actuator.DegreesOfFreedom]int{5, -5, 30, 0},
			state: Hover,
		},
		{
			name: "failed altitude",
			leave: func(t *testing.T, r *rig) {
				r.computer.FailedAltitude()
				assert.Equal(t, Failed, r.computer.State())
				assert.Equal(t, sticks, r.mixer.ReadAll())
			},
			fly: func(t *testing.T, r *rig) {
				require.NoError(t, r.computer.EmergencyDescent())
			},
			want:  [actuator.DegreesOfFreedom]int{5, -5, EmergencyDescent, 0},
			state: EmergencyLanding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.initialize(t)
			r.engageFrom(t, sticks)

			tt.leave(t, r)
			tt.fly(t, r)
			r.fly(300 * time.Millisecond)
			r.fly(400 * time.Millisecond)

			assert.Equal(t, tt.state, r.computer.State())
			assert.Equal(t, tt.want, r.mixer.ReadAll())
		})
	}
}

// TestComputer_HoverDuringEngage tests that hover retargets the handoff
// without cutting the blend short
func TestComputer_HoverDuringEngage(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	require.NoError(t, r.computer.ManualControl())
	r.pilot.sticks = [actuator.DegreesOfFreedom]int{10, 0, 40, 20}
	r.computer.Adjust(0)
	require.NoError(t, r.computer.AutoControl())
	r.throttleLaw().out = 60

	r.fly(100 * time.Millisecond)
	require.NoError(t, r.computer.Land())
	require.NoError(t, r.computer.Hover(200*time.Millisecond))
	assert.Equal(t, EngagingAutoControl, r.computer.State())
	assert.Equal(t, r.config.Hover, r.throttleLaw().conf)

	r.fly(600 * time.Millisecond)
	assert.Equal(t, [actuator.DegreesOfFreedom]int{5, 0, 50, 10}, r.mixer.ReadAll())
	assert.Equal(t, EngagingAutoControl, r.computer.State())

	r.fly(1100 * time.Millisecond)
	assert.Equal(t, [actuator.DegreesOfFreedom]int{0, 0, 60, 0}, r.mixer.ReadAll())
	assert.Equal(t, Hover, r.computer.State())
}

func TestComputer_Stabilize(t *testing.T) {
	r := newRig(t)
	r.accel(0.2, -0.1, 0)
	require.NoError(t, r.computer.Init())

	r.accel(0.7, 0.4, 10*time.Millisecond)
	r.computer.Adjust(10 * time.Millisecond)

	r.computer.Stabilize(false)
	require.Len(t, r.elevatorLaw().updates, 1)
	assert.InDelta(t, 0.5, r.elevatorLaw().updates[0], 1e-9)
	assert.Empty(t, r.aileronLaw().updates)

	r.computer.Stabilize(true)
	require.Len(t, r.aileronLaw().updates, 1)
	assert.InDelta(t, 0.5, r.aileronLaw().updates[0], 1e-9)

	r.computer.Adjust(100 * time.Millisecond)
	r.computer.Stabilize(true)
	assert.Len(t, r.elevatorLaw().updates, 2)
	assert.Len(t, r.aileronLaw().updates, 1)
}

func TestComputer_TiltBounds(t *testing.T) {
	r := newRig(t)
	r.initialize(t)
	r.elevatorLaw().out = 500
	r.aileronLaw().out = -500

	r.accel(1, 1, 10*time.Millisecond)
	r.computer.Adjust(10 * time.Millisecond)
	r.computer.Stabilize(true)

	assert.Equal(t, MaxTilt, r.mixer.Read(actuator.Longitudinal))
	assert.Equal(t, MinTilt, r.mixer.Read(actuator.Lateral))
}

// TestComputer_ThrottleBounds tests that law output never leaves the throttle bounds
func TestComputer_ThrottleBounds(t *testing.T) {
	r := newRig(t)
	r.initialize(t)

	assert.ErrorIs(t, r.computer.SetMinThrottle(MaxThrottle), ErrInvalidBounds)
	require.NoError(t, r.computer.SetMaxThrottle(50))
	require.NoError(t, r.computer.SetMinThrottle(-20))
	lo, hi := r.computer.ThrottleBounds()
	require.Equal(t, -20, lo)
	require.Equal(t, 50, hi)

	require.NoError(t, r.computer.Takeoff(0))

	outputs := []float64{-1000, -21, -20, 0, 49.6, 50, 1000}
	for i, out := range outputs {
		at := time.Duration(i+1) * 10 * time.Millisecond
		r.throttleLaw().out = out
		r.height(50, at)
		r.computer.Adjust(at)

		throttle := r.mixer.Read(actuator.Vertical)
		assert.GreaterOrEqual(t, throttle, lo, "output %v", out)
		assert.LessOrEqual(t, throttle, hi, "output %v", out)
	}
}

func TestComputer_SetConfiguration(t *testing.T) {
	r := newRig(t)
	r.initialize(t)

	assert.ErrorIs(t, r.computer.SetHoverConfiguration(control.Configuration{}), ErrConfigurationMissing)
	assert.ErrorIs(t, r.computer.SetLandingConfiguration(control.Configuration{}), ErrConfigurationMissing)
	assert.ErrorIs(t, r.computer.SetStabilizerConfiguration(control.Configuration{}), ErrConfigurationMissing)

	require.NoError(t, r.computer.Takeoff(0))
	hover := control.Configuration{Setpoint: 150, Proportional: 1}
	require.NoError(t, r.computer.SetHoverConfiguration(hover))
	assert.Equal(t, hover, r.throttleLaw().conf)

	landing := control.Configuration{Setpoint: 0, Proportional: 2}
	require.NoError(t, r.computer.SetLandingConfiguration(landing))
	assert.Equal(t, hover, r.throttleLaw().conf)

	require.NoError(t, r.computer.Land())
	assert.Equal(t, landing, r.throttleLaw().conf)

	stabilizer := control.Configuration{Proportional: 3}
	require.NoError(t, r.computer.SetStabilizerConfiguration(stabilizer))
	assert.Equal(t, stabilizer, r.elevatorLaw().conf)
	assert.Equal(t, stabilizer, r.aileronLaw().conf)
}

// TestComputer_LogRateLimited tests the status interval and telemetry failures
func TestComputer_LogRateLimited(t *testing.T) {
	r := newRig(t)
	r.initialize(t)

	r.computer.Log(0)
	r.computer.Log(time.Second)
	r.computer.Log(MinTimeStatusMessage)
	require.Len(t, r.telemetry.records, 2)
	assert.Equal(t, MinTimeStatusMessage, r.telemetry.records[1].Time)
	assert.Equal(t, Ground, r.telemetry.records[1].State)

	r.telemetry.err = errors.New("link down")
	require.NoError(t, r.computer.Takeoff(MinTimeStatusMessage))
	r.computer.Log(2 * MinTimeStatusMessage)

	assert.Len(t, r.telemetry.records, 3)
	assert.Equal(t, Hover, r.computer.State())
}

func TestComputer_WithPID(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mixer := actuator.NewMixer(actuator.NewRecorder(), logger)

	computer, err := New(DefaultConfig(), mixer, nil, nil, logger)
	require.NoError(t, err)
	computer.HeightListener().Update(0, 0)
	require.NoError(t, computer.Init())
	require.NoError(t, computer.Takeoff(0))

	for i := 1; i <= 20; i++ {
		at := time.Duration(i) * 20 * time.Millisecond
		computer.HeightListener().Update(20, at)
		computer.Adjust(at)
	}

	throttle := mixer.Read(actuator.Vertical)
	assert.Greater(t, throttle, actuator.StopSpeed)
	assert.LessOrEqual(t, throttle, MaxThrottle)
	assert.Equal(t, Hover, computer.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "GROUND", Ground.String())
	assert.Equal(t, "ENGAGING_AUTO_CONTROL", EngagingAutoControl.String())
	assert.Equal(t, "State(42)", State(42).String())
}

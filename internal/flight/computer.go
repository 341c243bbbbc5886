// Package flight implements the flight control unit: the state machine
// that arbitrates between pilot input and closed-loop stabilization and
// keeps every commanded output inside its safe bounds.
package flight

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rotorfc/internal/actuator"
	"rotorfc/internal/control"
	"rotorfc/internal/sensor"
)

var (
	ErrInvalidTransition    = errors.New("invalid flight state transition")
	ErrConfigurationMissing = errors.New("control configuration not set")
	ErrInvalidBounds        = errors.New("invalid throttle bounds")
	ErrNotInitialized       = errors.New("flight computer not initialized")
)

// Actuator is the mixer surface the flight computer drives
type Actuator interface {
	Attach() error
	Arm() error
	SetAll(longitudinal, lateral, vertical, rotational int)
	SetAxis(axis actuator.Axis, value int)
	StopAxis(axis actuator.Axis)
	StopAll()
	Read(axis actuator.Axis) int
	ReadAll() [actuator.DegreesOfFreedom]int
}

// Pilot is the polled manual input source. Vector returns one coherent
// stick reading in axis order, in the actuator channel range.
type Pilot interface {
	Vector() [actuator.DegreesOfFreedom]int
}

// Telemetry accepts status snapshots. Its errors never affect control.
type Telemetry interface {
	Record(status Status) error
}

// Config holds the control configurations and limits for New
type Config struct {
	Hover      control.Configuration
	Landing    control.Configuration
	Stabilizer control.Configuration

	MinThrottle int
	MaxThrottle int

	// HeightFailureWindow is how long the height reading may stay stale
	// under automatic control before an altitude failure is declared.
	HeightFailureWindow time.Duration

	// NewLaw builds the control-law unit for an axis; nil selects PID.
	NewLaw func(sink control.Sink) control.Law
}

// DefaultConfig returns limits from the airframe design and conservative
// gains for a height in centimetres and forces in g.
func DefaultConfig() Config {
	return Config{
		Hover: control.Configuration{
			Setpoint:     100,
			Proportional: 0.4,
			Integral:     0.05,
			Derivative:   0.2,
			Feedforward:  20,
		},
		Landing: control.Configuration{
			Setpoint:     0,
			Proportional: 0.15,
			Integral:     0.01,
			Derivative:   0.3,
			Feedforward:  10,
		},
		Stabilizer: control.Configuration{
			Setpoint:     0,
			Proportional: 40,
			Integral:     2,
			Derivative:   8,
		},
		MinThrottle:         MinThrottle,
		MaxThrottle:         MaxThrottle,
		HeightFailureWindow: DefaultHeightFailureWindow,
	}
}

// Computer is the flight control unit. All methods are safe to call from
// multiple goroutines; they serialize on one lock and never block on I/O.
type Computer struct {
	mutex sync.Mutex

	hoverConf   control.Configuration
	landingConf control.Configuration
	accelConf   control.Configuration

	minThrottle   int
	maxThrottle   int
	failureWindow time.Duration

	mixer     Actuator
	pilot     Pilot
	telemetry Telemetry
	logger    *logrus.Logger

	throttle *output
	elevator *output
	aileron  *output

	autoThrottle control.Law
	autoElevator control.Law
	autoAileron  control.Law

	height       *sensor.Listener
	longitudinal *sensor.Listener
	lateral      *sensor.Listener

	zeroHeight       float64
	zeroLongitudinal float64
	zeroLateral      float64

	state       State
	initialized bool
	aborted     bool

	now        time.Duration
	phaseStart time.Duration
	failedAt   time.Duration
	escalate   bool
	lastLog    time.Duration
	logged     bool

	engageStarted bool
	engageStart   time.Duration
	engageTarget  State
	rudderBase    int
	lateralTick   bool
}

// New creates a flight computer in the Ground state. Every control
// configuration must carry gains; pilot and telemetry may be nil.
func New(config Config, mixer Actuator, pilot Pilot, telemetry Telemetry, logger *logrus.Logger) (*Computer, error) {
	switch {
	case config.Hover.IsZero():
		return nil, fmt.Errorf("hover: %w", ErrConfigurationMissing)
	case config.Landing.IsZero():
		return nil, fmt.Errorf("landing: %w", ErrConfigurationMissing)
	case config.Stabilizer.IsZero():
		return nil, fmt.Errorf("stabilizer: %w", ErrConfigurationMissing)
	}
	if err := validateThrottle(config.MinThrottle, config.MaxThrottle); err != nil {
		return nil, err
	}
	if mixer == nil {
		return nil, errors.New("flight computer requires an actuator mixer")
	}
	if config.HeightFailureWindow <= 0 {
		config.HeightFailureWindow = DefaultHeightFailureWindow
	}
	newLaw := config.NewLaw
	if newLaw == nil {
		newLaw = func(sink control.Sink) control.Law { return control.NewPID(sink) }
	}

	c := &Computer{
		hoverConf:     config.Hover,
		landingConf:   config.Landing,
		accelConf:     config.Stabilizer,
		minThrottle:   config.MinThrottle,
		maxThrottle:   config.MaxThrottle,
		failureWindow: config.HeightFailureWindow,
		mixer:         mixer,
		pilot:         pilot,
		telemetry:     telemetry,
		logger:        logger,
		height:        sensor.NewListener(),
		longitudinal:  sensor.NewListener(),
		lateral:       sensor.NewListener(),
		state:         Ground,
		engageTarget:  Hover,
	}

	throttleBounds := func() (int, int) { return c.minThrottle, c.maxThrottle }
	tiltBounds := func() (int, int) { return MinTilt, MaxTilt }
	c.throttle = newOutput(actuator.Vertical, mixer, actuator.MinSpeed, throttleBounds)
	c.elevator = newOutput(actuator.Longitudinal, mixer, actuator.StopSpeed, tiltBounds)
	c.aileron = newOutput(actuator.Lateral, mixer, actuator.StopSpeed, tiltBounds)

	c.autoThrottle = newLaw(c.throttle)
	c.autoElevator = newLaw(c.elevator)
	c.autoAileron = newLaw(c.aileron)
	c.autoThrottle.Configure(c.hoverConf)
	c.autoElevator.Configure(c.accelConf)
	c.autoAileron.Configure(c.accelConf)

	return c, nil
}

// HeightListener is the sink for the downward range sensor
func (c *Computer) HeightListener() sensor.Sink { return c.height }

// LongitudinalListener is the sink for the longitudinal accelerometer
func (c *Computer) LongitudinalListener() sensor.Sink { return c.longitudinal }

// LateralListener is the sink for the lateral accelerometer
func (c *Computer) LateralListener() sensor.Sink { return c.lateral }

// State returns the current flight state
func (c *Computer) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Aborted reports whether Abort has latched neutral actuation
func (c *Computer) Aborted() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.aborted
}

// Init captures the zero references, arms the actuators and zeroes every
// channel. It clears a latched abort.
func (c *Computer) Init() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if r, ok := c.height.Latest(); ok {
		c.zeroHeight = r.Value
	}
	if r, ok := c.longitudinal.Latest(); ok {
		c.zeroLongitudinal = r.Value
	}
	if r, ok := c.lateral.Latest(); ok {
		c.zeroLateral = r.Value
	}

	if err := c.mixer.Attach(); err != nil {
		return fmt.Errorf("failed to initialize flight computer: %w", err)
	}
	if err := c.mixer.Arm(); err != nil {
		return fmt.Errorf("failed to initialize flight computer: %w", err)
	}
	c.mixer.StopAll()

	c.resetLaws()
	c.disengage(actuator.StopSpeed, actuator.StopSpeed, actuator.StopSpeed)
	c.aborted = false
	c.initialized = true

	c.logger.WithFields(logrus.Fields{
		"zero_height":       c.zeroHeight,
		"zero_longitudinal": c.zeroLongitudinal,
		"zero_lateral":      c.zeroLateral,
	}).Info("Flight computer initialized")

	c.transition(Ground)
	return nil
}

// Takeoff starts closed-loop altitude hold toward the hover setpoint
func (c *Computer) Takeoff(now time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.initialized {
		return fmt.Errorf("takeoff: %w", ErrNotInitialized)
	}
	if c.state != Ground || c.aborted {
		return c.invalid("takeoff")
	}
	c.advance(now)

	c.resetLaws()
	c.disengage(
		c.mixer.Read(actuator.Vertical),
		c.mixer.Read(actuator.Longitudinal),
		c.mixer.Read(actuator.Lateral),
	)
	c.autoThrottle.Configure(c.hoverConf)
	c.autoElevator.Configure(c.accelConf)
	c.autoAileron.Configure(c.accelConf)
	c.phaseStart = c.now

	c.transition(Hover)
	return nil
}

// Hover (re)installs the hover configuration. Calling it from Hover only
// reinstalls the same configuration. During engagement the blend runs to
// completion and then hands off to Hover.
func (c *Computer) Hover(now time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.state.automatic() {
		return c.invalid("hover")
	}
	c.advance(now)

	c.autoThrottle.Configure(c.hoverConf)
	if c.state == EngagingAutoControl {
		c.engageTarget = Hover
		return nil
	}
	c.transition(Hover)
	return nil
}

// Ground cuts the throttle and disengages the control laws
func (c *Computer) Ground() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state.fault() {
		return c.invalid("ground")
	}
	c.mixer.StopAll()
	c.resetLaws()
	c.disengage(actuator.StopSpeed, actuator.StopSpeed, actuator.StopSpeed)
	c.transition(Ground)
	return nil
}

// Land installs the landing configuration. Below ThrottleOffHeight the
// throttle is cut instead of being controlled.
func (c *Computer) Land() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch c.state {
	case Hover:
		c.autoThrottle.Configure(c.landingConf)
		c.transition(Landing)
	case EngagingAutoControl:
		c.autoThrottle.Configure(c.landingConf)
		c.engageTarget = Landing
		c.logger.Info("Landing requested during auto control engagement")
	default:
		return c.invalid("land")
	}
	return nil
}

// FailedAltitude declares the height reading untrustworthy
func (c *Computer) FailedAltitude() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failedAltitude()
}

// EmergencyDescent abandons altitude control and commands the fixed
// open-loop descent throttle
func (c *Computer) EmergencyDescent() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != Failed || c.aborted {
		return c.invalid("emergency descent")
	}
	c.emergencyDescent()
	return nil
}

// ManualControl hands every channel to the pilot
func (c *Computer) ManualControl() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.initialized {
		return fmt.Errorf("manual control: %w", ErrNotInitialized)
	}
	c.disengage(
		c.mixer.Read(actuator.Vertical),
		c.mixer.Read(actuator.Longitudinal),
		c.mixer.Read(actuator.Lateral),
	)
	c.transition(ManualControl)
	return nil
}

// AutoControl begins the handoff from the pilot to the control laws. The
// law outputs are blended in from the current manual command over
// EngageDuration, starting at the next tick.
func (c *Computer) AutoControl() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != ManualControl {
		return c.invalid("auto control")
	}

	c.resetLaws()
	c.autoThrottle.Configure(c.hoverConf)
	c.autoElevator.Configure(c.accelConf)
	c.autoAileron.Configure(c.accelConf)

	c.throttle.blend(c.mixer.Read(actuator.Vertical))
	c.elevator.blend(c.mixer.Read(actuator.Longitudinal))
	c.aileron.blend(c.mixer.Read(actuator.Lateral))

	c.engageStarted = false
	c.engageTarget = Hover
	c.phaseStart = c.now
	c.transition(EngagingAutoControl)
	return nil
}

// Abort forces every channel to neutral and latches until Init. It takes
// priority over every other operation, including ticks already queued.
func (c *Computer) Abort() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.aborted = true
	c.mixer.StopAll()
	c.resetLaws()
	c.disengage(actuator.StopSpeed, actuator.StopSpeed, actuator.StopSpeed)
	c.failedAt = c.now

	c.logger.WithField("state", c.state.String()).Warn("Flight aborted")
	if c.state != Ground {
		c.transition(Failed)
	}
}

// SetHoverConfiguration replaces the hover gains. A running hover picks
// them up on its next control-law update.
func (c *Computer) SetHoverConfiguration(conf control.Configuration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if conf.IsZero() {
		return fmt.Errorf("hover: %w", ErrConfigurationMissing)
	}
	c.hoverConf = conf
	if c.state == Hover || (c.state == EngagingAutoControl && c.engageTarget == Hover) {
		c.autoThrottle.Configure(conf)
	}
	return nil
}

// SetLandingConfiguration replaces the landing gains
func (c *Computer) SetLandingConfiguration(conf control.Configuration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if conf.IsZero() {
		return fmt.Errorf("landing: %w", ErrConfigurationMissing)
	}
	c.landingConf = conf
	if c.state == Landing || (c.state == EngagingAutoControl && c.engageTarget == Landing) {
		c.autoThrottle.Configure(conf)
	}
	return nil
}

// SetStabilizerConfiguration replaces the elevator and aileron gains
func (c *Computer) SetStabilizerConfiguration(conf control.Configuration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if conf.IsZero() {
		return fmt.Errorf("stabilizer: %w", ErrConfigurationMissing)
	}
	c.accelConf = conf
	c.autoElevator.Configure(conf)
	c.autoAileron.Configure(conf)
	return nil
}

// SetMinThrottle replaces the lower throttle bound
func (c *Computer) SetMinThrottle(v int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	v = actuator.Clamp(v, actuator.MinSpeed, actuator.MaxSpeed)
	if err := validateThrottle(v, c.maxThrottle); err != nil {
		return err
	}
	c.minThrottle = v
	return nil
}

// SetMaxThrottle replaces the upper throttle bound
func (c *Computer) SetMaxThrottle(v int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	v = actuator.Clamp(v, actuator.MinSpeed, actuator.MaxSpeed)
	if err := validateThrottle(c.minThrottle, v); err != nil {
		return err
	}
	c.maxThrottle = v
	return nil
}

// ThrottleBounds returns the current throttle bounds
func (c *Computer) ThrottleBounds() (int, int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.minThrottle, c.maxThrottle
}

func validateThrottle(min, max int) error {
	if min < actuator.MinSpeed || max > actuator.MaxSpeed || min >= max {
		return fmt.Errorf("%w: min %d, max %d", ErrInvalidBounds, min, max)
	}
	return nil
}

// The helpers below expect the mutex to be held.

func (c *Computer) invalid(op string) error {
	return fmt.Errorf("%s from %s: %w", op, c.state, ErrInvalidTransition)
}

func (c *Computer) transition(to State) {
	if c.state == to {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"from": c.state.String(),
		"to":   to.String(),
		"time": c.now,
	}).Info("Flight state changed")
	c.state = to
}

// advance moves the tick clock forward; it never runs backwards
func (c *Computer) advance(now time.Duration) {
	if now > c.now {
		c.now = now
	}
}

func (c *Computer) resetLaws() {
	c.autoThrottle.Reset()
	c.autoElevator.Reset()
	c.autoAileron.Reset()
}

func (c *Computer) failedAltitude() {
	if c.state == EngagingAutoControl {
		c.releaseHandoff()
	}
	if c.state != Failed {
		c.failedAt = c.now
		c.escalate = c.state.automatic() || c.state == EmergencyLanding
	}
	c.logger.WithFields(logrus.Fields{
		"state": c.state.String(),
		"time":  c.now,
	}).Warn("Altitude reading failed")
	c.transition(Failed)
}

func (c *Computer) emergencyDescent() {
	c.autoThrottle.Reset()
	c.throttle.force(EmergencyDescent)
	c.transition(EmergencyLanding)
}

func (c *Computer) completeHandoff() {
	c.throttle.setAuthority(1)
	c.elevator.setAuthority(1)
	c.aileron.setAuthority(1)
	c.mixer.StopAxis(actuator.Rotational)
	c.engageStarted = false
	c.engageTarget = Hover
}

// releaseHandoff ends engagement keeping the commands already written
func (c *Computer) releaseHandoff() {
	c.disengage(c.throttle.current, c.elevator.current, c.aileron.current)
	c.mixer.StopAxis(actuator.Rotational)
}

// disengage drops any pending handoff and gives every output full
// authority from the given commands
func (c *Computer) disengage(throttle, elevator, aileron int) {
	c.throttle.reset(throttle)
	c.elevator.reset(elevator)
	c.aileron.reset(aileron)
	c.engageStarted = false
	c.engageTarget = Hover
}

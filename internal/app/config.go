package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rotorfc/internal/actuator"
	"rotorfc/internal/control"
	"rotorfc/internal/flight"
	"rotorfc/internal/sensor"
)

// Default configuration constants
const (
	DefaultTickInterval = 20 * time.Millisecond
	DefaultSerialDevice = "/dev/ttyUSB0"
	DefaultBaudRate     = sensor.DefaultBaudRate
	DefaultLogDir       = "./logs"
	DefaultLogMaxDays   = 14
	DefaultSimDuration  = 20 * time.Second
	DefaultEnvFile      = ".env"
	EnvPrefix           = "ROTORFC_"
)

// Config holds application configuration
type Config struct {
	TickInterval time.Duration
	SerialDevice string
	BaudRate     int
	PWM          actuator.PWMConfig
	Gain         int

	MinThrottle         int
	MaxThrottle         int
	Hover               control.Configuration
	Landing             control.Configuration
	Stabilizer          control.Configuration
	HeightFailureWindow time.Duration

	LogDir       string
	LogRotateUTC bool
	LogMaxDays   int

	Verbose     bool
	Simulate    bool
	SimDuration time.Duration
	ShowVersion bool
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	fc := flight.DefaultConfig()
	return Config{
		TickInterval:        DefaultTickInterval,
		SerialDevice:        DefaultSerialDevice,
		BaudRate:            DefaultBaudRate,
		PWM:                 actuator.DefaultPWMConfig(),
		Gain:                actuator.DefaultGain,
		MinThrottle:         fc.MinThrottle,
		MaxThrottle:         fc.MaxThrottle,
		Hover:               fc.Hover,
		Landing:             fc.Landing,
		Stabilizer:          fc.Stabilizer,
		HeightFailureWindow: fc.HeightFailureWindow,
		LogDir:              DefaultLogDir,
		LogRotateUTC:        true,
		LogMaxDays:          DefaultLogMaxDays,
		SimDuration:         DefaultSimDuration,
	}
}

// FlightConfig returns the flight computer configuration
func (c Config) FlightConfig() flight.Config {
	return flight.Config{
		Hover:               c.Hover,
		Landing:             c.Landing,
		Stabilizer:          c.Stabilizer,
		MinThrottle:         c.MinThrottle,
		MaxThrottle:         c.MaxThrottle,
		HeightFailureWindow: c.HeightFailureWindow,
	}
}

// Validate checks values the flight computer does not check itself
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.TickInterval > flight.MinTimeAccel {
		return fmt.Errorf("tick interval %s is longer than the accelerometer freshness window %s", c.TickInterval, flight.MinTimeAccel)
	}
	if c.LogDir == "" {
		return errors.New("log directory is required")
	}
	if c.Simulate && c.SimDuration <= 0 {
		return fmt.Errorf("simulation duration must be positive, got %s", c.SimDuration)
	}
	if !c.Simulate && c.SerialDevice == "" {
		return errors.New("serial device is required unless simulating")
	}
	if !c.Simulate {
		if err := c.PWM.Validate(); err != nil {
			return fmt.Errorf("invalid PWM pin map: %w", err)
		}
	}
	return nil
}

// LoadConfig returns the defaults overridden by ROTORFC_* environment
// variables. Variables are first loaded from envFile when it exists; a
// missing default .env is not an error.
func LoadConfig(envFile string) (Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if envFile != DefaultEnvFile || !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	c := DefaultConfig()
	e := &env{}

	c.TickInterval = e.duration("TICK_INTERVAL", c.TickInterval)
	c.SerialDevice = e.string("SERIAL_DEVICE", c.SerialDevice)
	c.BaudRate = e.int("BAUD_RATE", c.BaudRate)
	c.PWM.Pins = e.pins("PWM_PINS", c.PWM.Pins)
	c.PWM.Reverse = e.reverse("PWM_REVERSE", c.PWM.Reverse)
	c.Gain = e.int("GAIN", c.Gain)

	c.MinThrottle = e.int("MIN_THROTTLE", c.MinThrottle)
	c.MaxThrottle = e.int("MAX_THROTTLE", c.MaxThrottle)
	c.Hover = e.configuration("HOVER", c.Hover)
	c.Landing = e.configuration("LANDING", c.Landing)
	c.Stabilizer = e.configuration("STABILIZER", c.Stabilizer)
	c.HeightFailureWindow = e.duration("HEIGHT_FAILURE_WINDOW", c.HeightFailureWindow)

	c.LogDir = e.string("LOG_DIR", c.LogDir)
	c.LogRotateUTC = e.bool("LOG_UTC", c.LogRotateUTC)
	c.LogMaxDays = e.int("LOG_MAX_DAYS", c.LogMaxDays)

	c.Verbose = e.bool("VERBOSE", c.Verbose)
	c.Simulate = e.bool("SIMULATE", c.Simulate)
	c.SimDuration = e.duration("SIM_DURATION", c.SimDuration)

	if e.err != nil {
		return Config{}, e.err
	}
	return c, nil
}

// env reads prefixed variables and keeps the first parse error
type env struct {
	err error
}

func (e *env) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (e *env) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, value, err)
	}
}

func (e *env) string(key, fallback string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return n
}

func (e *env) float(key string, fallback float64) float64 {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return f
}

func (e *env) bool(key string, fallback bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return d
}

func (e *env) configuration(phase string, fallback control.Configuration) control.Configuration {
	return control.Configuration{
		Setpoint:     e.float(phase+"_SETPOINT", fallback.Setpoint),
		Proportional: e.float(phase+"_KP", fallback.Proportional),
		Integral:     e.float(phase+"_KI", fallback.Integral),
		Derivative:   e.float(phase+"_KD", fallback.Derivative),
		Feedforward:  e.float(phase+"_FEEDFORWARD", fallback.Feedforward),
	}
}

// pins parses a comma separated pin list in axis order, optionally
// followed by the gain pin
func (e *env) pins(key string, fallback [actuator.DegreesOfFreedom + 1]uint8) [actuator.DegreesOfFreedom + 1]uint8 {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}

	parts := strings.Split(value, ",")
	if len(parts) < actuator.DegreesOfFreedom || len(parts) > actuator.DegreesOfFreedom+1 {
		e.fail(key, value, fmt.Errorf("expected %d or %d pins", actuator.DegreesOfFreedom, actuator.DegreesOfFreedom+1))
		return fallback
	}

	var pins [actuator.DegreesOfFreedom + 1]uint8
	for i, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			e.fail(key, value, err)
			return fallback
		}
		pins[i] = uint8(n)
	}
	return pins
}

// reverse parses a comma separated list of channel names to reverse
func (e *env) reverse(key string, fallback [actuator.DegreesOfFreedom + 1]bool) [actuator.DegreesOfFreedom + 1]bool {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}

	var reverse [actuator.DegreesOfFreedom + 1]bool
	for _, name := range strings.Split(value, ",") {
		ch, err := actuator.ParseChannel(strings.TrimSpace(name))
		if err != nil {
			e.fail(key, value, err)
			return fallback
		}
		reverse[ch] = true
	}
	return reverse
}

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"rotorfc/internal/actuator"
	"rotorfc/internal/flight"
	"rotorfc/internal/pilot"
	"rotorfc/internal/sensor"
	"rotorfc/internal/sim"
	"rotorfc/internal/telemetry"
)

// simulatedWind is the constant crosswind applied in simulation, in g
const simulatedWind = 0.02

// Application represents the main application
type Application struct {
	config   Config
	logger   *logrus.Logger
	binding  actuator.Binding
	mixer    *actuator.Mixer
	computer *flight.Computer
	sticks   *pilot.Sticks
	link     *sensor.Link
	rotator  *telemetry.Rotator
	status   *telemetry.Writer
	airframe *sim.Airframe
	plan     []planStep
	started  time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
}

// planStep is one scripted command of a simulated flight
type planStep struct {
	at      time.Duration
	command string
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start runs the flight controller until a shutdown signal arrives or the
// simulated flight completes
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"simulate":   app.config.Simulate,
	}).Info("Starting flight controller")

	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := app.initializeComponents(); err != nil {
		app.shutdown()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	app.run()

	select {
	case <-sigChan:
		app.logger.Info("Received shutdown signal")
		app.computer.Abort()
	case <-app.done:
		app.logger.Info("Simulated flight finished")
	}
	app.shutdown()
	return nil
}

// initializeComponents builds and wires all application components
func (app *Application) initializeComponents() error {
	var err error
	app.started = time.Now()

	if app.config.Simulate {
		app.binding = actuator.NewRecorder()
	} else {
		app.binding = actuator.NewPWMBinding(app.config.PWM, app.logger)
	}
	app.mixer = actuator.NewMixer(app.binding, app.logger)

	app.rotator, err = telemetry.NewRotator(app.config.LogDir, app.config.LogRotateUTC, app.config.LogMaxDays, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize status log: %w", err)
	}
	app.status = telemetry.NewWriter(app.rotator, app.logger)

	app.sticks = pilot.NewSticks()
	app.computer, err = flight.New(app.config.FlightConfig(), app.mixer, app.sticks, app.status, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create flight computer: %w", err)
	}

	if err := app.mixer.Attach(); err != nil {
		return err
	}
	if err := app.mixer.Arm(); err != nil {
		return err
	}
	app.mixer.AdjustGain(app.config.Gain)

	if app.config.Simulate {
		app.airframe = sim.NewAirframe(app.mixer, sim.Sensors{
			Height:       app.computer.HeightListener(),
			Longitudinal: app.computer.LongitudinalListener(),
			Lateral:      app.computer.LateralListener(),
		}, app.logger)
		app.airframe.SetWind(simulatedWind, -simulatedWind)
		app.plan = flightPlan(app.config.SimDuration)
		return nil
	}

	app.link = sensor.NewLink(sensor.LinkConfig{
		Device:   app.config.SerialDevice,
		BaudRate: app.config.BaudRate,
	}, sensor.Sinks{
		Height:       app.computer.HeightListener(),
		Longitudinal: app.computer.LongitudinalListener(),
		Lateral:      app.computer.LateralListener(),
		Pilot:        app.sticks,
		Commands:     app,
	}, app.now, app.logger)

	if err := app.computer.Init(); err != nil {
		return fmt.Errorf("failed to initialize flight computer: %w", err)
	}
	return nil
}

// flightPlan scripts a takeoff, hover and landing over duration
func flightPlan(duration time.Duration) []planStep {
	return []planStep{
		{at: 0, command: "init"},
		{at: 500 * time.Millisecond, command: "takeoff"},
		{at: duration * 2 / 3, command: "land"},
		{at: duration, command: "ground"},
	}
}

// run starts the application goroutines
func (app *Application) run() {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.controlLoop()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.rotator.Start(app.ctx)
	}()

	if app.link != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.link.Start(app.ctx); err != nil {
				app.logger.WithError(err).Error("Sensor link failed")
			}
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics()
	}()

	app.logger.Info("All components started successfully")
}

// controlLoop runs one control tick per tick interval
func (app *Application) controlLoop() {
	ticker := time.NewTicker(app.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			app.logger.Info("Control loop stopped")
			return
		case <-ticker.C:
			app.step()
		}
	}
}

// step advances the simulation if there is one, then adjusts and logs
func (app *Application) step() {
	if app.airframe != nil {
		app.airframe.Step(app.config.TickInterval)
		app.advancePlan()
	}

	now := app.now()
	app.computer.Adjust(now)
	app.computer.Log(now)
}

func (app *Application) advancePlan() {
	now := app.airframe.Now()
	for len(app.plan) > 0 && app.plan[0].at <= now {
		app.Command(app.plan[0].command)
		app.plan = app.plan[1:]
	}
	if len(app.plan) == 0 {
		app.doneOnce.Do(func() { close(app.done) })
	}
}

// now is the control clock: simulation time, or time since start
func (app *Application) now() time.Duration {
	if app.airframe != nil {
		return app.airframe.Now()
	}
	return time.Since(app.started)
}

// Command runs a named flight computer operation. It receives mode
// commands from the sensor link and the simulated flight plan.
func (app *Application) Command(name string) {
	now := app.now()

	var err error
	switch name {
	case "init":
		err = app.computer.Init()
	case "takeoff":
		err = app.computer.Takeoff(now)
	case "hover":
		err = app.computer.Hover(now)
	case "land":
		err = app.computer.Land()
	case "ground":
		err = app.computer.Ground()
	case "manual":
		err = app.computer.ManualControl()
	case "auto":
		err = app.computer.AutoControl()
	case "emergency":
		err = app.computer.EmergencyDescent()
	case "failed":
		app.computer.FailedAltitude()
	case "abort":
		app.computer.Abort()
	default:
		err = fmt.Errorf("unknown command %q", name)
	}

	entry := app.logger.WithFields(logrus.Fields{
		"command": name,
		"time":    now,
		"state":   app.computer.State().String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Flight command rejected")
		return
	}
	entry.Info("Flight command executed")
}

// reportStatistics reports actuator and link statistics periodically
func (app *Application) reportStatistics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			fields := logrus.Fields{
				"state":          app.computer.State().String(),
				"channels":       app.mixer.ReadAll(),
				"write_failures": app.mixer.WriteFailures(),
				"status_lines":   app.status.Written(),
			}
			if app.link != nil {
				stats := app.link.Stats()
				fields["link_records"] = stats.Records
				fields["link_malformed"] = stats.Malformed
			}
			app.logger.WithFields(fields).Info("Flight controller statistics")
		}
	}
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("All goroutines finished")
	case <-time.After(5 * time.Second):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	if app.mixer != nil {
		if err := app.mixer.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to release actuators")
		}
	}
	if app.rotator != nil {
		if err := app.rotator.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close status log")
		}
	}

	app.logger.Info("Shutdown completed")
}

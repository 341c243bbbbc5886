package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rotorfc/internal/app"
)

func main() {
	if err := newRootCommand(&rootOptions{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds the parsed command line
type rootOptions struct {
	envFile string
	flags   app.Config
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rotorfc",
		Short: "Rotorcraft flight controller",
		Long: `Rotorcraft flight controller.

Reads height and acceleration from a serial sensor link, runs the flight
state machine on a fixed tick and drives four servo channels through the
Raspberry Pi PWM outputs. Status snapshots are written to daily rotated
logs.

Settings are read from ROTORFC_* environment variables (optionally from a
.env file); flags given on the command line take precedence.

Example usage:
  rotorfc --device /dev/ttyAMA0 --max-throttle 60
  rotorfc --simulate --sim-duration 30s --verbose`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.flags.ShowVersion {
				app.ShowVersion()
				return nil
			}

			config, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			return app.NewApplication(config).Start()
		},
	}

	defaults := app.DefaultConfig()
	flags := &opts.flags

	rootCmd.Flags().StringVar(&opts.envFile, "env-file", app.DefaultEnvFile, "Environment file to load")
	rootCmd.Flags().DurationVarP(&flags.TickInterval, "tick", "t", defaults.TickInterval, "Control loop tick interval")
	rootCmd.Flags().StringVarP(&flags.SerialDevice, "device", "d", defaults.SerialDevice, "Serial sensor link device")
	rootCmd.Flags().IntVarP(&flags.BaudRate, "baud", "b", defaults.BaudRate, "Serial sensor link baud rate")
	rootCmd.Flags().IntVar(&flags.MinThrottle, "min-throttle", defaults.MinThrottle, "Lower throttle bound under automatic control")
	rootCmd.Flags().IntVar(&flags.MaxThrottle, "max-throttle", defaults.MaxThrottle, "Upper throttle bound under automatic control")
	rootCmd.Flags().Float64Var(&flags.Hover.Setpoint, "hover-height", defaults.Hover.Setpoint, "Hover height above the takeoff reference")
	rootCmd.Flags().DurationVar(&flags.HeightFailureWindow, "failure-window", defaults.HeightFailureWindow, "Height staleness tolerated before an altitude failure")
	rootCmd.Flags().IntVarP(&flags.Gain, "gain", "g", defaults.Gain, "Auxiliary gain channel value (0-100)")
	rootCmd.Flags().StringVarP(&flags.LogDir, "log-dir", "l", defaults.LogDir, "Status log directory")
	rootCmd.Flags().BoolVarP(&flags.LogRotateUTC, "utc", "u", defaults.LogRotateUTC, "Use UTC for log rotation")
	rootCmd.Flags().IntVar(&flags.LogMaxDays, "log-max-days", defaults.LogMaxDays, "Days of status logs to keep")
	rootCmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&flags.Simulate, "simulate", false, "Fly a simulated airframe instead of hardware")
	rootCmd.Flags().DurationVar(&flags.SimDuration, "sim-duration", defaults.SimDuration, "Length of the simulated flight")
	rootCmd.Flags().BoolVar(&flags.ShowVersion, "version", false, "Show version information")

	return rootCmd
}

// resolve loads the environment configuration and applies every flag
// that was set explicitly
func (opts *rootOptions) resolve(cmd *cobra.Command) (app.Config, error) {
	config, err := app.LoadConfig(opts.envFile)
	if err != nil {
		return app.Config{}, err
	}

	flags := opts.flags
	overrides := []struct {
		name  string
		apply func()
	}{
		{"tick", func() { config.TickInterval = flags.TickInterval }},
		{"device", func() { config.SerialDevice = flags.SerialDevice }},
		{"baud", func() { config.BaudRate = flags.BaudRate }},
		{"min-throttle", func() { config.MinThrottle = flags.MinThrottle }},
		{"max-throttle", func() { config.MaxThrottle = flags.MaxThrottle }},
		{"hover-height", func() { config.Hover.Setpoint = flags.Hover.Setpoint }},
		{"failure-window", func() { config.HeightFailureWindow = flags.HeightFailureWindow }},
		{"gain", func() { config.Gain = flags.Gain }},
		{"log-dir", func() { config.LogDir = flags.LogDir }},
		{"utc", func() { config.LogRotateUTC = flags.LogRotateUTC }},
		{"log-max-days", func() { config.LogMaxDays = flags.LogMaxDays }},
		{"verbose", func() { config.Verbose = flags.Verbose }},
		{"simulate", func() { config.Simulate = flags.Simulate }},
		{"sim-duration", func() { config.SimDuration = flags.SimDuration }},
	}

	for _, o := range overrides {
		if cmd.Flags().Changed(o.name) {
			o.apply()
		}
	}
	return config, nil
}

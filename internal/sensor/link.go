package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Link defaults
const (
	DefaultBaudRate    = 115200
	linkReadTimeout    = 100 * time.Millisecond
	maxPendingLineSize = 256
)

// PilotSink receives stick positions decoded from the link
type PilotSink interface {
	Set(longitudinal, lateral, vertical, rotational int)
}

// CommandSink receives mode commands decoded from the link
type CommandSink interface {
	Command(name string)
}

// Sinks are the destinations for decoded link records. Nil entries are
// skipped.
type Sinks struct {
	Height       Sink
	Longitudinal Sink
	Lateral      Sink
	Pilot        PilotSink
	Commands     CommandSink
}

// LinkConfig selects the serial device
type LinkConfig struct {
	Device   string
	BaudRate int
}

// LinkStats counts link traffic
type LinkStats struct {
	Records   uint64
	Malformed uint64
	Overflows uint64
}

// Link reads newline-delimited sensor and stick records from a serial
// microcontroller and pushes them into the sinks, timestamped with clock.
type Link struct {
	config  LinkConfig
	sinks   Sinks
	clock   func() time.Duration
	logger  *logrus.Logger
	pending []byte

	mutex sync.Mutex
	stats LinkStats
}

// NewLink creates a link; it does not open the device
func NewLink(config LinkConfig, sinks Sinks, clock func() time.Duration, logger *logrus.Logger) *Link {
	if config.BaudRate == 0 {
		config.BaudRate = DefaultBaudRate
	}
	return &Link{
		config:  config,
		sinks:   sinks,
		clock:   clock,
		logger:  logger,
		pending: make([]byte, 0, maxPendingLineSize),
	}
}

// Start opens the serial device and reads until ctx is cancelled
func (l *Link) Start(ctx context.Context) error {
	if l.config.Device == "" {
		return errors.New("no serial device configured")
	}

	port, err := serial.Open(l.config.Device, &serial.Mode{BaudRate: l.config.BaudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial device %s: %w", l.config.Device, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(linkReadTimeout); err != nil {
		return fmt.Errorf("failed to set serial read timeout: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"device":    l.config.Device,
		"baud_rate": l.config.BaudRate,
	}).Info("Sensor link opened")

	buf := make([]byte, 128)
	for {
		select {
		case <-ctx.Done():
			stats := l.Stats()
			l.logger.WithFields(logrus.Fields{
				"records":   stats.Records,
				"malformed": stats.Malformed,
			}).Info("Sensor link stopped")
			return nil
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			return fmt.Errorf("failed to read serial device: %w", err)
		}
		if n > 0 {
			l.Feed(buf[:n])
		}
	}
}

// Feed decodes raw link bytes. Partial lines are kept until their newline
// arrives.
func (l *Link) Feed(data []byte) {
	for _, b := range data {
		if b != '\n' {
			if len(l.pending) >= maxPendingLineSize {
				l.count(func(s *LinkStats) { s.Overflows++ })
				l.pending = l.pending[:0]
			}
			l.pending = append(l.pending, b)
			continue
		}

		line := string(l.pending)
		l.pending = l.pending[:0]
		if err := l.dispatch(line); err != nil {
			l.count(func(s *LinkStats) { s.Malformed++ })
			l.logger.WithError(err).Debug("Skipping link line")
		}
	}
}

// Stats returns the link counters
func (l *Link) Stats() LinkStats {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.stats
}

func (l *Link) count(update func(s *LinkStats)) {
	l.mutex.Lock()
	update(&l.stats)
	l.mutex.Unlock()
}

func (l *Link) dispatch(line string) error {
	rec, err := ParseLine(line)
	if err != nil {
		return err
	}
	l.count(func(s *LinkStats) { s.Records++ })

	at := l.clock()
	switch rec.Kind {
	case KindHeight:
		push(l.sinks.Height, rec.Value, at)
	case KindLongitudinal:
		push(l.sinks.Longitudinal, rec.Value, at)
	case KindLateral:
		push(l.sinks.Lateral, rec.Value, at)
	case KindPilot:
		if l.sinks.Pilot != nil {
			l.sinks.Pilot.Set(rec.Sticks[0], rec.Sticks[1], rec.Sticks[2], rec.Sticks[3])
		}
	case KindCommand:
		if l.sinks.Commands != nil {
			l.sinks.Commands.Command(rec.Command)
		}
	}
	return nil
}

func push(sink Sink, value float64, at time.Duration) {
	if sink != nil {
		sink.Update(value, at)
	}
}

package telemetry

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rotorfc/internal/actuator"
	"rotorfc/internal/flight"
)

// RecordStatus tags status lines
const RecordStatus = "STA"

// Writer formats flight status snapshots as CSV lines
type Writer struct {
	out    io.Writer
	logger *logrus.Logger
	clock  func() time.Time

	mutex   sync.Mutex
	written uint64
}

// NewWriter creates a status writer appending to out
func NewWriter(out io.Writer, logger *logrus.Logger) *Writer {
	return &Writer{
		out:    out,
		logger: logger,
		clock:  time.Now,
	}
}

// Record writes one status line
func (w *Writer) Record(status flight.Status) error {
	line := w.format(status, w.clock())

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if _, err := io.WriteString(w.out, line+"\n"); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	w.written++
	w.logger.WithFields(logrus.Fields{
		"state":   status.State.String(),
		"written": w.written,
	}).Debug("Status recorded")
	return nil
}

// Written returns how many lines have been written
func (w *Writer) Written() uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.written
}

func (w *Writer) format(status flight.Status, now time.Time) string {
	fields := []string{
		RecordStatus,
		now.Format("2006/01/02"),
		now.Format("15:04:05.000"),
		status.State.String(),
		strconv.FormatInt(status.Time.Milliseconds(), 10),
		formatFloat(status.RelativeHeight()),
		formatFloat(status.Longitudinal.Value - status.ZeroLongitudinal),
		formatFloat(status.Lateral.Value - status.ZeroLateral),
		strconv.Itoa(status.Channels[actuator.Vertical]),
		strconv.Itoa(status.Channels[actuator.Longitudinal]),
		strconv.Itoa(status.Channels[actuator.Lateral]),
		strconv.Itoa(status.Channels[actuator.Rotational]),
		strconv.FormatBool(status.Aborted),
	}
	return strings.Join(fields, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

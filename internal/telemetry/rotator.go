// Package telemetry records flight status snapshots to daily status logs.
package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	filePrefix = "flight_"
	dateLayout = "2006-01-02"
)

// ErrClosed is returned by writes after Close
var ErrClosed = errors.New("status log closed")

// Rotator owns the current day's status log. When the date changes the
// previous file is closed and gzip compressed in the background.
type Rotator struct {
	logDir  string
	useUTC  bool
	maxDays int
	logger  *logrus.Logger
	clock   func() time.Time

	mutex       sync.RWMutex
	currentFile *os.File
	currentDate string
	compressing sync.WaitGroup
}

// NewRotator opens today's status log in logDir. Files older than maxDays
// are removed on each rotation; maxDays <= 0 keeps everything.
func NewRotator(logDir string, useUTC bool, maxDays int, logger *logrus.Logger) (*Rotator, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Rotator{
		logDir:  logDir,
		useUTC:  useUTC,
		maxDays: maxDays,
		logger:  logger,
		clock:   time.Now,
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if err := r.open(r.today()); err != nil {
		return nil, fmt.Errorf("failed to initialize status log: %w", err)
	}
	return r, nil
}

// Start checks for a date change every minute until ctx is done
func (r *Rotator) Start(ctx context.Context) {
	r.logger.Info("Starting status log rotator")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Status log rotator stopping")
			return
		case <-ticker.C:
			if err := r.Rotate(); err != nil {
				r.logger.WithError(err).Error("Failed to rotate status log")
			}
		}
	}
}

// Rotate switches to a new file if the date has changed
func (r *Rotator) Rotate() error {
	date := r.today()

	r.mutex.Lock()
	if r.currentFile == nil {
		r.mutex.Unlock()
		return ErrClosed
	}
	if date == r.currentDate {
		r.mutex.Unlock()
		return nil
	}

	r.logger.WithFields(logrus.Fields{
		"old_date": r.currentDate,
		"new_date": date,
	}).Info("Rotating status log")

	old := r.currentDate
	if err := r.currentFile.Close(); err != nil {
		r.logger.WithError(err).Error("Failed to close old status log")
	}
	r.currentFile = nil

	err := r.open(date)
	r.mutex.Unlock()

	r.compressing.Add(1)
	go func() {
		defer r.compressing.Done()
		r.compress(old)
	}()

	if r.maxDays > 0 {
		if cleanupErr := r.CleanupOldLogs(r.maxDays); cleanupErr != nil {
			r.logger.WithError(cleanupErr).Warn("Failed to clean up old status logs")
		}
	}
	return err
}

// Write appends p to the current file
func (r *Rotator) Write(p []byte) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentFile == nil {
		return 0, ErrClosed
	}
	return r.currentFile.Write(p)
}

// CurrentFile returns the path of the file being written
func (r *Rotator) CurrentFile() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentDate == "" {
		return ""
	}
	return r.path(r.currentDate)
}

// Files lists every status log, compressed or not
func (r *Rotator) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.logDir, filePrefix+"*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}
	return files, nil
}

// CleanupOldLogs removes status logs last modified more than maxDays ago
func (r *Rotator) CleanupOldLogs(maxDays int) error {
	if maxDays <= 0 {
		return fmt.Errorf("maxDays must be positive")
	}

	files, err := r.Files()
	if err != nil {
		return err
	}

	current := r.CurrentFile()
	cutoff := r.now().AddDate(0, 0, -maxDays)

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat status log")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(file); err != nil {
			r.logger.WithError(err).WithField("file", file).Error("Failed to remove old status log")
			continue
		}
		removed++
	}

	r.logger.WithField("count", removed).Debug("Cleaned up old status logs")
	return nil
}

// Close closes the current file and waits for pending compression
func (r *Rotator) Close() error {
	r.logger.Info("Closing status log")

	r.mutex.Lock()
	var err error
	if r.currentFile != nil {
		err = r.currentFile.Close()
		r.currentFile = nil
	}
	r.mutex.Unlock()

	r.compressing.Wait()
	if err != nil {
		return fmt.Errorf("failed to close status log: %w", err)
	}
	return nil
}

// open must be called with the mutex held
func (r *Rotator) open(date string) error {
	path := r.path(date)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create status log %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = date
	r.logger.WithField("file", path).Info("Opened status log")
	return nil
}

func (r *Rotator) compress(date string) {
	source := r.path(date)
	target := source + ".gz"

	log := r.logger.WithFields(logrus.Fields{
		"source": source,
		"target": target,
	})

	if err := gzipFile(source, target); err != nil {
		log.WithError(err).Error("Failed to compress status log")
		return
	}
	if err := os.Remove(source); err != nil {
		log.WithError(err).Error("Failed to remove compressed status log")
		return
	}
	log.Info("Status log compressed")
}

func gzipFile(source, target string) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	gz.Name = filepath.Base(source)
	gz.ModTime = time.Now()

	if _, err := io.Copy(gz, src); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return dst.Close()
}

func (r *Rotator) path(date string) string {
	return filepath.Join(r.logDir, fmt.Sprintf("%s%s.log", filePrefix, date))
}

func (r *Rotator) now() time.Time {
	if r.useUTC {
		return r.clock().UTC()
	}
	return r.clock()
}

func (r *Rotator) today() string {
	return r.now().Format(dateLayout)
}

package sensor

import (
	"sync"
	"time"
)

// Reading is one pushed sample and the time it arrived
type Reading struct {
	Value float64
	At    time.Duration
}

// Sink receives samples from a sensor driver
type Sink interface {
	Update(value float64, at time.Duration)
}

// Listener records the latest sample of one measured axis. The value and
// its timestamp are stored and read as one pair.
type Listener struct {
	mutex   sync.Mutex
	reading Reading
	seen    bool
	dropped uint64
}

// NewListener creates an empty listener
func NewListener() *Listener {
	return &Listener{}
}

// Update stores a sample. Samples older than the stored one are dropped so
// the timestamp never moves backwards.
func (l *Listener) Update(value float64, at time.Duration) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.seen && at < l.reading.At {
		l.dropped++
		return
	}
	l.reading = Reading{Value: value, At: at}
	l.seen = true
}

// Latest returns the stored sample and whether any sample has arrived
func (l *Listener) Latest() (Reading, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.reading, l.seen
}

// Dropped returns how many out-of-order samples were rejected
func (l *Listener) Dropped() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.dropped
}

package actuator

import (
	"errors"
	"sync"
)

// ErrNotAttached is returned by bindings written to before Attach
var ErrNotAttached = errors.New("actuator binding not attached")

// Binding is the hardware layer beneath the mixer. Values passed to Write
// are already clamped: axis channels to [MinSpeed, MaxSpeed], the gain
// channel to [MinGain, MaxGain].
type Binding interface {
	Attach() error
	Write(ch Channel, value int) error
	Close() error
}

// Write is one recorded binding write
type Write struct {
	Channel Channel
	Value   int
}

// Recorder is an in-memory Binding. It keeps the full write history and
// the last value per channel, for simulation and tests.
type Recorder struct {
	mutex    sync.Mutex
	attached bool
	closed   bool
	writes   []Write
	last     [DegreesOfFreedom + 1]int
	failWith error
}

// NewRecorder creates an unattached recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Attach marks the recorder as bound
func (r *Recorder) Attach() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.attached = true
	r.closed = false
	return nil
}

// Write records a channel write
func (r *Recorder) Write(ch Channel, value int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.attached {
		return ErrNotAttached
	}
	if r.failWith != nil {
		return r.failWith
	}
	r.writes = append(r.writes, Write{Channel: ch, Value: value})
	r.last[ch] = value
	return nil
}

// Close detaches the recorder
func (r *Recorder) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.attached = false
	r.closed = true
	return nil
}

// FailWith makes subsequent writes return err; nil restores normal writes
func (r *Recorder) FailWith(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.failWith = err
}

// Writes returns a copy of the write history
func (r *Recorder) Writes() []Write {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Write, len(r.writes))
	copy(out, r.writes)
	return out
}

// Last returns the last value written to a channel
func (r *Recorder) Last(ch Channel) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.last[ch]
}

// Attached reports whether Attach has been called and Close has not
func (r *Recorder) Attached() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.attached
}

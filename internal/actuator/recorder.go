package actuator

import (
	"fmt"
	"sync"
	"time"
)

// Transition is one recorded write.
type Transition struct {
	// Level is the written level.
	Level Level
	// At is when the write happened.
	At time.Time
}

// Recorder is an in-memory channel that remembers every write.
// It is meant for tests; under testing/synctest the timestamps are exact.
type Recorder struct {
	// transitions holds writes in order.
	transitions []Transition
	// level is the current line state.
	level Level
	// failAt is the 1-based write that fails; zero never fails.
	failAt int
	// stuck makes the readback ignore writes after the failing one.
	stuck bool
	// onWrite is called after each successful write.
	onWrite func(Transition)
	// mu protects the fields above.
	mu sync.Mutex
}

// NewRecorder creates a recorder resting at Low.
func NewRecorder() *Recorder {
	return new(Recorder)
}

// FailAt makes the n-th write (1-based) report a fault.
func (r *Recorder) FailAt(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failAt = n
}

// OnWrite registers a callback invoked after each successful write.
func (r *Recorder) OnWrite(fn func(Transition)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onWrite = fn
}

// Out records the write.
func (r *Recorder) Out(level Level) error {
	r.mu.Lock()

	if r.stuck || (r.failAt > 0 && len(r.transitions)+1 == r.failAt) {
		r.stuck = true
		r.mu.Unlock()

		return fmt.Errorf("write %s to recorder: %w", level, ErrActuatorFault)
	}

	tr := Transition{Level: level, At: time.Now()}
	r.transitions = append(r.transitions, tr)
	r.level = level
	fn := r.onWrite
	r.mu.Unlock()

	if fn != nil {
		fn(tr)
	}

	return nil
}

// Level returns the last written level.
func (r *Recorder) Level() Level {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.level
}

// Name returns "recorder".
func (r *Recorder) Name() string {
	return "recorder"
}

// Transitions returns a copy of the recorded writes.
func (r *Recorder) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Transition(nil), r.transitions...)
}

// ActiveIntervals pairs every High write with the following Low write.
func (r *Recorder) ActiveIntervals() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		intervals []time.Duration
		since     time.Time
		active    bool
	)

	for _, tr := range r.transitions {
		switch {
		case tr.Level == High && !active:
			since, active = tr.At, true
		case tr.Level == Low && active:
			intervals = append(intervals, tr.At.Sub(since))
			active = false
		}
	}

	return intervals
}

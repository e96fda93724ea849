package engine

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-laser/internal/actuator"
	"github.com/oshokin/sos-laser/internal/domain/morse"
)

// fakeObserver records observer callbacks.
type fakeObserver struct {
	// levels holds every observed write.
	levels []actuator.Level
	// kinds holds the kind of every finished emission.
	kinds []string
	// errs holds the error of every finished emission.
	errs []error
	// mu protects the slices above.
	mu sync.Mutex
}

// ObserveLevel stores the level.
func (f *fakeObserver) ObserveLevel(level actuator.Level) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.levels = append(f.levels, level)
}

// ObserveEmission stores the kind and error.
func (f *fakeObserver) ObserveEmission(kind string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.kinds = append(f.kinds, kind)
	f.errs = append(f.errs, err)
}

// TestEmit_SOS checks the exact duration and pulse widths of the distress signal.
func TestEmit_SOS(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := actuator.NewRecorder()
		e := New(rec, morse.DefaultTiming())

		require.Equal(t, actuator.Low, rec.Level())

		start := time.Now()
		require.NoError(t, e.Emit(context.Background(), morse.SOS()))
		require.Equal(t, 7400*time.Millisecond, time.Since(start))

		// Resting state on exit.
		require.Equal(t, actuator.Low, rec.Level())

		dot, dash := 200*time.Millisecond, 600*time.Millisecond
		require.Equal(t,
			[]time.Duration{dot, dot, dot, dash, dash, dash, dot, dot, dot},
			rec.ActiveIntervals(),
		)

		transitions := rec.Transitions()
		require.Equal(t, actuator.High, transitions[0].Level)
		require.Equal(t, start, transitions[0].At)

		// Final release happens after the last dot; the word space follows.
		last := transitions[len(transitions)-1]
		require.Equal(t, actuator.Low, last.Level)
		require.Equal(t, 6000*time.Millisecond-200*time.Millisecond, last.At.Sub(start))
	})
}

// TestEmit_MatchesSchedule replays recorded transitions against LevelAt.
func TestEmit_MatchesSchedule(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := actuator.NewRecorder()
		timing := morse.DefaultTiming()
		e := New(rec, timing)

		steps, err := morse.Schedule(morse.SOS(), timing)
		require.NoError(t, err)

		start := time.Now()
		require.NoError(t, e.Emit(context.Background(), morse.SOS()))

		for _, tr := range rec.Transitions() {
			require.Equal(t, morse.Level(tr.Level), morse.LevelAt(steps, tr.At.Sub(start)))
		}
	})
}

// TestEmitTestPulse produces one active interval and leaves the line inactive.
func TestEmitTestPulse(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := actuator.NewRecorder()
		obs := new(fakeObserver)
		e := New(rec, morse.DefaultTiming(), WithObserver(obs))

		start := time.Now()
		require.NoError(t, e.EmitTestPulse(context.Background(), TestPulseDuration))
		require.Equal(t, TestPulseDuration, time.Since(start))

		require.Equal(t, []time.Duration{time.Second}, rec.ActiveIntervals())
		require.Equal(t, actuator.Low, rec.Level())
		require.Equal(t, []actuator.Level{actuator.High, actuator.Low}, obs.levels)
		require.Equal(t, []string{KindTest}, obs.kinds)
		require.NoError(t, obs.errs[0])
	})
}

// TestSelfTest flashes once for half a second and waits another half.
func TestSelfTest(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := actuator.NewRecorder()
		e := New(rec, morse.DefaultTiming())

		start := time.Now()
		require.NoError(t, e.SelfTest(context.Background()))
		require.Equal(t, time.Second, time.Since(start))
		require.Equal(t, []time.Duration{500 * time.Millisecond}, rec.ActiveIntervals())
	})
}

// TestEmit_EmptyMessage does not touch the line.
func TestEmit_EmptyMessage(t *testing.T) {
	t.Parallel()

	rec := actuator.NewRecorder()
	e := New(rec, morse.DefaultTiming())

	err := e.Emit(context.Background(), morse.Message{})
	require.ErrorIs(t, err, morse.ErrEmptyMessage)
	require.Empty(t, rec.Transitions())
}

// TestEmit_ActuatorFault stops at the failing write without compensating.
func TestEmit_ActuatorFault(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := actuator.NewRecorder()
		rec.FailAt(3)

		obs := new(fakeObserver)
		e := New(rec, morse.DefaultTiming(), WithObserver(obs))

		start := time.Now()
		err := e.Emit(context.Background(), morse.SOS())
		require.ErrorIs(t, err, actuator.ErrActuatorFault)

		// High, Low, then the third write fails after one dot and one symbol space.
		require.Len(t, rec.Transitions(), 2)
		require.Equal(t, 400*time.Millisecond, time.Since(start))
		require.Equal(t, []string{KindSignal}, obs.kinds)
		require.ErrorIs(t, obs.errs[0], actuator.ErrActuatorFault)
	})
}

// TestEmit_ReleasesActiveLineFirst drives a line left High back to Low before the first pulse.
func TestEmit_ReleasesActiveLineFirst(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := actuator.NewRecorder()
		require.NoError(t, rec.Out(actuator.High))

		e := New(rec, morse.DefaultTiming())
		require.NoError(t, e.EmitTestPulse(context.Background(), 100*time.Millisecond))

		transitions := rec.Transitions()
		require.Equal(t, actuator.Low, transitions[1].Level)
		require.Equal(t, actuator.High, transitions[2].Level)
		require.Equal(t, actuator.Low, rec.Level())
	})
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/sos-laser/internal/actuator"
	"github.com/oshokin/sos-laser/internal/domain/morse"
	"github.com/oshokin/sos-laser/internal/logger"
)

// Emission kinds reported to observers.
const (
	KindSignal   = "signal"
	KindTest     = "test"
	KindSelfTest = "self_test"
)

const (
	// TestPulseDuration is the fixed length of the wiring test pulse.
	TestPulseDuration = 1000 * time.Millisecond
	// selfTestOn and selfTestOff shape the pulse emitted at startup.
	selfTestOn  = 500 * time.Millisecond
	selfTestOff = 500 * time.Millisecond
)

// Observer receives emission events, typically to export metrics.
type Observer interface {
	// ObserveLevel is called after every successful write.
	ObserveLevel(level actuator.Level)
	// ObserveEmission is called when an emission ends.
	ObserveEmission(kind string, elapsed time.Duration, err error)
}

// Engine drives one channel it owns exclusively.
// Engine is not safe for concurrent emissions; callers serialize them.
type Engine struct {
	// channel is the output line.
	channel actuator.Channel
	// timing holds the morse durations.
	timing morse.Timing
	// observer is notified of writes and emissions; may be nil.
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// New creates an engine over channel with the given timing.
func New(channel actuator.Channel, timing morse.Timing, opts ...Option) *Engine {
	e := &Engine{
		channel: channel,
		timing:  timing,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Timing returns the engine timing.
func (e *Engine) Timing() morse.Timing {
	return e.timing
}

// Emit transmits msg and returns once the trailing word space has elapsed.
func (e *Engine) Emit(ctx context.Context, msg morse.Message) error {
	steps, err := morse.Schedule(msg, e.timing)
	if err != nil {
		return fmt.Errorf("schedule message: %w", err)
	}

	logger.InfoKV(ctx, "Emitting message",
		"pattern", msg.Pattern(),
		"duration", morse.Duration(steps),
		"line", e.channel.Name(),
	)

	return e.run(ctx, KindSignal, steps)
}

// EmitTestPulse holds the line active for d, then releases it.
func (e *Engine) EmitTestPulse(ctx context.Context, d time.Duration) error {
	logger.InfoKV(ctx, "Emitting test pulse", "duration", d, "line", e.channel.Name())

	return e.run(ctx, KindTest, []morse.Step{{Level: morse.Active, Duration: d}})
}

// SelfTest flashes the line once at startup to show the wiring works.
func (e *Engine) SelfTest(ctx context.Context) error {
	logger.Info(ctx, "Running laser self-test")

	return e.run(ctx, KindSelfTest, []morse.Step{
		{Level: morse.Active, Duration: selfTestOn},
		{Level: morse.Inactive, Duration: selfTestOff},
	})
}

// run executes steps, writing only on level changes, and always ends Low.
func (e *Engine) run(ctx context.Context, kind string, steps []morse.Step) error {
	var (
		started = time.Now()
		err     = e.execute(steps)
		elapsed = time.Since(started)
	)

	if e.observer != nil {
		e.observer.ObserveEmission(kind, elapsed, err)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Emission aborted by actuator fault", "kind", kind, "elapsed", elapsed, "error", err)

		return err
	}

	logger.DebugKV(ctx, "Emission completed", "kind", kind, "elapsed", elapsed)

	return nil
}

// execute performs the blocking write/hold loop.
func (e *Engine) execute(steps []morse.Step) error {
	if e.channel.Level() != actuator.Low {
		if err := e.write(actuator.Low); err != nil {
			return err
		}
	}

	current := actuator.Low

	for _, step := range steps {
		level := actuator.Level(step.Level)
		if level != current {
			if err := e.write(level); err != nil {
				return err
			}

			current = level
		}

		time.Sleep(step.Duration)
	}

	if current != actuator.Low {
		return e.write(actuator.Low)
	}

	return nil
}

// write drives the channel and notifies the observer.
func (e *Engine) write(level actuator.Level) error {
	if err := e.channel.Out(level); err != nil {
		return fmt.Errorf("drive %s %s: %w", e.channel.Name(), level, err)
	}

	if e.observer != nil {
		e.observer.ObserveLevel(level)
	}

	return nil
}

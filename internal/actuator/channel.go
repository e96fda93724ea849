package actuator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Level is the state of the output line.
type Level bool

const (
	// Low is the inactive resting state.
	Low Level = false
	// High drives the actuator.
	High Level = true
)

// String returns "high" or "low".
func (l Level) String() string {
	if l {
		return "high"
	}

	return "low"
}

// Channel is a binary output line.
type Channel interface {
	// Out drives the line to level.
	Out(level Level) error
	// Level reads the line back.
	Level() Level
	// Name identifies the line in logs.
	Name() string
}

// Driver names accepted by Open.
const (
	DriverGPIO      = "gpio"
	DriverSimulated = "simulated"
)

var (
	// ErrActuatorFault is returned when the line does not reflect the requested level.
	ErrActuatorFault = errors.New("actuator fault")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown actuator driver")
)

// Options selects and configures the output channel.
type Options struct {
	// Driver is DriverGPIO or DriverSimulated.
	Driver string
	// Pin is the GPIO pin name as known to periph (e.g. "GPIO4").
	Pin string
	// ActiveLow inverts the electrical level when the diode is wired to sink current.
	ActiveLow bool
}

// Open creates the configured channel and drives it to Low.
//
//nolint:ireturn // Callers depend on the Channel abstraction.
func Open(_ context.Context, opts Options) (Channel, error) {
	var (
		ch  Channel
		err error
	)

	switch strings.ToLower(opts.Driver) {
	case DriverGPIO:
		ch, err = NewGPIOChannel(opts.Pin, opts.ActiveLow)
	case DriverSimulated, "":
		ch = NewSimulatedChannel(opts.Pin)
	default:
		return nil, fmt.Errorf("%q: %w", opts.Driver, ErrUnknownDriver)
	}

	if err != nil {
		return nil, err
	}

	if err = ch.Out(Low); err != nil {
		return nil, fmt.Errorf("initialise %s: %w", ch.Name(), err)
	}

	return ch, nil
}

// verify checks the readback of ch against the requested level.
func verify(ch Channel, want Level) error {
	if got := ch.Level(); got != want {
		return fmt.Errorf("%s reads %s after writing %s: %w", ch.Name(), got, want, ErrActuatorFault)
	}

	return nil
}

package actuator

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// errPinNotFound is returned when periph has no pin with the configured name.
var errPinNotFound = errors.New("gpio pin not found")

// hostInit loads the periph host drivers once per process.
//
//nolint:gochecknoglobals // periph registers drivers process-wide.
var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()

	return err
})

// GPIOChannel drives a periph.io pin.
type GPIOChannel struct {
	// pin is the underlying periph pin.
	pin gpio.PinIO
	// activeLow inverts the electrical level.
	activeLow bool
}

// NewGPIOChannel initialises periph and resolves the pin by name.
func NewGPIOChannel(name string, activeLow bool) (*GPIOChannel, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("initialise periph host: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%q: %w", name, errPinNotFound)
	}

	return NewGPIOChannelFromPin(pin, activeLow), nil
}

// NewGPIOChannelFromPin wraps an already resolved pin.
func NewGPIOChannelFromPin(pin gpio.PinIO, activeLow bool) *GPIOChannel {
	return &GPIOChannel{
		pin:       pin,
		activeLow: activeLow,
	}
}

// Out drives the pin and verifies the readback.
func (c *GPIOChannel) Out(level Level) error {
	if err := c.pin.Out(c.electrical(level)); err != nil {
		return fmt.Errorf("write %s to %s: %w: %w", level, c.pin.Name(), ErrActuatorFault, err)
	}

	return verify(c, level)
}

// Level reads the pin back.
func (c *GPIOChannel) Level() Level {
	high := c.pin.Read() == gpio.High
	if c.activeLow {
		high = !high
	}

	return Level(high)
}

// Name returns the pin name.
func (c *GPIOChannel) Name() string {
	return c.pin.Name()
}

// electrical maps a logical level to the pin level.
func (c *GPIOChannel) electrical(level Level) gpio.Level {
	if bool(level) != c.activeLow {
		return gpio.High
	}

	return gpio.Low
}

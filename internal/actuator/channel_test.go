package actuator

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// stuckPin ignores writes and always reads Low.
type stuckPin struct {
	*gpiotest.Pin
}

// Read always returns Low.
func (stuckPin) Read() gpio.Level { return gpio.Low }

// TestGPIOChannel_Out drives a fake periph pin and reads it back.
func TestGPIOChannel_Out(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO4", L: gpio.Low}
	ch := NewGPIOChannelFromPin(pin, false)

	require.NoError(t, ch.Out(High))
	require.Equal(t, gpio.High, pin.Read())
	require.Equal(t, High, ch.Level())
	require.Equal(t, "GPIO4", ch.Name())

	require.NoError(t, ch.Out(Low))
	require.Equal(t, Low, ch.Level())
}

// TestGPIOChannel_ActiveLow inverts the electrical level.
func TestGPIOChannel_ActiveLow(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO4", L: gpio.High}
	ch := NewGPIOChannelFromPin(pin, true)

	require.NoError(t, ch.Out(High))
	require.Equal(t, gpio.Low, pin.Read())
	require.Equal(t, High, ch.Level())

	require.NoError(t, ch.Out(Low))
	require.Equal(t, gpio.High, pin.Read())
}

// TestGPIOChannel_ReadbackFault reports a line that does not follow writes.
func TestGPIOChannel_ReadbackFault(t *testing.T) {
	t.Parallel()

	ch := NewGPIOChannelFromPin(stuckPin{&gpiotest.Pin{N: "GPIO4"}}, false)

	require.NoError(t, ch.Out(Low))
	require.ErrorIs(t, ch.Out(High), ErrActuatorFault)
}

// TestOpen selects drivers and leaves the line Low.
func TestOpen(t *testing.T) {
	t.Parallel()

	ch, err := Open(context.Background(), Options{Driver: DriverSimulated, Pin: "GPIO4"})
	require.NoError(t, err)
	require.Equal(t, Low, ch.Level())
	require.Equal(t, "GPIO4", ch.Name())

	_, err = Open(context.Background(), Options{Driver: "relay"})
	require.ErrorIs(t, err, ErrUnknownDriver)
}

// TestRecorder captures transitions, intervals and injected faults.
func TestRecorder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		r := NewRecorder()

		require.NoError(t, r.Out(High))
		time.Sleep(300 * time.Millisecond)
		require.NoError(t, r.Out(Low))

		require.Len(t, r.Transitions(), 2)
		require.Equal(t, []time.Duration{300 * time.Millisecond}, r.ActiveIntervals())

		r.FailAt(3)
		require.ErrorIs(t, r.Out(High), ErrActuatorFault)
		require.ErrorIs(t, r.Out(Low), ErrActuatorFault)
		require.Equal(t, Low, r.Level())
	})
}

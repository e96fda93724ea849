package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-laser/internal/actuator"
	"github.com/oshokin/sos-laser/internal/domain/morse"
	"github.com/oshokin/sos-laser/internal/engine"
	"github.com/oshokin/sos-laser/internal/sysinfo"
)

var errTestTransport = errors.New("connection reset")

// ackCapture records every acknowledgement with the line state at delivery time.
type ackCapture struct {
	// recorder is the line observed at delivery.
	recorder *actuator.Recorder
	// acks holds delivered acknowledgements.
	acks []*Ack
	// writesAtAck holds the number of line writes seen at each delivery.
	writesAtAck []int
	// at holds the delivery instants.
	at []time.Time
	// err is returned from every delivery.
	err error
	// mu protects the slices above.
	mu sync.Mutex
}

// deliver is the AckFunc under test.
func (c *ackCapture) deliver(_ context.Context, ack *Ack) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.acks = append(c.acks, ack)
	c.writesAtAck = append(c.writesAtAck, len(c.recorder.Transitions()))
	c.at = append(c.at, time.Now())

	return c.err
}

// newFixture wires a dispatcher to a recorder-backed engine.
func newFixture() (*Dispatcher, *actuator.Recorder, *ackCapture) {
	rec := actuator.NewRecorder()
	eng := engine.New(rec, morse.DefaultTiming())
	d := New(eng, sysinfo.NewProvider(nil), "SOS_Laser")

	return d, rec, &ackCapture{recorder: rec}
}

// TestDispatch_SignalAckPrecedesPulses ensures the acknowledgement is delivered before the first write.
func TestDispatch_SignalAckPrecedesPulses(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		d, rec, acks := newFixture()

		start := time.Now()
		req := Request{Command: TriggerSignal, ClientIP: "192.168.4.2"}
		require.NoError(t, d.Dispatch(context.Background(), req, acks.deliver))
		require.Equal(t, 7400*time.Millisecond, time.Since(start))

		require.Len(t, acks.acks, 1)
		require.Zero(t, acks.writesAtAck[0])
		require.Equal(t, start, acks.at[0])
		require.True(t, acks.at[0].Compare(rec.Transitions()[0].At) <= 0)

		payload := acks.acks[0].Payload
		for key, want := range map[string]string{
			"message":   "SOS signal triggered via laser",
			"pattern":   "... --- ...",
			"client_ip": "192.168.4.2",
			"timestamp": "0",
			"status":    "success",
		} {
			got, ok := payload.Get(key)
			require.True(t, ok, key)
			require.Equal(t, want, got, key)
		}
	})
}

// TestDispatch_TestAckFollowsPulse ensures the test acknowledgement waits for the pulse.
func TestDispatch_TestAckFollowsPulse(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		d, rec, acks := newFixture()

		start := time.Now()
		require.NoError(t, d.Dispatch(context.Background(), Request{Command: TriggerTest}, acks.deliver))

		require.Len(t, acks.acks, 1)
		require.Equal(t, 2, acks.writesAtAck[0])
		require.Equal(t, time.Second, acks.at[0].Sub(start))
		require.Equal(t, []time.Duration{time.Second}, rec.ActiveIntervals())

		status, _ := acks.acks[0].Payload.Get("status")
		require.Equal(t, "success", status)
		message, _ := acks.acks[0].Payload.Get("message")
		require.Equal(t, "Laser test completed", message)
	})
}

// TestDispatch_SignalsDoNotInterleave issues two signals at once.
func TestDispatch_SignalsDoNotInterleave(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		d, rec, acks := newFixture()
		start := time.Now()

		var (
			wg   sync.WaitGroup
			errs = make(chan error, 2)
		)

		for range 2 {
			wg.Go(func() {
				errs <- d.Dispatch(context.Background(), Request{Command: TriggerSignal}, acks.deliver)
			})
		}

		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		require.Equal(t, 14800*time.Millisecond, time.Since(start))

		transitions := rec.Transitions()
		require.Len(t, transitions, 36)

		// The second emission starts only after the first word space.
		require.Equal(t, actuator.High, transitions[18].Level)
		require.Equal(t, 7400*time.Millisecond, transitions[18].At.Sub(start))

		// Its acknowledgement was queued behind the first emission as well.
		require.Equal(t, 7400*time.Millisecond, acks.at[1].Sub(start))
	})
}

// TestDispatch_StatusDoesNotBlock reads status while a signal is running.
func TestDispatch_StatusDoesNotBlock(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		d, rec, signalAcks := newFixture()
		statusAcks := &ackCapture{recorder: rec}

		done := make(chan error, 1)

		go func() {
			done <- d.Dispatch(context.Background(), Request{Command: TriggerSignal}, signalAcks.deliver)
		}()

		time.Sleep(1 * time.Second)

		queried := time.Now()
		writes := len(rec.Transitions())

		require.NoError(t, d.Dispatch(context.Background(), Request{Command: QueryStatus}, statusAcks.deliver))
		require.Equal(t, queried, statusAcks.at[0])
		require.Len(t, rec.Transitions(), writes)

		payload := statusAcks.acks[0].Payload
		device, _ := payload.Get("device")
		require.Equal(t, "SOS_Laser", device)
		uptime, _ := payload.Get("uptime")
		require.Equal(t, "1000", uptime)
		clients, _ := payload.Get("connected_clients")
		require.Equal(t, "0", clients)
		status, _ := payload.Get("status")
		require.Equal(t, "online", status)
		_, ok := payload.Get("free_heap")
		require.True(t, ok)

		require.NoError(t, <-done)
	})
}

// TestDispatch_Unrecognized returns not found without touching the engine.
func TestDispatch_Unrecognized(t *testing.T) {
	t.Parallel()

	d, rec, acks := newFixture()

	require.NoError(t, d.Dispatch(context.Background(), Request{Command: Unrecognized}, acks.deliver))
	require.True(t, acks.acks[0].NotFound)
	require.Nil(t, acks.acks[0].Payload)
	require.Empty(t, rec.Transitions())
}

// TestDispatch_TransportFailureKeepsSignal runs the signal even when the acknowledgement is lost.
func TestDispatch_TransportFailureKeepsSignal(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		d, rec, acks := newFixture()
		acks.err = errTestTransport

		err := d.Dispatch(context.Background(), Request{Command: TriggerSignal}, acks.deliver)
		require.ErrorIs(t, err, ErrTransportFailure)
		require.ErrorIs(t, err, errTestTransport)
		require.Len(t, rec.ActiveIntervals(), 9)
	})
}

// TestDispatch_TestFaultSkipsAck reports the fault and sends no success acknowledgement.
func TestDispatch_TestFaultSkipsAck(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		d, rec, acks := newFixture()
		rec.FailAt(1)

		err := d.Dispatch(context.Background(), Request{Command: TriggerTest}, acks.deliver)
		require.ErrorIs(t, err, actuator.ErrActuatorFault)
		require.Empty(t, acks.acks)
	})
}

// TestPayload_MarshalJSON encodes the payload as a flat JSON object.
func TestPayload_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := NewPayload().SetString("status", "online").MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"online"}`, string(data))
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oshokin/sos-laser/internal/domain/morse"
	"github.com/oshokin/sos-laser/internal/engine"
	"github.com/oshokin/sos-laser/internal/logger"
)

// Command identifies an inbound action.
type Command uint8

const (
	// Unrecognized is any command the dispatcher does not know.
	Unrecognized Command = iota
	// TriggerSignal emits the distress message.
	TriggerSignal
	// TriggerTest emits the wiring test pulse.
	TriggerTest
	// QueryStatus reports uptime, memory and peers.
	QueryStatus
)

// String returns the command name used in logs and metrics.
func (c Command) String() string {
	switch c {
	case TriggerSignal:
		return "trigger_signal"
	case TriggerTest:
		return "trigger_test"
	case QueryStatus:
		return "query_status"
	default:
		return "unrecognized"
	}
}

// Acknowledgement texts.
const (
	signalMessage = "SOS signal triggered via laser"
	testMessage   = "Laser test completed"
	statusSuccess = "success"
	statusOnline  = "online"
)

// ErrTransportFailure wraps an acknowledgement that could not be delivered.
var ErrTransportFailure = errors.New("transport failure")

// Emitter is the part of the signal engine the dispatcher drives.
type Emitter interface {
	Emit(ctx context.Context, msg morse.Message) error
	EmitTestPulse(ctx context.Context, d time.Duration) error
}

// StatusSource provides the values reported by QueryStatus.
type StatusSource interface {
	Uptime() time.Duration
	FreeMemory() uint64
	ConnectedClients() int
}

// Observer is notified of every dispatched command.
type Observer interface {
	ObserveCommand(cmd Command)
}

// Request is one inbound command.
type Request struct {
	// Command is the resolved action.
	Command Command
	// ClientIP is the caller identity echoed in the signal acknowledgement.
	ClientIP string
}

// Ack is the acknowledgement handed to the transport.
type Ack struct {
	// Command is the acknowledged action.
	Command Command
	// NotFound marks an unrecognized command.
	NotFound bool
	// Payload is the structured body; nil for NotFound.
	Payload *Payload
}

// AckFunc delivers an acknowledgement to the caller.
type AckFunc func(ctx context.Context, ack *Ack) error

// Dispatcher serializes actuation and answers status reads.
type Dispatcher struct {
	// engine performs actuation.
	engine Emitter
	// status answers QueryStatus.
	status StatusSource
	// device is the reported device name.
	device string
	// message is the distress message emitted by TriggerSignal.
	message morse.Message
	// observer is notified of commands; may be nil.
	observer Observer
	// slot holds a token while an actuation is in flight.
	slot chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver attaches a command observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithMessage replaces the emitted message.
func WithMessage(msg morse.Message) Option {
	return func(d *Dispatcher) {
		d.message = msg
	}
}

// New creates a dispatcher emitting the SOS message.
func New(emitter Emitter, status StatusSource, device string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:  emitter,
		status:  status,
		device:  device,
		message: morse.SOS(),
		slot:    make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch executes req and delivers its acknowledgement through ack.
// Errors wrapping ErrTransportFailure leave actuation untouched; errors
// wrapping actuator.ErrActuatorFault are fatal for the process.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, ack AckFunc) error {
	ctx = logger.WithKV(ctx, "command", req.Command.String())

	if d.observer != nil {
		d.observer.ObserveCommand(req.Command)
	}

	switch req.Command {
	case TriggerSignal:
		return d.triggerSignal(ctx, req, ack)
	case TriggerTest:
		return d.triggerTest(ctx, ack)
	case QueryStatus:
		return deliver(ctx, ack, &Ack{Command: QueryStatus, Payload: d.statusPayload()})
	default:
		logger.DebugKV(ctx, "Unrecognized command")

		return deliver(ctx, ack, &Ack{Command: Unrecognized, NotFound: true})
	}
}

// triggerSignal acknowledges first, then emits the message.
func (d *Dispatcher) triggerSignal(ctx context.Context, req Request, ack AckFunc) error {
	d.slot <- struct{}{}
	defer func() { <-d.slot }()

	logger.InfoKV(ctx, "Distress signal requested", "client_ip", req.ClientIP)

	payload := NewPayload().
		SetString("message", signalMessage).
		SetString("pattern", d.message.Pattern()).
		SetString("client_ip", req.ClientIP).
		SetString("timestamp", millis(d.status.Uptime())).
		SetString("status", statusSuccess)

	// Delivery and actuation are independent: the signal runs either way.
	ackErr := deliver(ctx, ack, &Ack{Command: TriggerSignal, Payload: payload})

	if err := d.engine.Emit(ctx, d.message); err != nil {
		return errors.Join(ackErr, fmt.Errorf("emit signal: %w", err))
	}

	logger.Info(ctx, "Distress signal sent")

	return ackErr
}

// triggerTest emits the test pulse, then acknowledges.
func (d *Dispatcher) triggerTest(ctx context.Context, ack AckFunc) error {
	d.slot <- struct{}{}
	defer func() { <-d.slot }()

	logger.Info(ctx, "Laser test requested")

	if err := d.engine.EmitTestPulse(ctx, engine.TestPulseDuration); err != nil {
		return fmt.Errorf("emit test pulse: %w", err)
	}

	payload := NewPayload().
		SetString("message", testMessage).
		SetString("status", statusSuccess)

	return deliver(ctx, ack, &Ack{Command: TriggerTest, Payload: payload})
}

// statusPayload reads the environment sources without touching the engine.
func (d *Dispatcher) statusPayload() *Payload {
	return NewPayload().
		SetString("device", d.device).
		SetString("uptime", millis(d.status.Uptime())).
		SetString("free_heap", strconv.FormatUint(d.status.FreeMemory(), 10)).
		SetString("connected_clients", strconv.Itoa(d.status.ConnectedClients())).
		SetString("status", statusOnline)
}

// deliver calls ack and wraps its failure.
func deliver(ctx context.Context, ack AckFunc, a *Ack) error {
	if err := ack(ctx, a); err != nil {
		logger.WarnKV(ctx, "Acknowledgement not delivered", "error", err)

		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	return nil
}

// millis renders d as whole milliseconds.
func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

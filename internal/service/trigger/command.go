package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/logger"
	"github.com/oshokin/sos-laser/internal/service/common"
)

// Action selects the command sent to the controller.
type Action string

const (
	// ActionSignal triggers the SOS emission.
	ActionSignal Action = "sos"
	// ActionTest fires the one second test pulse.
	ActionTest Action = "test"
)

// Options configures the trigger.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ControllerAddress overrides the controller address from config when specified.
	ControllerAddress string
	// Action is the command to send.
	Action Action
	// RetryInterval overrides the delay between attempts.
	RetryInterval time.Duration
	// OnAck receives the acknowledgement once the controller accepted the command.
	OnAck func(ack *structpb.Struct)
}

// defaultRetryInterval defines the delay between attempts to reach the controller.
const defaultRetryInterval = 1 * time.Second

// ErrUnknownAction is returned for an action other than sos or test.
var ErrUnknownAction = errors.New("unknown action")

// Run sends the action with retry logic until it is acknowledged or ctx is canceled.
//
//nolint:cyclop // Retry loop mirrors the single attempt.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-trigger")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use controller address from options if provided, otherwise use config.
	controllerAddress := cfg.ControllerAddress
	if opts.ControllerAddress != "" {
		controllerAddress = opts.ControllerAddress
	}

	// Identify current user and hostname for the controller logs.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.New(controllerAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return err
	}

	send, err := actionFunc(client, opts.Action)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Sending command", "controller_address", controllerAddress, "action", opts.Action)

	// attempt tries once to deliver the command, returns (completed, error).
	attempt := func() (bool, error) {
		ack, err := send(ctx)
		if err != nil {
			// A route the controller does not know will never succeed, and a faulted
			// controller must not replay the command once its supervisor restarts it.
			if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrControllerFault) {
				return false, err
			}

			// Log error but continue retrying for transient failures.
			logger.ErrorKV(ctx, "Command failed", "action", opts.Action, "error", err)

			return false, nil
		}

		logger.Infof(ctx, "Controller acknowledged: %s", FormatAck(ack))

		if opts.OnAck != nil {
			opts.OnAck(ack)
		}

		return true, nil
	}

	// Attempt immediately before starting retry loop.
	if done, err := attempt(); err != nil || done {
		return err
	}

	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}

	// Setup retry timer for subsequent attempts.
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	// Retry loop until success or cancellation.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil {
				return err
			}

			if done {
				return nil
			}
		}
	}
}

// actionFunc maps an action to the client call.
func actionFunc(
	client *common.Client,
	action Action,
) (func(context.Context) (*structpb.Struct, error), error) {
	switch action {
	case ActionSignal:
		return client.TriggerSignal, nil
	case ActionTest:
		return client.TriggerTest, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// FormatAck converts an acknowledgement to a readable log message.
func FormatAck(ack *structpb.Struct) string {
	if ack == nil {
		return "<nil ack>"
	}

	fields := ack.GetFields()

	parts := make([]string, 0, 3)
	if message := fields["message"].GetStringValue(); message != "" {
		parts = append(parts, message)
	}

	if pattern := fields["pattern"].GetStringValue(); pattern != "" {
		parts = append(parts, "pattern "+pattern)
	}

	if clientIP := fields["client_ip"].GetStringValue(); clientIP != "" {
		parts = append(parts, "from "+clientIP)
	}

	status := fields["status"].GetStringValue()
	if status == "" {
		status = "<unknown>"
	}

	return fmt.Sprintf("%s (%s)", strings.Join(parts, ", "), status)
}

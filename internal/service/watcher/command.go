package watcher

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/logger"
	"github.com/oshokin/sos-laser/internal/service/common"
	"github.com/oshokin/sos-laser/internal/service/controller"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ControllerAddress provides an optional controller address override.
	ControllerAddress string
	// HealthAddress enables gRPC health checks; defaults to the configured health address.
	HealthAddress string
	// PollInterval defines the interval between status checks.
	PollInterval time.Duration
	// OnReport receives every observation.
	OnReport func(report *Report)
}

// Report is one observation of the controller.
type Report struct {
	// Status is the decoded status report, nil when the call failed.
	Status *structpb.Struct
	// Health is the gRPC serving status, empty when health checks are disabled.
	Health string
	// Err is the first failure of this round.
	Err error
}

// DefaultPollInterval defines the polling interval for status checks.
const DefaultPollInterval = 5 * time.Second

// Run polls the controller until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-watcher")

	s, err := newSession(opts)
	if err != nil {
		return err
	}

	// Ensure connection cleanup on function exit.
	defer s.close()

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	logger.InfoKV(ctx, "Watching controller",
		"controller_address", s.controllerAddress,
		"health_address", s.healthAddress,
		"interval", pollInterval.String(),
	)

	// Setup polling ticker with fixed interval.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Main polling loop until context cancellation.
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			report := s.observe(ctx)
			logReport(ctx, report)

			if opts.OnReport != nil {
				opts.OnReport(report)
			}
		}
	}
}

// Check observes the controller once and returns the failure of that round.
func Check(ctx context.Context, opts *Options) (*Report, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}

	defer s.close()

	report := s.observe(ctx)

	return report, report.Err
}

// session holds the clients of one watcher run.
type session struct {
	// client calls the command interface.
	client *common.Client
	// probe checks gRPC health, nil when disabled.
	probe *common.HealthProbe
	// timeout bounds each health check.
	timeout time.Duration
	// controllerAddress is the polled controller.
	controllerAddress string
	// healthAddress is the probed health endpoint, empty when disabled.
	healthAddress string
}

// newSession loads settings and prepares the clients.
func newSession(opts *Options) (*session, error) {
	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	s := &session{
		timeout:           cfg.Timeout,
		controllerAddress: cfg.ControllerAddress,
		healthAddress:     cfg.HealthAddress,
	}

	// Command line arguments override config.
	if opts.ControllerAddress != "" {
		s.controllerAddress = opts.ControllerAddress
	}

	if opts.HealthAddress != "" {
		s.healthAddress = opts.HealthAddress
	}

	s.client, err = common.New(s.controllerAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if s.healthAddress != "" {
		s.probe, err = common.DialHealth(s.healthAddress, controller.HealthService)
		if err != nil {
			return nil, fmt.Errorf("dial health: %w", err)
		}
	}

	return s, nil
}

// close releases the health connection.
func (s *session) close() {
	_ = s.probe.Close()
}

// observe reads the status report and the health state once.
func (s *session) observe(ctx context.Context) *Report {
	report := new(Report)

	report.Status, report.Err = s.client.Status(ctx)

	if s.probe == nil {
		return report
	}

	healthCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.probe.Check(healthCtx)
	if err != nil && report.Err == nil {
		report.Err = err
	}

	report.Health = status.String()

	return report
}

// logReport writes the observation.
func logReport(ctx context.Context, report *Report) {
	if report.Err != nil {
		logger.ErrorKV(ctx, "Check controller failed", "health", report.Health, "error", report.Err)

		return
	}

	fields := report.Status.GetFields()

	logger.InfoKV(ctx, "Controller status",
		"device", fields["device"].GetStringValue(),
		"status", fields["status"].GetStringValue(),
		"uptime_ms", fields["uptime"].GetStringValue(),
		"free_heap", fields["free_heap"].GetStringValue(),
		"connected_clients", fields["connected_clients"].GetStringValue(),
		"health", report.Health,
	)
}

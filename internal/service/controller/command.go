package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/sos-laser/internal/actuator"
	api "github.com/oshokin/sos-laser/internal/api/http/controller"
	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/dispatch"
	"github.com/oshokin/sos-laser/internal/engine"
	"github.com/oshokin/sos-laser/internal/logger"
	"github.com/oshokin/sos-laser/internal/metrics"
	"github.com/oshokin/sos-laser/internal/sysinfo"
	"github.com/oshokin/sos-laser/internal/version"
)

// Options controls the controller process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the HTTP listen address from config.
	ListenAddress string
	// Driver overrides the laser driver from config.
	Driver string
	// LogLevel overrides the log level from config.
	LogLevel string
	// Registerer receives the metrics; defaults to a fresh registry.
	Registerer prometheus.Registerer
	// Ready is closed once every listener accepts connections.
	Ready chan<- struct{}
}

// HealthService is the gRPC health service name of the controller.
const HealthService = "sos_laser.Controller"

// readHeaderTimeout bounds slow clients on the command interface.
const readHeaderTimeout = 5 * time.Second

// ErrAnotherController indicates that a second controller would share the pin.
var ErrAnotherController = errors.New("another controller process owns the laser")

// Run starts the controller and blocks until ctx is canceled or the actuator faults.
// A fault is returned so the supervisor can restart the process.
//
//nolint:funlen // Wiring reads top to bottom.
func Run(ctx context.Context, opts *Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	closeLog, err := setupLogger(settings.Log)
	if err != nil {
		return err
	}

	defer func() {
		_ = closeLog.Close()
	}()

	// Set context with logger name for tracking, after the file sink is installed.
	ctx = logger.WithName(ctx, "sos-laser")

	if settings.Laser.Driver == actuator.DriverGPIO {
		if err = ensureSingleOwner(ctx); err != nil {
			return err
		}
	}

	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	collector, err := metrics.NewCollector(registerer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	channel, err := actuator.Open(ctx, actuator.Options{
		Driver:    settings.Laser.Driver,
		Pin:       settings.Laser.Pin,
		ActiveLow: settings.Laser.ActiveLow,
	})
	if err != nil {
		return fmt.Errorf("open laser: %w", err)
	}

	eng := engine.New(channel, settings.Timing, engine.WithObserver(collector))

	if !settings.SkipSelfTest {
		if err = eng.SelfTest(ctx); err != nil {
			return fmt.Errorf("self-test: %w", err)
		}
	}

	var (
		peers      = sysinfo.NewPeerCounter()
		dispatcher = dispatch.New(
			eng,
			sysinfo.NewProvider(peers),
			settings.Device,
			dispatch.WithObserver(collector),
		)
		healthServer = health.NewServer()
	)

	// An actuator fault stops the whole process with the fault as cause.
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	onFault := func(err error) {
		healthServer.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
		cancel(err)
	}

	app := &controller{
		settings: settings,
		commands: &http.Server{
			Handler:           api.NewServer(dispatcher, settings.AccessPoint.SSID, onFault),
			ConnState:         peers.ConnState,
			ReadHeaderTimeout: readHeaderTimeout,
			BaseContext:       func(net.Listener) context.Context { return runCtx },
		},
		health:    healthServer,
		collector: collector,
	}

	if err = app.start(runCtx); err != nil {
		app.stop(ctx)

		return err
	}

	logger.InfoKV(ctx, "Laser controller ready",
		"listen_address", settings.ListenAddress,
		"access_point", settings.AccessPoint.SSID,
		"controller_address", settings.AccessPoint.Address,
		"driver", settings.Laser.Driver,
		"pin", channel.Name(),
		"version", version.Short(),
	)

	if opts.Ready != nil {
		close(opts.Ready)
	}

	select {
	case <-runCtx.Done():
	case err = <-app.errs:
		cancel(err)
	}

	logger.Info(ctx, "Shutting down laser controller")
	app.stop(ctx)

	// Without a parent cancellation the stop was caused by a fault or a listener.
	if ctx.Err() == nil {
		return context.Cause(runCtx)
	}

	logger.Info(ctx, "Laser controller stopped")

	return nil
}

// loadSettings loads config and applies command line overrides.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.Driver != "" {
		settings.Laser.Driver = opts.Driver
	}

	if opts.LogLevel != "" {
		settings.Log.Level = opts.LogLevel
	}

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return settings, nil
}

// setupLogger applies the level and the optional file sink to the global logger.
func setupLogger(cfg config.Log) (io.Closer, error) {
	level, ok := logger.ParseLogLevel(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	logger.SetLevel(level)

	if cfg.File == "" {
		return io.NopCloser(nil), nil
	}

	l, file := logger.NewWithFile(logger.AtomicLevel(), logger.FileOptions{
		Path:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})

	restore := &fileSink{previous: logger.Logger(), file: file}
	logger.SetLogger(l)

	return restore, nil
}

// fileSink puts the previous global logger back before closing the log file.
type fileSink struct {
	// previous is the global logger replaced by the file logger.
	previous *zap.SugaredLogger
	// file is the rotated log file.
	file io.Closer
}

// Close restores the previous logger and closes the file.
func (s *fileSink) Close() error {
	logger.SetLogger(s.previous)

	return s.file.Close()
}

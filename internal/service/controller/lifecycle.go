package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/logger"
	"github.com/oshokin/sos-laser/internal/metrics"
)

// controller bundles the listeners of a running process.
type controller struct {
	// settings is the validated configuration.
	settings *config.Config
	// commands serves the HTTP command interface.
	commands *http.Server
	// health reports liveness over gRPC.
	health *health.Server
	// healthServer is the gRPC server carrying health, nil when disabled.
	healthServer *grpc.Server
	// metricsServer exposes Prometheus metrics, nil when disabled.
	metricsServer *http.Server
	// collector provides the metrics handler.
	collector *metrics.Collector
	// errs receives the first serve failure of any listener.
	errs chan error
	// serving counts running serve loops.
	serving int
	// exited receives one value per finished serve loop.
	exited chan struct{}
}

// start binds every enabled listener and serves them in the background.
func (c *controller) start(ctx context.Context) error {
	c.errs = make(chan error, 3)
	c.exited = make(chan struct{}, 3)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", c.settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.settings.ListenAddress, err)
	}

	c.serveHTTP(ctx, "commands", c.commands, lis)

	if c.settings.HealthAddress != "" {
		var healthLis net.Listener

		healthLis, err = lc.Listen(ctx, "tcp", c.settings.HealthAddress)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", c.settings.HealthAddress, err)
		}

		c.healthServer = grpc.NewServer()
		healthpb.RegisterHealthServer(c.healthServer, c.health)
		c.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)

		c.serving++

		go func() {
			defer func() { c.exited <- struct{}{} }()

			if serveErr := c.healthServer.Serve(healthLis); serveErr != nil &&
				!errors.Is(serveErr, grpc.ErrServerStopped) {
				c.errs <- fmt.Errorf("serve health: %w", serveErr)
			}
		}()

		logger.InfoKV(ctx, "Health service listening", "health_address", c.settings.HealthAddress)
	}

	if c.settings.MetricsAddress != "" {
		var metricsLis net.Listener

		metricsLis, err = lc.Listen(ctx, "tcp", c.settings.MetricsAddress)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", c.settings.MetricsAddress, err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", c.collector.Handler())

		c.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		c.serveHTTP(ctx, "metrics", c.metricsServer, metricsLis)

		logger.InfoKV(ctx, "Metrics listening", "metrics_address", c.settings.MetricsAddress)
	}

	return nil
}

// serveHTTP runs srv on lis until it is shut down.
func (c *controller) serveHTTP(ctx context.Context, name string, srv *http.Server, lis net.Listener) {
	c.serving++

	go func() {
		defer func() { c.exited <- struct{}{} }()

		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "Listener failed", "listener", name, "error", err)
			c.errs <- fmt.Errorf("serve %s: %w", name, err)
		}
	}()
}

// stop shuts every listener down and waits for the serve loops.
// The command server waits for in-flight requests, so a running
// emission completes before the process exits.
func (c *controller) stop(ctx context.Context) {
	c.health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.settings.ShutdownTimeout)
	defer cancel()

	if err := c.commands.Shutdown(shutdownCtx); err != nil {
		logger.WarnKV(ctx, "Command server did not stop in time", "error", err)
		_ = c.commands.Close()
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(shutdownCtx); err != nil {
			_ = c.metricsServer.Close()
		}
	}

	if c.healthServer != nil {
		c.healthServer.GracefulStop()
	}

	for range c.serving {
		<-c.exited
	}
}

// ensureSingleOwner refuses to start when another process runs the same executable,
// since two controllers would fight over the laser pin.
func ensureSingleOwner(ctx context.Context) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	if pid, found := findOwner(processList, filepath.Base(executable), os.Getpid()); found {
		logger.ErrorKV(ctx, "Laser is owned by another controller", "pid", pid)

		return fmt.Errorf("%w: pid %d", ErrAnotherController, pid)
	}

	return nil
}

// findOwner looks for a process other than self running the named executable.
func findOwner(processList []ps.Process, name string, self int) (int, bool) {
	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if process.Executable() != name {
			continue
		}

		return process.Pid(), true
	}

	return 0, false
}

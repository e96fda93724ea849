package watcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/service/controller"
)

func startHealth(t *testing.T) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(controller.HealthService, healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)

	go func() {
		_ = srv.Serve(lis)
	}()

	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

// TestRun_ReportsStatusAndHealth polls a fake controller and cancels after the first report.
func TestRun_ReportsStatusAndHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"device":"SOS_Laser","uptime":"1200","status":"online"}`))
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		ControllerAddress: strings.TrimPrefix(srv.URL, "http://"),
		HealthAddress:     startHealth(t),
		Timeout:           time.Second,
	}))

	var (
		ctx, cancel = context.WithCancel(context.Background())
		reports     = make(chan *Report, 1)
		done        = make(chan error, 1)
	)

	defer cancel()

	go func() {
		done <- Run(ctx, &Options{
			ConfigPath:   cfgPath,
			PollInterval: 10 * time.Millisecond,
			OnReport: func(report *Report) {
				select {
				case reports <- report:
				default:
				}
			},
		})
	}()

	report := <-reports
	require.NoError(t, report.Err)
	require.Equal(t, "online", report.Status.GetFields()["status"].GetStringValue())
	require.Equal(t, "SERVING", report.Health)

	cancel()
	require.NoError(t, <-done)
}

// TestRun_KeepsPollingWhenUnreachable verifies failures are reported, not returned.
func TestRun_KeepsPollingWhenUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		ControllerAddress: strings.TrimPrefix(srv.URL, "http://"),
		Timeout:           time.Second,
	}))

	var (
		ctx, cancel = context.WithCancel(context.Background())
		reports     = make(chan *Report, 2)
		done        = make(chan error, 1)
	)

	defer cancel()

	go func() {
		done <- Run(ctx, &Options{
			ConfigPath:   cfgPath,
			PollInterval: 10 * time.Millisecond,
			OnReport: func(report *Report) {
				select {
				case reports <- report:
				default:
				}
			},
		})
	}()

	require.Error(t, (<-reports).Err)
	require.Error(t, (<-reports).Err)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"online"}`))
	}))
	defer srv.Close()

	report, err := Check(context.Background(), &Options{
		ConfigPath:        filepath.Join(t.TempDir(), "absent.yaml"),
		ControllerAddress: strings.TrimPrefix(srv.URL, "http://"),
	})
	require.Error(t, err)
	require.Nil(t, report)

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, config.Default()))

	report, err = Check(context.Background(), &Options{
		ConfigPath:        cfgPath,
		ControllerAddress: strings.TrimPrefix(srv.URL, "http://"),
	})
	require.NoError(t, err)
	require.Equal(t, "online", report.Status.GetFields()["status"].GetStringValue())
	require.Empty(t, report.Health)
}

//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProbe queries the controller gRPC health service.
type HealthProbe struct {
	// conn is the underlying gRPC connection.
	conn *grpc.ClientConn
	// api is the generated health client.
	api healthpb.HealthClient
	// service is the checked service name.
	service string
}

// DialHealth prepares a health probe for the service at address.
// Note: this uses insecure transport credentials; the controller network is local.
func DialHealth(address, service string) (*HealthProbe, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial health service: %w", err)
	}

	return &HealthProbe{
		conn:    conn,
		api:     healthpb.NewHealthClient(conn),
		service: service,
	}, nil
}

// Check returns the current serving status.
func (p *HealthProbe) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := p.api.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("check health: %w", err)
	}

	return resp.GetStatus(), nil
}

// Close releases the underlying gRPC connection.
func (p *HealthProbe) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}

	return p.conn.Close()
}

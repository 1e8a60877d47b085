package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GRPCHealth serves the standard grpc.health.v1.Health service. The overall
// status ("") and one status per dependency check are refreshed periodically
// from the same checks that back the HTTP readiness endpoint.
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	checks   []DependencyCheck
	interval time.Duration
}

// NewGRPCHealth creates a health server for the given checks
func NewGRPCHealth(interval time.Duration, checks ...DependencyCheck) *GRPCHealth {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    10 * time.Second,
			Timeout: 3 * time.Second,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &GRPCHealth{
		server:   server,
		health:   hs,
		checks:   checks,
		interval: interval,
	}
}

// Refresh runs the checks once and publishes their results
func (g *GRPCHealth) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dependencies, allHealthy := RunChecks(ctx, g.checks)
	for name, dep := range dependencies {
		g.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	g.health.SetServingStatus("", servingStatus(allHealthy))
}

// Serve listens on addr and blocks until ctx is cancelled or the server fails
func (g *GRPCHealth) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger := GetLogger()
	g.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-ticker.C:
				g.Refresh(ctx)
			}
		}
	}()

	logger.Info().Str("addr", addr).Msg("gRPC health server listening")
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// Server exposes the underlying health server (used by tests)
func (g *GRPCHealth) Server() *health.Server {
	return g.health
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

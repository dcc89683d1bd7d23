package grpc

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "danicandles.Storefront"

const (
	defaultCheckInterval = 10 * time.Second
	checkTimeout         = 2 * time.Second
)

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthServer runs the standard grpc.health.v1 service and flips its status
// as dependencies come and go.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

func NewHealthServer(checks map[string]Pinger, interval time.Duration, log *slog.Logger) *HealthServer {
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(srv)

	return &HealthServer{
		server:   srv,
		health:   hs,
		checks:   checks,
		interval: interval,
		log:      log,
	}
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Run checks dependencies every interval until ctx is done, then marks the
// server as not serving.
func (s *HealthServer) Run(ctx context.Context) error {
	s.Check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Check(ctx)
		case <-ctx.Done():
			s.health.Shutdown()
			return nil
		}
	}
}

// Check pings every dependency once and updates the status. It returns the
// names of the failing ones.
func (s *HealthServer) Check(ctx context.Context) []string {
	var failing []string
	for name, p := range s.checks {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			s.log.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	status := healthpb.HealthCheckResponse_SERVING
	if len(failing) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)

	return failing
}

func (s *HealthServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

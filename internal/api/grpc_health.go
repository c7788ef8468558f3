package api

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"thermal-worker-go/internal/api/handlers"
	"thermal-worker-go/internal/models"
)

// ListenerServiceName is the gRPC health service name of the thermometry
// listener. The empty service name reports the same status.
const ListenerServiceName = "thermal.Listener"

// HealthReporter serves grpc.health.v1 and mirrors the listener state:
// SERVING while streaming, NOT_SERVING otherwise.
type HealthReporter struct {
	server   *grpc.Server
	health   *health.Server
	listener handlers.ListenerStatusProvider
	interval time.Duration
}

func NewHealthReporter(listener handlers.ListenerStatusProvider, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r := &HealthReporter{
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		listener: listener,
		interval: interval,
	}
	healthpb.RegisterHealthServer(r.server, r.health)
	r.update()
	return r
}

func (r *HealthReporter) Serve(lis net.Listener) error {
	return r.server.Serve(lis)
}

// Run refreshes the reported status until ctx is cancelled.
func (r *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.update()
		}
	}
}

func (r *HealthReporter) update() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if r.listener.Status().State == models.ListenerStreaming {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.health.SetServingStatus("", status)
	r.health.SetServingStatus(ListenerServiceName, status)
}

func (r *HealthReporter) Stop() {
	r.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("gRPC health server did not stop gracefully, forcing")
		r.server.Stop()
	}
}

package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oggyb/matchbot/internal/app"
)

// HealthRegistrar exposes the standard gRPC health service and keeps its
// status in line with the backing stores.
type HealthRegistrar struct {
	appCtx *app.AppContext
	srv    *health.Server
}

func NewHealthRegistrar(appCtx *app.AppContext) *HealthRegistrar {
	return &HealthRegistrar{appCtx: appCtx, srv: health.NewServer()}
}

func (h *HealthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Check pings the stores once and publishes the result for the overall
// ("") service.
func (h *HealthRegistrar) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := Ping(ctx, h.appCtx); err != nil {
		h.appCtx.Logger.Warn("health check failed", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", status)
	return status
}

// Watch re-checks every interval until ctx is done, then reports shutdown.
func (h *HealthRegistrar) Watch(ctx context.Context, interval time.Duration) {
	h.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval/2)
			h.Check(pingCtx)
			cancel()
		}
	}
}

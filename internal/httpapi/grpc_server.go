package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"recruitgate.org/internal/obs"
)

// HealthServer publishes readiness over the standard gRPC health protocol.
type HealthServer struct {
	srv     *health.Server
	probe   Probe
	service string
}

// NewHealthServer creates a health service reporting probe under service.
// It starts NOT_SERVING until the first Refresh.
func NewHealthServer(probe Probe, service string) *HealthServer {
	h := &HealthServer{srv: health.NewServer(), probe: probe, service: service}
	h.srv.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh runs the probe once and updates the served status.
func (h *HealthServer) Refresh(ctx context.Context) bool {
	status := healthpb.HealthCheckResponse_SERVING
	if h.probe != nil {
		if err := h.probe.Check(ctx); err != nil {
			obs.Logger().WithError(err).WithField("service", h.service).Warn("readiness probe failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.srv.SetServingStatus(h.service, status)
	h.srv.SetServingStatus("", status)
	return status == healthpb.HealthCheckResponse_SERVING
}

// Run refreshes every interval until ctx ends, then marks the service as
// shutting down.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	check := func() {
		cctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		h.Refresh(cctx)
	}
	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			check()
		}
	}
}

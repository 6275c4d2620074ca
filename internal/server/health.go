package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/kvcomments/internal/comments"
)

// HealthChecker probes the comment list periodically and mirrors the result
// into the gRPC health service.
type HealthChecker struct {
	comments *comments.Adapter
	grpc     *health.Server
	metrics  *Metrics
	interval time.Duration
	logger   *slog.Logger

	serving atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthChecker returns a checker. grpcHealth and metrics may be nil.
func NewHealthChecker(a *comments.Adapter, grpcHealth *health.Server, m *Metrics, interval time.Duration, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{
		comments: a,
		grpc:     grpcHealth,
		metrics:  m,
		interval: interval,
		logger:   logger,
	}
}

// Check reads and decodes the list once and records the outcome.
func (h *HealthChecker) Check(ctx context.Context) error {
	list, err := h.comments.FetchList(ctx)
	h.set(err == nil)
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.ListLength(len(list))
	}
	return nil
}

// Serving reports the result of the last check.
func (h *HealthChecker) Serving() bool {
	return h.serving.Load()
}

func (h *HealthChecker) set(ok bool) {
	if prev := h.serving.Swap(ok); prev != ok && !ok {
		h.logger.Warn("comment store unhealthy")
	}
	if h.grpc == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.grpc.SetServingStatus("", status)
}

// Start runs a check immediately and then on every interval.
func (h *HealthChecker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(ctx)
	}()
}

// Stop cancels the probe loop and waits for it to exit. The gRPC health
// service is switched to NOT_SERVING so load balancers drain first.
func (h *HealthChecker) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	if h.grpc != nil {
		h.grpc.Shutdown()
	}
}

func (h *HealthChecker) run(ctx context.Context) {
	h.probe(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.probe(ctx)
		}
	}
}

func (h *HealthChecker) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()
	if err := h.Check(ctx); err != nil && ctx.Err() == nil {
		h.logger.Warn("health probe failed", "error", err)
	}
}

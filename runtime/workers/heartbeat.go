package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentPings = 32

// HeartbeatWorker pings every registered connection on each tick.
// A connection that does not accept the ping within timeout is unregistered and closed,
// so dead peers leave the registry before a broadcast has to discover them.
type HeartbeatWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	metrics  *observability.Metrics
}

func NewHeartbeatWorker(log *slog.Logger, registry contract.IRegistry, clk clock.Clock,
	interval, timeout time.Duration, metrics *observability.Metrics) *HeartbeatWorker {
	if clk == nil {
		clk = clock.New()
	}
	return &HeartbeatWorker{
		log:      log,
		registry: registry,
		clock:    clk,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if evicted := w.Probe(ctx); evicted > 0 {
				w.log.Info("Heartbeat evicted dead connections", "count", evicted)
			}
		}
	}
}

// Probe pings a snapshot of the registry and returns how many connections were evicted.
func (w *HeartbeatWorker) Probe(ctx context.Context) int {
	var evicted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPings)

	for h, conn := range w.registry.All() {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(gctx, w.timeout)
			defer cancel()
			if err := conn.Ping(pingCtx); err != nil {
				w.log.Debug("Ping failed", "connection_id", conn.ID(), "error", err)
				if w.registry.Unregister(h) {
					evicted.Add(1)
					w.metrics.ConnectionClosed("heartbeat", w.registry.Len())
				}
				_ = conn.Close()
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(evicted.Load())
}

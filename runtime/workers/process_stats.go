package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/process"
)

// ProcessStatsWorker samples memory and CPU of the relay process into the metrics.
type ProcessStatsWorker struct {
	log      *slog.Logger
	clock    clock.Clock
	interval time.Duration
	metrics  *observability.Metrics
}

func NewProcessStatsWorker(log *slog.Logger, clk clock.Clock, interval time.Duration,
	metrics *observability.Metrics) *ProcessStatsWorker {
	if clk == nil {
		clk = clock.New()
	}
	return &ProcessStatsWorker{log: log, clock: clk, interval: interval, metrics: metrics}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.metrics.ObserveProcess(rss, cpu)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}

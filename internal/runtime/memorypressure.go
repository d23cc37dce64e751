package runtime

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/agent-memory/agent-memory/internal/metrics"
)

// MemoryPressureCoordinator samples heap allocation on an interval and
// reports whether the process is over its configured watermark. The
// flag is reported by the health tool; neither the embedding queue nor
// the query cache reads it or sheds load on it. Grounded on the teacher's
// pkg/history/performance/profiler.go periodic runtime.MemStats sampler,
// generalized from a metrics-only reporter into a load-shedding signal.
type MemoryPressureCoordinator struct {
	watermark int64
	metrics   *metrics.Registry
	logger    *slog.Logger

	underPressure atomic.Bool
}

// NewMemoryPressureCoordinator constructs a coordinator. watermark <= 0
// disables the pressure check entirely (UnderPressure always false).
func NewMemoryPressureCoordinator(watermark int64, m *metrics.Registry, logger *slog.Logger) *MemoryPressureCoordinator {
	return &MemoryPressureCoordinator{watermark: watermark, metrics: m, logger: logger}
}

// UnderPressure reports the coordinator's last sampled state.
func (c *MemoryPressureCoordinator) UnderPressure() bool {
	return c.underPressure.Load()
}

// Run samples runtime.MemStats every interval until ctx is done. Meant
// to be launched in its own goroutine by Runtime's startup.
func (c *MemoryPressureCoordinator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-ctx.Done():
			return
		}
	}
}

func (c *MemoryPressureCoordinator) sample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	if c.metrics != nil {
		c.metrics.MemoryAllocBytes.Set(float64(m.Alloc))
		c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))
	}

	wasUnder := c.underPressure.Load()
	isUnder := c.watermark > 0 && int64(m.Alloc) >= c.watermark
	c.underPressure.Store(isUnder)

	if isUnder && !wasUnder && c.logger != nil {
		c.logger.Warn("memory pressure high watermark crossed", "alloc_bytes", m.Alloc, "watermark_bytes", c.watermark)
	}
}

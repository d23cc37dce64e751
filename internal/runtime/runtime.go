// Package runtime assembles the process-wide dependency graph:
// Container (process-level, one Runtime) -> Runtime (shared resources)
// -> AppContext (per-transport dependency set built over a Runtime).
// Grounded on the teacher's internal/config/service.go atomic-snapshot
// lifecycle plus internal/infrastructure's adapter-factory wiring,
// generalized from "one storage backend" to the full adapter/service
// graph this spec needs.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agent-memory/agent-memory/internal/adapter/cache"
	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/adapter/lock"
	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/adapter/vector"
	"github.com/agent-memory/agent-memory/internal/adapter/vector/boltvector"
	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/logging"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/query/resultcache"
	"github.com/agent-memory/agent-memory/internal/ratelimit"
	"github.com/agent-memory/agent-memory/internal/service/embedding"
)

// Runtime holds every resource created once per process and shared
// across every AppContext built over it: the memory-pressure
// coordinator, the rate limiter, the optional embedding worker pool,
// the LRU query result cache, a small stats cache, and the event bus.
// Created once at startup by Bootstrap; never rebuilt except by
// Container.Reset for tests.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Registry

	Storage storage.Adapter
	Cache   cache.Adapter
	Lock    lock.Adapter
	Events  event.Adapter
	Vectors vector.Store // nil when the semantic path is disabled

	RateLimiter    *ratelimit.Limiter
	MemoryPressure *MemoryPressureCoordinator
	Embedding      *embedding.Service // nil when the semantic path is disabled
	QueryCache     *resultcache.Cache
	StatsCache     *lru.Cache[string, any]

	unsubscribe []event.Unsubscribe
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// Bootstrap builds every process-shared resource from cfg. Callers own
// the returned Runtime's lifetime and must call Shutdown when done.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	logger := logging.New(cfg.Log)
	reg := metrics.New(prometheus.DefaultRegisterer)

	storageAdapter, err := storage.New(cfg, reg)
	if err != nil {
		return nil, fmt.Errorf("runtime: build storage adapter: %w", err)
	}
	if err := storageAdapter.Connect(ctx); err != nil {
		return nil, fmt.Errorf("runtime: connect storage adapter: %w", err)
	}
	if err := runMigrations(ctx, storageAdapter, logger); err != nil {
		return nil, fmt.Errorf("runtime: apply migrations: %w", err)
	}

	cacheAdapter, err := cache.New(cfg, reg)
	if err != nil {
		return nil, fmt.Errorf("runtime: build cache adapter: %w", err)
	}

	lockAdapter, err := lock.New(cfg, storageAdapter)
	if err != nil {
		return nil, fmt.Errorf("runtime: build lock adapter: %w", err)
	}

	eventAdapter, err := event.New(cfg, reg)
	if err != nil {
		return nil, fmt.Errorf("runtime: build event adapter: %w", err)
	}

	statsCache, err := lru.New[string, any](statsCacheSize(cfg))
	if err != nil {
		return nil, fmt.Errorf("runtime: build stats cache: %w", err)
	}

	rl := ratelimit.New(cfg.RateLimit.Enabled, cfg.RateLimit.DefaultRate, cfg.RateLimit.DefaultBurst,
		rateLimitClasses(cfg.RateLimit.Classes), reg, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		Config:      cfg,
		Logger:      logger,
		Metrics:     reg,
		Storage:     storageAdapter,
		Cache:       cacheAdapter,
		Lock:        lockAdapter,
		Events:      eventAdapter,
		RateLimiter: rl,
		QueryCache:  resultcache.New(cacheAdapter, cfg.Cache.DefaultTTL, reg),
		StatsCache:  statsCache,
		cancel:      cancel,
	}

	rt.MemoryPressure = NewMemoryPressureCoordinator(cfg.App.MemoryHighWatermarkBytes, reg, logger)
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		rt.MemoryPressure.Run(runCtx, cfg.App.MemorySampleInterval)
	}()

	if cfg.RateLimit.Enabled && cfg.RateLimit.CleanupEvery > 0 {
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			runCleanupLoop(runCtx, rl, cfg.RateLimit.CleanupEvery)
		}()
	}

	if cfg.Embedding.Enabled {
		vectors, err := boltvector.Open(cfg.Embedding.VectorStore)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("runtime: open vector store: %w", err)
		}
		rt.Vectors = vectors

		svc, err := buildEmbeddingService(cfg, storageAdapter, vectors, reg, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("runtime: build embedding service: %w", err)
		}
		rt.Embedding = svc
		rt.Embedding.Start(runCtx)
	}

	if err := wireQueryCache(runCtx, rt); err != nil {
		cancel()
		return nil, fmt.Errorf("runtime: wire query cache: %w", err)
	}

	return rt, nil
}

// TrackUnsubscribe registers an event subscription's cancel func so
// Shutdown tears it down, for subscribers wired up outside of
// Bootstrap (the REST transport's watch hub, in particular).
func (rt *Runtime) TrackUnsubscribe(unsub event.Unsubscribe) {
	rt.unsubscribe = append(rt.unsubscribe, unsub)
}

// Shutdown releases every background goroutine and adapter connection.
// Idempotent.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	for _, unsub := range rt.unsubscribe {
		unsub()
	}
	rt.unsubscribe = nil

	if rt.cancel != nil {
		rt.cancel()
	}
	if rt.Embedding != nil {
		rt.Embedding.Stop()
	}
	rt.wg.Wait()

	if rt.Events != nil {
		_ = rt.Events.Close()
	}
	if closer, ok := rt.Vectors.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	return rt.Storage.Disconnect(ctx)
}

func statsCacheSize(cfg *config.Config) int {
	if cfg.Cache.MaxEntries > 0 {
		return cfg.Cache.MaxEntries
	}
	return 1024
}

func rateLimitClasses(classes map[string]config.RateLimitClass) map[string]ratelimit.ClassConfig {
	out := make(map[string]ratelimit.ClassConfig, len(classes))
	for name, c := range classes {
		out[name] = ratelimit.ClassConfig{RatePerSec: c.RatePerSec, Burst: c.Burst}
	}
	return out
}

func runCleanupLoop(ctx context.Context, rl *ratelimit.Limiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

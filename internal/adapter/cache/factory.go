package cache

import (
	"fmt"

	"github.com/agent-memory/agent-memory/internal/adapter/cache/lrucache"
	"github.com/agent-memory/agent-memory/internal/adapter/cache/rediscache"
	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

// New selects the configured backend. The lite profile gets an in-process
// LRU; the standard profile gets a shared Redis cache.
func New(cfg *config.Config, m *metrics.Registry) (Adapter, error) {
	switch cfg.Profile {
	case config.ProfileLite:
		return lrucache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes, m)
	case config.ProfileStandard:
		return rediscache.New(rediscache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    "cache:",
		}, m), nil
	default:
		return nil, fmt.Errorf("unknown deployment profile: %q", cfg.Profile)
	}
}

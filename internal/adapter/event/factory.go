package event

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/agent-memory/agent-memory/internal/adapter/event/localbus"
	"github.com/agent-memory/agent-memory/internal/adapter/event/redisbus"
	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

// New selects the configured backend.
func New(cfg *config.Config, m *metrics.Registry) (Adapter, error) {
	switch cfg.Profile {
	case config.ProfileLite:
		return localbus.New(0, m), nil
	case config.ProfileStandard:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		return redisbus.New(client, "agent-memory:events", m), nil
	default:
		return nil, fmt.Errorf("unknown deployment profile: %q", cfg.Profile)
	}
}

package lock

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/agent-memory/agent-memory/internal/adapter/lock/redislock"
	"github.com/agent-memory/agent-memory/internal/adapter/lock/sqlitelock"
	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/config"
)

// New selects the configured backend. db is the already-constructed
// storage adapter (reused by sqlitelock so file locks and entry writes
// share one connection pool and transaction semantics).
func New(cfg *config.Config, db storage.Adapter) (Adapter, error) {
	switch cfg.Profile {
	case config.ProfileLite:
		return sqlitelock.New(db), nil
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
		return redislock.New(client, "lock:"), nil
	default:
		return nil, fmt.Errorf("unknown deployment profile: %q", cfg.Profile)
	}
}

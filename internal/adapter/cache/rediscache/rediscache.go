// Package rediscache is the CacheAdapter backend for the standard profile:
// github.com/redis/go-redis/v9 client, msgpack payload encoding. Grounded
// on the teacher's internal/infrastructure/cache.Cache (Get/Set/Delete/
// Exists/TTL/Expire/HealthCheck/Flush), trimmed to the subset the query
// pipeline and session layer actually need.
package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/agent-memory/agent-memory/internal/adapter/cache"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

// Cache wraps a go-redis client behind cache.Adapter.
type Cache struct {
	client *redis.Client
	prefix string
	m      *metrics.Registry
}

// Config configures the redis connection.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// New constructs a Cache from cfg.
func New(cfg Config, m *metrics.Registry) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return &Cache{client: client, prefix: cfg.KeyPrefix, m: m}
}

func (c *Cache) key(key string) string { return c.prefix + key }

// Get deserializes the value stored under key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	payload, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.miss()
		return cache.ErrNotFound
	}
	if err != nil {
		c.errorOf("get")
		return err
	}
	c.hit()
	if err := msgpack.Unmarshal(payload, dest); err != nil {
		c.errorOf("decode")
		return err
	}
	return nil
}

// Set encodes value and stores it under key with ttl (0 means no expiry).
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(key), payload, ttl).Err(); err != nil {
		c.errorOf("set")
		return err
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// Clear removes every key under this cache's prefix via SCAN, to avoid
// FLUSHDB wiping keys other components share the same database with.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// GetMany fetches a batch with MGET.
func (c *Cache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	vals, err := c.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = []byte(s)
	}
	return out, nil
}

// SetMany writes a batch of pre-serialized payloads using a pipeline.
func (c *Cache) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for k, v := range values {
		pipe.Set(ctx, c.key(k), v, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Health pings redis.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) hit() {
	if c.m != nil {
		c.m.CacheHits.WithLabelValues("redis").Inc()
	}
}

func (c *Cache) miss() {
	if c.m != nil {
		c.m.CacheMisses.WithLabelValues("redis").Inc()
	}
}

func (c *Cache) errorOf(kind string) {
	if c.m != nil {
		c.m.CacheErrors.WithLabelValues("redis", kind).Inc()
	}
}

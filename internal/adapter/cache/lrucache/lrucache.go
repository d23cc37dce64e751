// Package lrucache is the in-process CacheAdapter backend for the lite
// profile: a byte-budgeted LRU keyed on hashicorp/golang-lru/v2, storing
// pre-serialized msgpack payloads so Get/Set share one code path with
// rediscache. Grounded on the teacher's pkg/history/cache.L1Cache
// (oldest-access eviction, background expiry sweep) reworked onto a real
// LRU library instead of a hand-rolled linear scan.
package lrucache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/agent-memory/agent-memory/internal/adapter/cache"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache is an in-process, byte-budget-aware LRU cache.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, entry]
	maxBytes  int64
	usedBytes int64
	m         *metrics.Registry
}

// New constructs a Cache holding up to maxEntries keys and maxBytes of
// serialized payload, whichever limit is hit first.
func New(maxEntries int, maxBytes int64, m *metrics.Registry) (*Cache, error) {
	c := &Cache{maxBytes: maxBytes, m: m}
	l, err := lru.NewWithEvict(maxEntries, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

func (c *Cache) onEvict(key string, e entry) {
	c.usedBytes -= int64(len(e.payload))
	if c.m != nil {
		c.m.CacheEvictions.WithLabelValues("lru").Inc()
	}
}

// Get deserializes the cached value into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	e, ok := c.lru.Get(key)
	c.mu.Unlock()

	if !ok {
		c.miss()
		return cache.ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		c.lru.Remove(key)
		c.mu.Unlock()
		c.miss()
		return cache.ErrNotFound
	}
	c.hit()
	if err := msgpack.Unmarshal(e.payload, dest); err != nil {
		if c.m != nil {
			c.m.CacheErrors.WithLabelValues("lru", "decode").Inc()
		}
		return err
	}
	return nil
}

// Set encodes value and stores it, evicting oldest entries until both the
// entry-count and byte-budget limits are satisfied.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.usedBytes -= int64(len(old.payload))
	}
	c.lru.Add(key, entry{payload: payload, expiresAt: expiresAt})
	c.usedBytes += int64(len(payload))

	for c.maxBytes > 0 && c.usedBytes > c.maxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
	if c.m != nil {
		c.m.CacheSize.WithLabelValues("lru").Set(float64(c.usedBytes))
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.usedBytes = 0
	return nil
}

// GetMany returns the raw payload bytes for every present, unexpired key.
func (c *Cache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		out[key] = e.payload
	}
	return out, nil
}

// SetMany stores pre-serialized payloads with a shared ttl.
func (c *Cache) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, payload := range values {
		if old, ok := c.lru.Peek(key); ok {
			c.usedBytes -= int64(len(old.payload))
		}
		c.lru.Add(key, entry{payload: payload, expiresAt: expiresAt})
		c.usedBytes += int64(len(payload))
	}
	for c.maxBytes > 0 && c.usedBytes > c.maxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
	return nil
}

// Health always succeeds; the in-process cache has no external dependency.
func (c *Cache) Health(ctx context.Context) error { return nil }

func (c *Cache) hit() {
	if c.m != nil {
		c.m.CacheHits.WithLabelValues("lru").Inc()
	}
}

func (c *Cache) miss() {
	if c.m != nil {
		c.m.CacheMisses.WithLabelValues("lru").Inc()
	}
}

// Package cache defines the CacheAdapter abstraction and its two backends:
// an in-process byte-budgeted LRU (lrucache) for the lite profile, and a
// Redis-backed cache (rediscache) for the standard profile. Grounded on
// the teacher's internal/infrastructure/cache.Cache interface and
// pkg/history/cache.L1Cache eviction shape.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: not found")

// Adapter is the narrow interface the query pipeline's result cache and
// session layer depend on.
type Adapter interface {
	// Get deserializes the value stored under key into dest. Returns
	// ErrNotFound if absent or expired.
	Get(ctx context.Context, key string, dest any) error

	// Set stores value under key with the given ttl (0 means no expiry).
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes key, no error if absent.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry this adapter owns.
	Clear(ctx context.Context) error

	// GetMany fans Get out across keys, omitting absent ones from the result.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMany fans Set out across the given key/value pairs with one ttl.
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
}

// Package resultcache caches query.Result values behind the generic
// cache.Adapter (so it works unmodified against either the lite or
// standard profile's backend) and invalidates them on entry-changed
// events. Grounded on the teacher's two-tier pkg/history/cache/manager.go:
// that manager coordinates an L1/L2 pair and an invalidation index kept
// alongside it; here there is one adapter (already either L1 or L2
// depending on profile) plus the same kind of local scope index, since
// the blob store itself has no notion of "which scope does this answer
// depend on".
package resultcache

import (
	"context"
	"sync"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/cache"
	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/query"
)

// Cache stores formatted query results keyed by a request's filter
// hash, invalidated when any event's scope is an ancestor of the scope
// chain that produced a cached answer.
type Cache struct {
	adapter cache.Adapter
	ttl     time.Duration
	metrics *metrics.Registry

	mu      sync.Mutex
	byScope map[string]map[string]struct{} // scope.String() -> set of cache keys registered under it
}

// New constructs a Cache. ttl bounds how long an entry survives even
// without an invalidating event.
func New(adapter cache.Adapter, ttl time.Duration, m *metrics.Registry) *Cache {
	return &Cache{
		adapter: adapter,
		ttl:     ttl,
		metrics: m,
		byScope: make(map[string]map[string]struct{}),
	}
}

// Get returns a cached result for req, if present and unexpired.
func (c *Cache) Get(ctx context.Context, req query.Request) (*query.Result, bool) {
	key := req.FilterHash()
	var result query.Result
	if err := c.adapter.Get(ctx, key, &result); err != nil {
		return nil, false
	}
	result.Meta.CacheHit = true
	return &result, true
}

// Set stores result under req's filter hash, registered against every
// scope in chain so a future event on any of those scopes evicts it.
func (c *Cache) Set(ctx context.Context, req query.Request, chain domain.Chain, result query.Result) error {
	key := req.FilterHash()
	if err := c.adapter.Set(ctx, key, result, c.ttl); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, scope := range chain {
		s := scope.String()
		if c.byScope[s] == nil {
			c.byScope[s] = make(map[string]struct{})
		}
		c.byScope[s][key] = struct{}{}
	}
	return nil
}

// HandleEvent is the event.Handler registered against the event bus by
// internal/runtime's wire_query_cache helper; it evicts every cache
// entry registered under evt's scope.
func (c *Cache) HandleEvent(evt event.Event) {
	scope := domain.ScopeRef{Kind: domain.ScopeKind(evt.ScopeKind), ID: evt.ScopeID}.String()

	c.mu.Lock()
	keys := c.byScope[scope]
	delete(c.byScope, scope)
	c.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	ctx := context.Background()
	for key := range keys {
		_ = c.adapter.Delete(ctx, key)
	}
}

package resultcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/cache/lrucache"
	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/query"
	"github.com/agent-memory/agent-memory/internal/query/resultcache"
)

func newTestCache(t *testing.T) *resultcache.Cache {
	t.Helper()
	lru, err := lrucache.New(100, 1<<20, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	return resultcache.New(lru, time.Minute, nil)
}

func TestCache_GetAfterSet_IsAHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	req := query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}}
	result := query.Result{Items: []query.FormattedEntry{{Header: domain.Header{ID: "e1"}}}}

	require.NoError(t, c.Set(ctx, req, domain.Chain{domain.Global}, result))

	got, ok := c.Get(ctx, req)
	require.True(t, ok)
	require.True(t, got.Meta.CacheHit)
	require.Len(t, got.Items, 1)
	require.Equal(t, "e1", got.Items[0].Header.ID)
}

func TestCache_Get_MissBeforeSet(t *testing.T) {
	c := newTestCache(t)
	req := query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}}
	_, ok := c.Get(context.Background(), req)
	require.False(t, ok)
}

func TestCache_Get_DifferentRequestIsAMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	req := query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}}
	other := query.Request{Kinds: []domain.EntryKind{domain.KindKnowledge}}
	result := query.Result{Items: []query.FormattedEntry{{Header: domain.Header{ID: "e1"}}}}

	require.NoError(t, c.Set(ctx, req, domain.Chain{domain.Global}, result))

	_, ok := c.Get(ctx, other)
	require.False(t, ok, "FilterHash must distinguish requests with different kinds")
}

func TestCache_HandleEvent_EvictsEveryKeyRegisteredUnderThatScope(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	sess := domain.ScopeRef{Kind: domain.ScopeSession, ID: "sess-1"}
	chain := domain.Chain{sess, domain.Global}

	reqA := query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}}
	reqB := query.Request{Kinds: []domain.EntryKind{domain.KindKnowledge}}
	result := query.Result{Items: []query.FormattedEntry{{Header: domain.Header{ID: "e1"}}}}

	require.NoError(t, c.Set(ctx, reqA, chain, result))
	require.NoError(t, c.Set(ctx, reqB, chain, result))

	c.HandleEvent(event.Event{Kind: "entry.updated", ScopeKind: string(sess.Kind), ScopeID: sess.ID})

	_, ok := c.Get(ctx, reqA)
	require.False(t, ok)
	_, ok = c.Get(ctx, reqB)
	require.False(t, ok)
}

func TestCache_HandleEvent_LeavesUnrelatedScopeUntouched(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	req := query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}}
	result := query.Result{Items: []query.FormattedEntry{{Header: domain.Header{ID: "e1"}}}}

	require.NoError(t, c.Set(ctx, req, domain.Chain{domain.Global}, result))

	c.HandleEvent(event.Event{Kind: "entry.updated", ScopeKind: string(domain.ScopeSession), ScopeID: "unrelated-session"})

	_, ok := c.Get(ctx, req)
	require.True(t, ok, "an event on an unrelated scope must not evict entries registered under a different scope")
}

package embedding

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/adapter/storage/sqliteadapter"
	"github.com/agent-memory/agent-memory/internal/adapter/vector"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/migrations"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// mockProvider is a configurable fake Provider.
type mockProvider struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	callCount int32
}

func (m *mockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&m.callCount, 1)
	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}
	return []float32{1, 2, 3}, nil
}

func (m *mockProvider) calls() int { return int(atomic.LoadInt32(&m.callCount)) }

// memStore is an in-memory vector.Store, standing in for boltvector in
// tests that don't need real file persistence.
type memStore struct {
	mu   sync.Mutex
	vecs map[vector.Key][]float32
}

func newMemStore() *memStore { return &memStore{vecs: make(map[vector.Key][]float32)} }

func (s *memStore) Put(ctx context.Context, key vector.Key, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vecs[key] = vec
	return nil
}

func (s *memStore) Get(ctx context.Context, key vector.Key) ([]float32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vecs[key]
	return v, ok, nil
}

func (s *memStore) Delete(ctx context.Context, key vector.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vecs, key)
	return nil
}

func (s *memStore) Search(ctx context.Context, entryKind string, query []float32, topK int) ([]vector.Match, error) {
	return nil, nil
}

func (s *memStore) Close() error { return nil }

func newTestEntries(t *testing.T) (storage.Adapter, *repository.GuidelineRepository, map[domain.EntryKind]*repository.EntryRepository) {
	t.Helper()
	ctx := context.Background()

	m := metrics.New(prometheus.NewRegistry())
	adapter, err := sqliteadapter.New(t.TempDir()+"/test.db", m)
	require.NoError(t, err)
	require.NoError(t, adapter.Connect(ctx))
	t.Cleanup(func() { _ = adapter.Disconnect(ctx) })

	mgr, err := migrations.NewManager(adapter.DB(), migrations.DialectSQLite, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, mgr.Up(ctx))

	guidelines := repository.NewGuidelineRepository(repository.DbDeps{Adapter: adapter})
	return adapter, guidelines, map[domain.EntryKind]*repository.EntryRepository{
		domain.KindGuideline: guidelines.EntryRepository,
	}
}

func TestService_Enqueue_DisabledReturnsFalse(t *testing.T) {
	s := New(Deps{Config: Config{Enabled: false}})
	require.False(t, s.Enqueue(Job{EntryKind: domain.KindGuideline, EntryID: "e1"}))
}

func TestService_Enqueue_QueueFullReturnsFalse(t *testing.T) {
	s := New(Deps{Config: Config{Enabled: true, QueueDepth: 1}, Metrics: metrics.New(prometheus.NewRegistry())})
	require.True(t, s.Enqueue(Job{EntryID: "e1"}))
	require.False(t, s.Enqueue(Job{EntryID: "e2"}), "a full queue must drop rather than block")
}

func TestService_ProcessesJob_StoresVectorAndRecord(t *testing.T) {
	adapter, guidelines, entries := newTestEntries(t)
	ctx := context.Background()

	entry, err := guidelines.Create(ctx, domain.Header{ID: uuid.NewString(), Kind: domain.KindGuideline, Name: "g1", Scope: domain.Global, CreatedBy: "t"}, map[string]any{"content": "x"})
	require.NoError(t, err)

	store := newMemStore()
	provider := &mockProvider{}
	s := New(Deps{
		Config:   Config{Enabled: true, Workers: 1, Provider: "test", Model: "test-model"},
		Provider: provider,
		Vectors:  store,
		Records:  repository.NewEmbeddingRepository(repository.DbDeps{Adapter: adapter}),
		Entries:  entries,
	})
	s.Start(ctx)
	defer s.Stop()

	s.process(ctx, Job{EntryKind: domain.KindGuideline, EntryID: entry.ID, VersionID: entry.HeadVersion, TextFingerprint: "x"})

	_, ok, err := store.Get(ctx, vector.Key{EntryKind: string(domain.KindGuideline), EntryID: entry.ID, VersionID: entry.HeadVersion})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, provider.calls())
}

func TestService_IsStale_SupersededVersionSkipsWork(t *testing.T) {
	adapter, guidelines, entries := newTestEntries(t)
	ctx := context.Background()

	entry, err := guidelines.Create(ctx, domain.Header{ID: uuid.NewString(), Kind: domain.KindGuideline, Name: "g1", Scope: domain.Global, CreatedBy: "t"}, map[string]any{"content": "v1"})
	require.NoError(t, err)
	_, err = guidelines.Update(ctx, entry.ID, map[string]any{"content": "v2"}, "revise", "t")
	require.NoError(t, err)

	provider := &mockProvider{}
	s := New(Deps{
		Config:   Config{Enabled: true, Provider: "test"},
		Provider: provider,
		Vectors:  newMemStore(),
		Records:  repository.NewEmbeddingRepository(repository.DbDeps{Adapter: adapter}),
		Entries:  entries,
	})

	// job still names version 1, now stale since Update advanced head to 2.
	s.process(ctx, Job{EntryKind: domain.KindGuideline, EntryID: entry.ID, VersionID: 1, TextFingerprint: "v1"})
	require.Equal(t, 0, provider.calls(), "a stale job must never reach the provider")
}

func TestService_HandleFailure_RetryableSchedulesRetryThenFails(t *testing.T) {
	attempts := int32(0)
	provider := &mockProvider{embedFunc: func(ctx context.Context, text string) ([]float32, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, &ProviderError{Retryable: true, Err: context.DeadlineExceeded}
	}}

	_, _, entries := newTestEntries(t)
	s := New(Deps{
		Config:   Config{Enabled: true, Provider: "test", MaxRetries: 2},
		Provider: provider,
		Vectors:  newMemStore(),
		Entries:  entries,
	})

	job := Job{EntryKind: domain.KindGuideline, EntryID: "missing-entry", VersionID: 1}
	// isStale returns true for an unknown entry id, which would normally
	// skip work entirely; call handleFailure directly to drive the retry
	// ledger without depending on isStale's outcome.
	s.handleFailure(context.Background(), job, &ProviderError{Retryable: true, Err: context.DeadlineExceeded})
	s.handleFailure(context.Background(), job, &ProviderError{Retryable: true, Err: context.DeadlineExceeded})
	s.handleFailure(context.Background(), job, &ProviderError{Retryable: true, Err: context.DeadlineExceeded})

	failed := s.FailedJobs()
	require.Len(t, failed, 1)
	require.Equal(t, "missing-entry", failed[0].EntryID)
	require.True(t, failed[0].Failed)

	s.ClearFailed(domain.KindGuideline, "missing-entry")
	require.Empty(t, s.FailedJobs())
}

func TestService_HandleFailure_TerminalNeverRetries(t *testing.T) {
	_, _, entries := newTestEntries(t)
	s := New(Deps{Config: Config{Enabled: true, Provider: "test"}, Entries: entries, Vectors: newMemStore()})

	job := Job{EntryKind: domain.KindGuideline, EntryID: "e1"}
	s.handleFailure(context.Background(), job, &ProviderError{Retryable: false, Err: context.Canceled})

	require.Empty(t, s.FailedJobs(), "a terminal error must not enter the retry ledger at all")
}

func TestService_EmbedQuery_DisabledReturnsFalse(t *testing.T) {
	s := New(Deps{Config: Config{Enabled: false}})
	vec, ok, err := s.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, vec)
}

func TestService_EmbedQuery_ProviderFailureFallsBackGracefully(t *testing.T) {
	provider := &mockProvider{embedFunc: func(ctx context.Context, text string) ([]float32, error) {
		return nil, &ProviderError{Retryable: false, Err: context.Canceled}
	}}
	s := New(Deps{Config: Config{Enabled: true, Provider: "test"}, Provider: provider})

	vec, ok, err := s.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err, "a provider failure must fall back silently, not surface an error")
	require.False(t, ok)
	require.Nil(t, vec)
}

func TestBackoffFor_HonorsProviderDelayOnFirstAttempt(t *testing.T) {
	d := backoffFor(1, 30*time.Second)
	require.Equal(t, 30*time.Second, d)
}

func TestBackoffFor_CapsAtOneMinute(t *testing.T) {
	d := backoffFor(10, 0)
	require.LessOrEqual(t, d, time.Minute)
}

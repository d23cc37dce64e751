package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/adapter/event/localbus"
	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// testRepos bundles the repositories a migrated sqlite-backed test needs,
// wired exactly as appcontext.go wires entryDeps.
type testRepos struct {
	adapter   storage.Adapter
	entries   *repository.GuidelineRepository
	tags      *repository.TagRepository
	conflicts *repository.ConflictRepository
	bus       *localbus.Bus
}

// newTestRepos builds on newTestAdapter, additionally wiring a real
// localbus.Bus so Create/Update/Delete publish calls have a live
// subscriber to reach.
func newTestRepos(t *testing.T) *testRepos {
	t.Helper()
	ctx := context.Background()

	adapter := newTestAdapter(t)
	bus := localbus.New(16, metrics.New(prometheus.NewRegistry()))
	t.Cleanup(func() { _ = bus.Close() })

	deps := repository.DbDeps{Adapter: adapter, Events: bus}
	tags := repository.NewTagRepository(deps)
	conflicts := repository.NewConflictRepository(deps)

	entryDeps := repository.DbDeps{Adapter: adapter, Events: bus, Tags: tags, Conflicts: conflicts}
	return &testRepos{
		adapter:   adapter,
		entries:   repository.NewGuidelineRepository(entryDeps),
		tags:      tags,
		conflicts: conflicts,
		bus:       bus,
	}
}

// subscribeEvents returns a channel fed by every event the bus publishes
// from this point on.
func subscribeEvents(t *testing.T, bus *localbus.Bus) <-chan event.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ch := make(chan event.Event, 16)
	_, err := bus.Subscribe(ctx, func(evt event.Event) { ch <- evt })
	require.NoError(t, err)
	return ch
}

func waitForEvent(t *testing.T, ch <-chan event.Event, wantKind event.Kind) event.Event {
	t.Helper()
	select {
	case evt := <-ch:
		require.Equal(t, wantKind, evt.Kind)
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s event", wantKind)
		return event.Event{}
	}
}

func newHeader(scope domain.ScopeRef, tagIDs ...string) domain.Header {
	return domain.Header{
		ID:        uuid.NewString(),
		Kind:      domain.KindGuideline,
		Name:      "entry-" + uuid.NewString(),
		Scope:     scope,
		CreatedBy: "tester",
		TagIDs:    tagIDs,
	}
}

func TestEntryRepository_Create_PublishesEvent(t *testing.T) {
	repos := newTestRepos(t)
	events := subscribeEvents(t, repos.bus)
	ctx := context.Background()

	h := newHeader(domain.Global)
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "hello"})
	require.NoError(t, err)

	evt := waitForEvent(t, events, event.KindEntryCreated)
	require.Equal(t, entry.ID, evt.EntryID)
	require.Equal(t, string(domain.ScopeGlobal), evt.ScopeKind)
}

func TestEntryRepository_Create_AttachesSuppliedTags(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.tags.Create(ctx, domain.Tag{ID: "tag-1", Name: "security"}))
	require.NoError(t, repos.tags.Create(ctx, domain.Tag{ID: "tag-2", Name: "perf"}))

	h := newHeader(domain.Global, "tag-1", "tag-2")
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "hello"})
	require.NoError(t, err)

	attached, err := repos.tags.ForEntries(ctx, domain.KindGuideline, []string{entry.ID})
	require.NoError(t, err)
	require.Len(t, attached[entry.ID], 2)

	names := map[string]bool{}
	for _, tag := range attached[entry.ID] {
		names[tag.Name] = true
	}
	require.True(t, names["security"])
	require.True(t, names["perf"])
}

func TestEntryRepository_Update_PublishesEvent(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	h := newHeader(domain.Global)
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "v1"})
	require.NoError(t, err)

	events := subscribeEvents(t, repos.bus)
	_, err = repos.entries.Update(ctx, entry.ID, map[string]any{"content": "v2"}, "revise", "tester")
	require.NoError(t, err)

	evt := waitForEvent(t, events, event.KindEntryUpdated)
	require.Equal(t, entry.ID, evt.EntryID)
}

func TestEntryRepository_Update_WithinWindow_RecordsConflict(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	h := newHeader(domain.Global)
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "v1"})
	require.NoError(t, err)

	_, err = repos.entries.Update(ctx, entry.ID, map[string]any{"content": "v2"}, "first edit", "tester")
	require.NoError(t, err)

	// Second update lands well inside the 5s window.
	_, err = repos.entries.Update(ctx, entry.ID, map[string]any{"content": "v3"}, "second edit", "other-agent")
	require.NoError(t, err)

	conflicts, err := repos.conflicts.ForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, 2, conflicts[0].VersionA)
	require.Equal(t, 3, conflicts[0].VersionB)
	require.False(t, conflicts[0].Resolved)
}

// TestConflictRepository_DetectAndRecord_OutsideWindow exercises
// DetectAndRecord directly (rather than through EntryRepository.Update,
// which always passes time.Now()) to cover the boundary spec §4.4 names:
// a "now" more than ConflictWindow past the previous version's
// created_at must not record a conflict.
func TestConflictRepository_DetectAndRecord_OutsideWindow(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	h := newHeader(domain.Global)
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "v1"})
	require.NoError(t, err)
	_, err = repos.entries.Update(ctx, entry.ID, map[string]any{"content": "v2"}, "first edit", "tester")
	require.NoError(t, err)

	err = repos.adapter.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		conflict, err := repos.conflicts.DetectAndRecord(ctx, tx, entry.ID, 3, time.Now().UTC().Add(repository.ConflictWindow+time.Minute))
		require.NoError(t, err)
		require.Nil(t, conflict, "a version created beyond the conflict window must not record a conflict")
		return nil
	})
	require.NoError(t, err)

	conflicts, err := repos.conflicts.ForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

// TestConflictRepository_DetectAndRecord_AtBoundary pins the exact 5.0s
// edge: a gap equal to ConflictWindow must still count as a conflict
// (DetectAndRecord only excludes strictly-greater gaps).
func TestConflictRepository_DetectAndRecord_AtBoundary(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	h := newHeader(domain.Global)
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "v1"})
	require.NoError(t, err)
	_, err = repos.entries.Update(ctx, entry.ID, map[string]any{"content": "v2"}, "first edit", "tester")
	require.NoError(t, err)

	var lastCreatedAt time.Time
	row := repos.adapter.QueryRowContext(ctx, `SELECT created_at FROM entry_versions WHERE entry_id = ? AND version_number = 2`, entry.ID)
	require.NoError(t, row.Scan(&lastCreatedAt))

	err = repos.adapter.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		conflict, err := repos.conflicts.DetectAndRecord(ctx, tx, entry.ID, 3, lastCreatedAt.Add(repository.ConflictWindow))
		require.NoError(t, err)
		require.NotNil(t, conflict, "a gap exactly equal to ConflictWindow must still record a conflict")
		return nil
	})
	require.NoError(t, err)
}

func TestEntryRepository_Delete_PublishesEvent(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	h := newHeader(domain.Global)
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "v1"})
	require.NoError(t, err)

	events := subscribeEvents(t, repos.bus)
	require.NoError(t, repos.entries.Delete(ctx, entry.ID, entry.Scope))

	evt := waitForEvent(t, events, event.KindEntryDeleted)
	require.Equal(t, entry.ID, evt.EntryID)

	_, err = repos.entries.GetByID(ctx, entry.ID)
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeNotFound, ae.Code)
}

func TestEntryRepository_SetActive_PublishesEvent(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	h := newHeader(domain.Global)
	entry, err := repos.entries.Create(ctx, h, map[string]any{"content": "v1"})
	require.NoError(t, err)

	events := subscribeEvents(t, repos.bus)
	require.NoError(t, repos.entries.SetActive(ctx, entry.ID, false, entry.Scope))

	evt := waitForEvent(t, events, event.KindEntryUpdated)
	require.Equal(t, entry.ID, evt.EntryID)

	fetched, err := repos.entries.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.False(t, fetched.Active)
}

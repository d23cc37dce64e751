package query_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/storage/sqliteadapter"
	"github.com/agent-memory/agent-memory/internal/cursor"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/migrations"
	"github.com/agent-memory/agent-memory/internal/query"
	"github.com/agent-memory/agent-memory/internal/repository"
)

type testPipeline struct {
	pipeline   *query.Pipeline
	guidelines *repository.GuidelineRepository
	tags       *repository.TagRepository
	relations  *repository.RelationRepository
	graph      *repository.GraphRepository
}

func newTestPipeline(t *testing.T) testPipeline {
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

	deps := repository.DbDeps{Adapter: adapter}
	guidelines := repository.NewGuidelineRepository(deps)
	tags := repository.NewTagRepository(deps)
	relations := repository.NewRelationRepository(deps)
	graph := repository.NewGraphRepository(deps)
	scopes := repository.NewScopeRepository(deps)

	codec, err := cursor.New("test-secret-key-for-pagination", 0)
	require.NoError(t, err)

	return testPipeline{
		pipeline: query.New(query.Deps{
			Scopes:    scopes,
			Entries:   map[domain.EntryKind]*repository.EntryRepository{domain.KindGuideline: guidelines.EntryRepository},
			Tags:      tags,
			Relations: relations,
			Graph:     graph,
			Conflicts: repository.NewConflictRepository(deps),
			Cursor:    codec,
			Metrics:   m,
		}),
		guidelines: guidelines,
		tags:       tags,
		relations:  relations,
		graph:      graph,
	}
}

func newGuideline(t *testing.T, tp testPipeline, name string, priority int) domain.Entry {
	t.Helper()
	e, err := tp.guidelines.Create(context.Background(), domain.Header{
		ID: name, Kind: domain.KindGuideline, Name: name, Scope: domain.Global,
		Priority: priority, CreatedBy: "t",
	}, map[string]any{"content": name + " body text"})
	require.NoError(t, err)
	return *e
}

func TestPipeline_Run_RejectsUnknownKind(t *testing.T) {
	tp := newTestPipeline(t)
	_, err := tp.pipeline.Run(context.Background(), query.Request{Kinds: []domain.EntryKind{domain.KindKnowledge}})
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeMissingField, ae.Code)
}

func TestPipeline_Run_SearchMatchesTokenPrefix(t *testing.T) {
	tp := newTestPipeline(t)
	newGuideline(t, tp, "alpha", 1)
	newGuideline(t, tp, "beta", 1)

	res, err := tp.pipeline.Run(context.Background(), query.Request{
		Kinds: []domain.EntryKind{domain.KindGuideline}, Search: "alp",
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, "alpha", res.Items[0].Header.Name)
}

func TestPipeline_Run_PriorityOrdersResults(t *testing.T) {
	tp := newTestPipeline(t)
	newGuideline(t, tp, "low", 1)
	newGuideline(t, tp, "high", 9)

	res, err := tp.pipeline.Run(context.Background(), query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Equal(t, "high", res.Items[0].Header.Name)
	require.Equal(t, "low", res.Items[1].Header.Name)
}

func TestPipeline_Run_TagFilterRequiresAll(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	e := newGuideline(t, tp, "tagged", 1)

	require.NoError(t, tp.tags.Create(ctx, domain.Tag{ID: "tag-1", Name: "urgent"}))
	require.NoError(t, tp.tags.Attach(ctx, domain.KindGuideline, e.ID, "tag-1"))

	res, err := tp.pipeline.Run(ctx, query.Request{
		Kinds: []domain.EntryKind{domain.KindGuideline},
		Tags:  query.TagFilter{Require: []string{"urgent"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	none, err := tp.pipeline.Run(ctx, query.Request{
		Kinds: []domain.EntryKind{domain.KindGuideline},
		Tags:  query.TagFilter{Require: []string{"missing-tag"}},
	})
	require.NoError(t, err)
	require.Empty(t, none.Items)
}

func TestPipeline_Run_RelatedToNarrowsToReachableNodes(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	center := newGuideline(t, tp, "center", 1)
	leaf := newGuideline(t, tp, "leaf", 1)
	newGuideline(t, tp, "stray", 1) // no graph edge: must never appear in a related_to result

	require.NoError(t, tp.graph.UpsertNode(ctx, domain.GraphNode{ID: center.ID, Kind: domain.KindGuideline, Scope: domain.Global}))
	require.NoError(t, tp.graph.UpsertNode(ctx, domain.GraphNode{ID: leaf.ID, Kind: domain.KindGuideline, Scope: domain.Global}))
	require.NoError(t, tp.graph.UpsertEdge(ctx, domain.GraphEdge{ID: "edge-1", SourceNode: center.ID, TargetNode: leaf.ID, Type: domain.RelationRelatedTo}))

	res, err := tp.pipeline.Run(ctx, query.Request{
		Kinds:     []domain.EntryKind{domain.KindGuideline},
		RelatedTo: &query.RelatedTo{Kind: domain.KindGuideline, ID: center.ID, Direction: repository.DirectionForward, Depth: 1},
	})
	require.NoError(t, err)

	ids := make([]string, len(res.Items))
	for i, item := range res.Items {
		ids[i] = item.Header.ID
	}
	require.ElementsMatch(t, []string{center.ID, leaf.ID}, ids, "the anchor node and everything reachable from it must survive, nothing else")
}

func TestPipeline_Run_CursorPaginatesAndRoundTrips(t *testing.T) {
	tp := newTestPipeline(t)
	for i := 0; i < 3; i++ {
		newGuideline(t, tp, []string{"a", "b", "c"}[i], 9-i)
	}

	req := query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}, Limit: 1}
	first, err := tp.pipeline.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.Equal(t, "a", first.Items[0].Header.Name)
	require.True(t, first.Meta.Truncated)
	require.NotEmpty(t, first.Meta.NextCursor)

	req.Cursor = first.Meta.NextCursor
	second, err := tp.pipeline.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, "b", second.Items[0].Header.Name)
}

func TestPipeline_Run_CursorRejectsMismatchedQuery(t *testing.T) {
	tp := newTestPipeline(t)
	for i := 0; i < 2; i++ {
		newGuideline(t, tp, []string{"a", "b"}[i], 9-i)
	}

	first, err := tp.pipeline.Run(context.Background(), query.Request{Kinds: []domain.EntryKind{domain.KindGuideline}, Limit: 1})
	require.NoError(t, err)

	_, err = tp.pipeline.Run(context.Background(), query.Request{
		Kinds: []domain.EntryKind{domain.KindGuideline}, Limit: 1, Category: "different-query", Cursor: first.Meta.NextCursor,
	})
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeInvalidCursor, ae.Code)
}

func TestPipeline_Run_ShapeCompactOmitsPayload(t *testing.T) {
	tp := newTestPipeline(t)
	newGuideline(t, tp, "alpha", 1)

	res, err := tp.pipeline.Run(context.Background(), query.Request{
		Kinds: []domain.EntryKind{domain.KindGuideline}, Shape: query.ShapeCompact,
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Nil(t, res.Items[0].Payload)
	require.Equal(t, "alpha", res.Items[0].Summary)
}

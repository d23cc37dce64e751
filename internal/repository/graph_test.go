package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
)

func newGraphRepo(t *testing.T) *repository.GraphRepository {
	return repository.NewGraphRepository(repository.DbDeps{Adapter: newTestAdapter(t)})
}

func TestGraphRepository_UpsertNode_IsIdempotent(t *testing.T) {
	repo := newGraphRepo(t)
	ctx := context.Background()
	node := domain.GraphNode{ID: "n1", Kind: domain.KindGuideline, Scope: domain.Global}

	require.NoError(t, repo.UpsertNode(ctx, node))
	require.NoError(t, repo.UpsertNode(ctx, node))

	kinds, err := repo.Kinds(ctx, []string{"n1"})
	require.NoError(t, err)
	require.Equal(t, domain.KindGuideline, kinds["n1"])
}

func TestGraphRepository_DeleteNode_CascadesEdges(t *testing.T) {
	repo := newGraphRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertNode(ctx, domain.GraphNode{ID: "n1", Kind: domain.KindGuideline, Scope: domain.Global}))
	require.NoError(t, repo.UpsertNode(ctx, domain.GraphNode{ID: "n2", Kind: domain.KindGuideline, Scope: domain.Global}))
	require.NoError(t, repo.UpsertEdge(ctx, domain.GraphEdge{ID: "e1", SourceNode: "n1", TargetNode: "n2", Type: domain.RelationDependsOn}))

	require.NoError(t, repo.DeleteNode(ctx, "n1"))

	edges, err := repo.Neighbors(ctx, "n2", 0)
	require.NoError(t, err)
	require.Empty(t, edges)
}

func TestGraphRepository_Neighbors_RespectsLimit(t *testing.T) {
	repo := newGraphRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertNode(ctx, domain.GraphNode{ID: "center", Kind: domain.KindGuideline, Scope: domain.Global}))
	for i := 0; i < 3; i++ {
		leaf := "leaf-" + string(rune('a'+i))
		require.NoError(t, repo.UpsertNode(ctx, domain.GraphNode{ID: leaf, Kind: domain.KindGuideline, Scope: domain.Global}))
		require.NoError(t, repo.UpsertEdge(ctx, domain.GraphEdge{ID: "e-" + leaf, SourceNode: "center", TargetNode: leaf, Type: domain.RelationRelatedTo}))
	}

	edges, err := repo.Neighbors(ctx, "center", 2)
	require.NoError(t, err)
	require.Len(t, edges, 2)

	all, err := repo.Neighbors(ctx, "center", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestGraphRepository_Kinds_EmptyInput(t *testing.T) {
	repo := newGraphRepo(t)
	out, err := repo.Kinds(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

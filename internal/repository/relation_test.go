package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/repository"
)

func newRelationRepo(t *testing.T) *repository.RelationRepository {
	return repository.NewRelationRepository(repository.DbDeps{Adapter: newTestAdapter(t)})
}

func TestRelationRepository_Create_RejectsUnknownType(t *testing.T) {
	repo := newRelationRepo(t)
	err := repo.Create(context.Background(), domain.Relation{ID: "r1", Type: "bogus"})
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeMissingField, ae.Code)
}

func TestRelationRepository_ForEntry_RespectsDirection(t *testing.T) {
	repo := newRelationRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, domain.Relation{
		ID: "r1", SourceKind: domain.KindGuideline, SourceID: "a", TargetKind: domain.KindGuideline, TargetID: "b",
		Type: domain.RelationDependsOn, CreatedAt: now,
	}))
	require.NoError(t, repo.Create(ctx, domain.Relation{
		ID: "r2", SourceKind: domain.KindGuideline, SourceID: "c", TargetKind: domain.KindGuideline, TargetID: "a",
		Type: domain.RelationRelatedTo, CreatedAt: now,
	}))

	forward, err := repo.ForEntry(ctx, domain.KindGuideline, "a", repository.DirectionForward)
	require.NoError(t, err)
	require.Len(t, forward, 1)
	require.Equal(t, "r1", forward[0].ID)

	backward, err := repo.ForEntry(ctx, domain.KindGuideline, "a", repository.DirectionBackward)
	require.NoError(t, err)
	require.Len(t, backward, 1)
	require.Equal(t, "r2", backward[0].ID)

	both, err := repo.ForEntry(ctx, domain.KindGuideline, "a", repository.DirectionBoth)
	require.NoError(t, err)
	require.Len(t, both, 2)
}

func TestRelationRepository_Delete_NotFound(t *testing.T) {
	repo := newRelationRepo(t)
	err := repo.Delete(context.Background(), "missing")
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeNotFound, ae.Code)
}

package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/repository"
)

func newTagRepo(t *testing.T) *repository.TagRepository {
	return repository.NewTagRepository(repository.DbDeps{Adapter: newTestAdapter(t)})
}

func TestTagRepository_CreateAndGetByName(t *testing.T) {
	repo := newTagRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.Tag{ID: "t1", Name: "security", Color: "#f00"}))

	got, err := repo.GetByName(ctx, "security")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ID)
	require.Equal(t, "#f00", got.Color)
}

func TestTagRepository_GetByName_NotFound(t *testing.T) {
	repo := newTagRepo(t)
	_, err := repo.GetByName(context.Background(), "missing")
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeNotFound, ae.Code)
}

func TestTagRepository_List_OrderedByName(t *testing.T) {
	repo := newTagRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, domain.Tag{ID: "t2", Name: "zeta"}))
	require.NoError(t, repo.Create(ctx, domain.Tag{ID: "t1", Name: "alpha"}))

	tags, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, "alpha", tags[0].Name)
	require.Equal(t, "zeta", tags[1].Name)
}

func TestTagRepository_AttachAndDetach(t *testing.T) {
	repo := newTagRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, domain.Tag{ID: "t1", Name: "security"}))

	require.NoError(t, repo.Attach(ctx, domain.KindKnowledge, "entry-1", "t1"))
	byEntry, err := repo.ForEntries(ctx, domain.KindKnowledge, []string{"entry-1"})
	require.NoError(t, err)
	require.Len(t, byEntry["entry-1"], 1)

	require.NoError(t, repo.Detach(ctx, domain.KindKnowledge, "entry-1", "t1"))
	byEntry, err = repo.ForEntries(ctx, domain.KindKnowledge, []string{"entry-1"})
	require.NoError(t, err)
	require.Empty(t, byEntry["entry-1"])
}

func TestTagRepository_ForEntries_EmptyInputReturnsEmptyMap(t *testing.T) {
	repo := newTagRepo(t)
	out, err := repo.ForEntries(context.Background(), domain.KindKnowledge, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestTagRepository_Delete_CascadesAttachments(t *testing.T) {
	repo := newTagRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, domain.Tag{ID: "t1", Name: "security"}))
	require.NoError(t, repo.Attach(ctx, domain.KindKnowledge, "entry-1", "t1"))

	require.NoError(t, repo.Delete(ctx, "t1"))

	byEntry, err := repo.ForEntries(ctx, domain.KindKnowledge, []string{"entry-1"})
	require.NoError(t, err)
	require.Empty(t, byEntry["entry-1"])
}

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

func newScopeRepo(t *testing.T) *repository.ScopeRepository {
	return repository.NewScopeRepository(repository.DbDeps{Adapter: newTestAdapter(t)})
}

func TestScopeRepository_Resolve_Global(t *testing.T) {
	repo := newScopeRepo(t)
	chain, err := repo.Resolve(context.Background(), domain.Global)
	require.NoError(t, err)
	require.Equal(t, domain.Chain{domain.Global}, chain)
}

// TestScopeRepository_Resolve_SessionChain is the round-trip law spec §8
// names: resolving a session must return its full ancestry,
// most-specific first, ending in global.
func TestScopeRepository_Resolve_SessionChain(t *testing.T) {
	repo := newScopeRepo(t)
	ctx := context.Background()
	now := time.Now().Unix()

	require.NoError(t, repo.CreateOrg(ctx, domain.Org{ID: "org-1", Name: "acme", CreatedAt: now}))
	require.NoError(t, repo.CreateProject(ctx, domain.Project{ID: "proj-1", OrgID: "org-1", Name: "widgets", CreatedAt: now}))
	require.NoError(t, repo.CreateSession(ctx, domain.Session{ID: "sess-1", ProjectID: "proj-1", Name: "run-1", CreatedAt: now}))

	chain, err := repo.Resolve(ctx, domain.ScopeRef{Kind: domain.ScopeSession, ID: "sess-1"})
	require.NoError(t, err)
	require.Equal(t, domain.Chain{
		{Kind: domain.ScopeSession, ID: "sess-1"},
		{Kind: domain.ScopeProject, ID: "proj-1"},
		{Kind: domain.ScopeOrg, ID: "org-1"},
		domain.Global,
	}, chain)
}

func TestScopeRepository_Resolve_UnknownProject_IsInvalidIdentifier(t *testing.T) {
	repo := newScopeRepo(t)
	_, err := repo.Resolve(context.Background(), domain.ScopeRef{Kind: domain.ScopeProject, ID: "nope"})
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeInvalidIdentifier, ae.Code)
}

func TestScopeRepository_ProjectsAndSessionsForParent(t *testing.T) {
	repo := newScopeRepo(t)
	ctx := context.Background()
	now := time.Now().Unix()

	require.NoError(t, repo.CreateOrg(ctx, domain.Org{ID: "org-1", Name: "acme", CreatedAt: now}))
	require.NoError(t, repo.CreateProject(ctx, domain.Project{ID: "proj-1", OrgID: "org-1", Name: "widgets", CreatedAt: now}))
	require.NoError(t, repo.CreateProject(ctx, domain.Project{ID: "proj-2", OrgID: "org-1", Name: "gadgets", CreatedAt: now}))
	require.NoError(t, repo.CreateSession(ctx, domain.Session{ID: "sess-1", ProjectID: "proj-1", Name: "run-1", CreatedAt: now}))

	projects, err := repo.ProjectsForOrg(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, projects, 2)

	sessions, err := repo.SessionsForProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "sess-1", sessions[0].ID)
}

func TestScopeRepository_DeleteOrg_NotFound(t *testing.T) {
	repo := newScopeRepo(t)
	err := repo.DeleteOrg(context.Background(), "missing")
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apperror.CodeNotFound, ae.Code)
}

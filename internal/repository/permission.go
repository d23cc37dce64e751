package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// GrantRepository stores permission grants. The permission service owns
// every read/write policy decision; this layer is plain CRUD plus the
// one query the scope-chain walk needs (every grant reachable from a
// scope chain for one agent).
type GrantRepository struct {
	db storage.Adapter
}

// NewGrantRepository constructs a GrantRepository.
func NewGrantRepository(deps DbDeps) *GrantRepository {
	return &GrantRepository{db: deps.Adapter}
}

func (r *GrantRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// Create inserts a grant.
func (r *GrantRepository) Create(ctx context.Context, g domain.Grant) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`INSERT INTO permission_grants (id, agent_id, action, entry_kind, scope_kind, scope_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.AgentID, string(g.Action), string(g.EntryKind), string(g.Scope.Kind), g.Scope.ID,
		time.Unix(g.CreatedAt, 0).UTC())
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to create permission grant", err)
	}
	return nil
}

// Revoke deletes a grant by id.
func (r *GrantRepository) Revoke(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rewrite(`DELETE FROM permission_grants WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "permission grant", id)
}

// ForAgentAcrossChain returns every grant for agentID whose scope
// appears in chain, across every entry kind and the wildcard (empty)
// entry kind. The permission service decides which of these actually
// satisfy the requested action.
func (r *GrantRepository) ForAgentAcrossChain(ctx context.Context, agentID string, chain domain.Chain) ([]domain.Grant, error) {
	if len(chain) == 0 {
		return nil, nil
	}

	query := `SELECT id, agent_id, action, entry_kind, scope_kind, scope_id, created_at
	          FROM permission_grants WHERE agent_id = ? AND (`
	args := []any{agentID}
	for i, ref := range chain {
		if i > 0 {
			query += " OR "
		}
		query += "(scope_kind = ? AND scope_id = ?)"
		args = append(args, string(ref.Kind), ref.ID)
	}
	query += ")"

	rows, err := r.db.QueryContext(ctx, r.rewrite(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Grant
	for rows.Next() {
		var g domain.Grant
		var action, entryKind, scopeKind string
		var createdAt time.Time
		if err := rows.Scan(&g.ID, &g.AgentID, &action, &entryKind, &scopeKind, &g.Scope.ID, &createdAt); err != nil {
			return nil, err
		}
		g.Action = domain.Action(action)
		g.EntryKind = domain.EntryKind(entryKind)
		g.Scope.Kind = domain.ScopeKind(scopeKind)
		g.CreatedAt = createdAt.Unix()
		out = append(out, g)
	}
	return out, rows.Err()
}

// Get fetches a grant by id.
func (r *GrantRepository) Get(ctx context.Context, id string) (*domain.Grant, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(
		`SELECT id, agent_id, action, entry_kind, scope_kind, scope_id, created_at
		 FROM permission_grants WHERE id = ?`), id)
	var g domain.Grant
	var action, entryKind, scopeKind string
	var createdAt time.Time
	if err := row.Scan(&g.ID, &g.AgentID, &action, &entryKind, &scopeKind, &g.Scope.ID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("permission grant", id)
		}
		return nil, err
	}
	g.Action = domain.Action(action)
	g.EntryKind = domain.EntryKind(entryKind)
	g.Scope.Kind = domain.ScopeKind(scopeKind)
	g.CreatedAt = createdAt.Unix()
	return &g, nil
}

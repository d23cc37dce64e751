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

// ScopeRepository stores the organization/project/session hierarchy and
// resolves a scope reference's ancestry chain, most-specific first.
// Deletion cascades down the hierarchy (org -> projects -> sessions) and
// further into every entry those scopes own, which the service layer
// drives through EntryRepository.Delete rather than relying on a single
// recursive SQL statement, to keep cascade semantics identical across
// sqlite and postgres.
type ScopeRepository struct {
	db storage.Adapter
}

// NewScopeRepository constructs a ScopeRepository.
func NewScopeRepository(deps DbDeps) *ScopeRepository {
	return &ScopeRepository{db: deps.Adapter}
}

func (r *ScopeRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// CreateOrg inserts an organization.
func (r *ScopeRepository) CreateOrg(ctx context.Context, o domain.Org) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`INSERT INTO orgs (id, name, created_at, created_by) VALUES (?, ?, ?, ?)`),
		o.ID, o.Name, time.Unix(o.CreatedAt, 0).UTC(), o.CreatedBy)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to create organization", err)
	}
	return nil
}

// GetOrg fetches an organization by id.
func (r *ScopeRepository) GetOrg(ctx context.Context, id string) (*domain.Org, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(
		`SELECT id, name, created_at, created_by FROM orgs WHERE id = ?`), id)
	var o domain.Org
	var createdAt time.Time
	if err := row.Scan(&o.ID, &o.Name, &createdAt, &o.CreatedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("organization", id)
		}
		return nil, err
	}
	o.CreatedAt = createdAt.Unix()
	return &o, nil
}

// DeleteOrg removes an organization. Callers must cascade-delete its
// projects (and their sessions and entries) before calling this, per
// spec's "deletion of a scope cascades" invariant.
func (r *ScopeRepository) DeleteOrg(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rewrite(`DELETE FROM orgs WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "organization", id)
}

// CreateProject inserts a project under an organization.
func (r *ScopeRepository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`INSERT INTO projects (id, org_id, name, created_at, created_by) VALUES (?, ?, ?, ?, ?)`),
		p.ID, p.OrgID, p.Name, time.Unix(p.CreatedAt, 0).UTC(), p.CreatedBy)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to create project", err)
	}
	return nil
}

// GetProject fetches a project by id.
func (r *ScopeRepository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(
		`SELECT id, org_id, name, created_at, created_by FROM projects WHERE id = ?`), id)
	var p domain.Project
	var createdAt time.Time
	if err := row.Scan(&p.ID, &p.OrgID, &p.Name, &createdAt, &p.CreatedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("project", id)
		}
		return nil, err
	}
	p.CreatedAt = createdAt.Unix()
	return &p, nil
}

// ProjectsForOrg lists every project belonging to orgID.
func (r *ScopeRepository) ProjectsForOrg(ctx context.Context, orgID string) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, r.rewrite(
		`SELECT id, org_id, name, created_at, created_by FROM projects WHERE org_id = ?`), orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		var createdAt time.Time
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &createdAt, &p.CreatedBy); err != nil {
			return nil, err
		}
		p.CreatedAt = createdAt.Unix()
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project. Callers cascade its sessions and
// owned entries first.
func (r *ScopeRepository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rewrite(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "project", id)
}

// CreateSession inserts a session under a project.
func (r *ScopeRepository) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`INSERT INTO sessions (id, project_id, name, created_at, created_by) VALUES (?, ?, ?, ?, ?)`),
		s.ID, s.ProjectID, s.Name, time.Unix(s.CreatedAt, 0).UTC(), s.CreatedBy)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to create session", err)
	}
	return nil
}

// GetSession fetches a session by id.
func (r *ScopeRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(
		`SELECT id, project_id, name, created_at, created_by FROM sessions WHERE id = ?`), id)
	var s domain.Session
	var createdAt time.Time
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &createdAt, &s.CreatedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("session", id)
		}
		return nil, err
	}
	s.CreatedAt = createdAt.Unix()
	return &s, nil
}

// SessionsForProject lists every session belonging to projectID.
func (r *ScopeRepository) SessionsForProject(ctx context.Context, projectID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, r.rewrite(
		`SELECT id, project_id, name, created_at, created_by FROM sessions WHERE project_id = ?`), projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var s domain.Session
		var createdAt time.Time
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &createdAt, &s.CreatedBy); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt.Unix()
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a session. Callers cascade its owned entries
// first.
func (r *ScopeRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rewrite(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "session", id)
}

// Resolve walks ref's ancestry and returns the chain most-specific
// first, ending in domain.Global. Malformed project/session identifiers
// (those that don't resolve to a stored row) surface as a validation
// error rather than silently falling back to a broader scope, per
// spec's resolve-stage contract.
func (r *ScopeRepository) Resolve(ctx context.Context, ref domain.ScopeRef) (domain.Chain, error) {
	if !ref.Valid() {
		return nil, apperror.New(apperror.CodeInvalidIdentifier, "invalid scope reference")
	}

	switch ref.Kind {
	case domain.ScopeGlobal:
		return domain.Chain{domain.Global}, nil

	case domain.ScopeOrg:
		if _, err := r.GetOrg(ctx, ref.ID); err != nil {
			return nil, invalidScopeID(err, "organization", ref.ID)
		}
		return domain.Chain{ref, domain.Global}, nil

	case domain.ScopeProject:
		p, err := r.GetProject(ctx, ref.ID)
		if err != nil {
			return nil, invalidScopeID(err, "project", ref.ID)
		}
		return domain.Chain{
			ref,
			{Kind: domain.ScopeOrg, ID: p.OrgID},
			domain.Global,
		}, nil

	case domain.ScopeSession:
		s, err := r.GetSession(ctx, ref.ID)
		if err != nil {
			return nil, invalidScopeID(err, "session", ref.ID)
		}
		p, err := r.GetProject(ctx, s.ProjectID)
		if err != nil {
			return nil, invalidScopeID(err, "project", s.ProjectID)
		}
		return domain.Chain{
			ref,
			{Kind: domain.ScopeProject, ID: p.ID},
			{Kind: domain.ScopeOrg, ID: p.OrgID},
			domain.Global,
		}, nil
	}

	return nil, apperror.New(apperror.CodeInvalidIdentifier, "unknown scope kind")
}

func invalidScopeID(err error, kind, id string) error {
	var ae *apperror.Error
	if apperror.As(err, &ae) && ae.Code == apperror.CodeNotFound {
		return apperror.New(apperror.CodeInvalidIdentifier, kind+" identifier does not resolve", "kind", kind, "id", id)
	}
	return err
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound(kind, id)
	}
	return nil
}

// Package repository is the storage layer: one repository per aggregate,
// each constructed from DbDeps, speaking only storage.DBTX so call sites
// never know which backend is live. Cascade policy for
// delete is implemented here rather than relied on via foreign keys, to
// stay backend-independent (sqlite foreign_keys and postgres
// constraints differ in enforcement subtleties). Grounded on the
// teacher's internal/infrastructure/template repository (transactional
// create-with-version, optimistic-update-with-version-snapshot, CRUD
// shape), generalized from one entry kind to the three kinds sharing one
// table pair.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// DbDeps is the constructor argument shared by every repository. Events,
// Tags, and Conflicts are optional: nil leaves the corresponding
// behavior (cache invalidation, tag attachment, conflict detection)
// disabled, which embedding's read-only entries map relies on.
type DbDeps struct {
	Adapter   storage.Adapter
	Events    event.Adapter
	Tags      *TagRepository
	Conflicts *ConflictRepository
}

// EntryRepository is the storage-only core shared by the three kind-
// specific repositories below; each kind just fixes its Kind.
type EntryRepository struct {
	db        storage.Adapter
	events    event.Adapter
	tags      *TagRepository
	conflicts *ConflictRepository
	kind      domain.EntryKind
}

// NewEntryRepository constructs a repository scoped to kind.
func NewEntryRepository(deps DbDeps, kind domain.EntryKind) *EntryRepository {
	return &EntryRepository{
		db:        deps.Adapter,
		events:    deps.Events,
		tags:      deps.Tags,
		conflicts: deps.Conflicts,
		kind:      kind,
	}
}

// publish notifies evtKind against entryID/scope. Best-effort: a bus
// publish failure must never roll back a write that already committed.
func (r *EntryRepository) publish(ctx context.Context, evtKind event.Kind, entryID string, scope domain.ScopeRef) {
	if r.events == nil {
		return
	}
	_ = r.events.Publish(ctx, event.Event{
		Kind:      evtKind,
		EntryID:   entryID,
		ScopeKind: string(scope.Kind),
		ScopeID:   scope.ID,
	})
}

func (r *EntryRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// Create validates scope, inserts the entry row and its version 1.
// Row-level uniqueness on (kind, scope, name) among active entries is
// enforced by the entries table's partial unique index; a violation here
// surfaces as apperror.AlreadyExists.
func (r *EntryRepository) Create(ctx context.Context, h domain.Header, payload map[string]any) (*domain.Entry, error) {
	if !h.Scope.Valid() {
		return nil, apperror.Validation("scope", "invalid scope reference")
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeWrongType, "failed to marshal payload", err)
	}

	now := time.Now().UTC()
	h.CreatedAt = now
	h.Active = true
	h.HeadVersion = 1

	err = r.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		if exists, checkErr := r.nameTaken(ctx, tx, h.Scope, h.Name); checkErr != nil {
			return checkErr
		} else if exists {
			return apperror.AlreadyExists(string(r.kind), h.Name)
		}

		_, err := tx.ExecContext(ctx, r.rewrite(`
			INSERT INTO entries (id, kind, name, category, scope_kind, scope_id, priority, active, created_at, created_by, head_version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			h.ID, r.kind, h.Name, h.Category, h.Scope.Kind, h.Scope.ID, h.Priority, h.Active, h.CreatedAt, h.CreatedBy, h.HeadVersion)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, r.rewrite(`
			INSERT INTO entry_versions (entry_id, version_number, payload, change_reason, created_by, created_at)
			VALUES (?, 1, ?, ?, ?, ?)`),
			h.ID, string(payloadJSON), "initial version", h.CreatedBy, now)
		if err != nil {
			return err
		}

		if r.tags != nil {
			for _, tagID := range h.TagIDs {
				if err := r.tags.AttachTx(ctx, tx, r.kind, h.ID, tagID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if ae := asAppError(err); ae != nil {
			return nil, ae
		}
		return nil, apperror.Wrap(apperror.CodeStorageFatal, "failed to create entry", err)
	}

	r.publish(ctx, event.KindEntryCreated, h.ID, h.Scope)
	return &domain.Entry{Header: h, Payload: payload}, nil
}

func (r *EntryRepository) nameTaken(ctx context.Context, tx storage.DBTX, scope domain.ScopeRef, name string) (bool, error) {
	var count int
	row := tx.QueryRowContext(ctx, r.rewrite(`
		SELECT COUNT(*) FROM entries WHERE kind = ? AND scope_kind = ? AND scope_id = ? AND name = ? AND active = TRUE`),
		r.kind, scope.Kind, scope.ID, name)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByID fetches the header and the head version's payload.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(`
		SELECT id, kind, name, category, scope_kind, scope_id, priority, active, created_at, created_by, head_version
		FROM entries WHERE id = ? AND kind = ?`), id, r.kind)

	h, err := scanHeader(row)
	if err != nil {
		return nil, err
	}

	payload, err := r.loadPayload(ctx, id, h.HeadVersion)
	if err != nil {
		return nil, err
	}
	return &domain.Entry{Header: h, Payload: payload}, nil
}

// GetByName fetches the entry whose name is unique within scope. If
// inherit is true and no entry is found in scope, the caller (query
// pipeline) is responsible for walking the scope chain; this method
// only ever looks at the exact scope given.
func (r *EntryRepository) GetByName(ctx context.Context, scope domain.ScopeRef, name string) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(`
		SELECT id, kind, name, category, scope_kind, scope_id, priority, active, created_at, created_by, head_version
		FROM entries WHERE kind = ? AND scope_kind = ? AND scope_id = ? AND name = ? AND active = TRUE`),
		r.kind, scope.Kind, scope.ID, name)

	h, err := scanHeader(row)
	if err != nil {
		return nil, err
	}
	payload, err := r.loadPayload(ctx, h.ID, h.HeadVersion)
	if err != nil {
		return nil, err
	}
	return &domain.Entry{Header: h, Payload: payload}, nil
}

func (r *EntryRepository) loadPayload(ctx context.Context, entryID string, versionNumber int) (map[string]any, error) {
	var raw string
	row := r.db.QueryRowContext(ctx, r.rewrite(`
		SELECT payload FROM entry_versions WHERE entry_id = ? AND version_number = ?`), entryID, versionNumber)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(string(r.kind)+"_version", entryID)
		}
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, apperror.Wrap(apperror.CodeWrongType, "corrupt stored payload", err)
	}
	return payload, nil
}

// ListFilter narrows List to active/inactive, scope, and category; the
// query pipeline applies richer filtering on top of this coarse pass.
type ListFilter struct {
	Scopes     []domain.ScopeRef
	Category   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// List returns entry headers (without payload) matching filter.
func (r *EntryRepository) List(ctx context.Context, filter ListFilter) ([]domain.Header, error) {
	query := `SELECT id, kind, name, category, scope_kind, scope_id, priority, active, created_at, created_by, head_version FROM entries WHERE kind = ?`
	args := []any{r.kind}

	if filter.ActiveOnly {
		query += ` AND active = TRUE`
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if len(filter.Scopes) > 0 {
		query += ` AND (`
		for i, s := range filter.Scopes {
			if i > 0 {
				query += ` OR `
			}
			query += `(scope_kind = ? AND scope_id = ?)`
			args = append(args, s.Kind, s.ID)
		}
		query += `)`
	}
	query += ` ORDER BY priority DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, r.rewrite(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Header
	for rows.Next() {
		h, err := scanHeaderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListWithPayload is List plus each entry's head-version payload,
// joined in one query so the query pipeline's fetch stage never pays
// an N+1 cost loading payloads for a page of results.
func (r *EntryRepository) ListWithPayload(ctx context.Context, filter ListFilter) ([]domain.Entry, error) {
	query := `
		SELECT e.id, e.kind, e.name, e.category, e.scope_kind, e.scope_id, e.priority, e.active, e.created_at, e.created_by, e.head_version, v.payload
		FROM entries e
		JOIN entry_versions v ON v.entry_id = e.id AND v.version_number = e.head_version
		WHERE e.kind = ?`
	args := []any{r.kind}

	if filter.ActiveOnly {
		query += ` AND e.active = TRUE`
	}
	if filter.Category != "" {
		query += ` AND e.category = ?`
		args = append(args, filter.Category)
	}
	if len(filter.Scopes) > 0 {
		query += ` AND (`
		for i, s := range filter.Scopes {
			if i > 0 {
				query += ` OR `
			}
			query += `(e.scope_kind = ? AND e.scope_id = ?)`
			args = append(args, s.Kind, s.ID)
		}
		query += `)`
	}
	query += ` ORDER BY e.priority DESC, e.created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, r.rewrite(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var h domain.Header
		var raw string
		err := rows.Scan(&h.ID, &h.Kind, &h.Name, &h.Category, &h.Scope.Kind, &h.Scope.ID,
			&h.Priority, &h.Active, &h.CreatedAt, &h.CreatedBy, &h.HeadVersion, &raw)
		if err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, apperror.Wrap(apperror.CodeWrongType, "corrupt stored payload", err)
		}
		out = append(out, domain.Entry{Header: h, Payload: payload})
	}
	return out, rows.Err()
}

// Update fetches the head version, appends a new version with the
// incremented number, and advances the head pointer, all in one
// transaction. Inside that same transaction it checks the 5-second
// optimistic window against the version it just appended; a writer
// racing another update within that window gets its write accepted but
// also gets a conflict record, per spec's "check optimistic window"
// step.
func (r *EntryRepository) Update(ctx context.Context, id string, payload map[string]any, reason, actor string) (*domain.Entry, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeWrongType, "failed to marshal payload", err)
	}

	var result domain.Entry
	err = r.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		row := tx.QueryRowContext(ctx, r.rewrite(`
			SELECT id, kind, name, category, scope_kind, scope_id, priority, active, created_at, created_by, head_version
			FROM entries WHERE id = ? AND kind = ?`), id, r.kind)
		h, err := scanHeader(row)
		if err != nil {
			return err
		}

		newVersion := h.HeadVersion + 1
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, r.rewrite(`
			INSERT INTO entry_versions (entry_id, version_number, payload, change_reason, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			id, newVersion, string(payloadJSON), reason, actor, now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.rewrite(`
			UPDATE entries SET head_version = ? WHERE id = ?`), newVersion, id); err != nil {
			return err
		}

		if r.conflicts != nil {
			if _, err := r.conflicts.DetectAndRecord(ctx, tx, id, newVersion, now); err != nil {
				return err
			}
		}

		h.HeadVersion = newVersion
		result = domain.Entry{Header: h, Payload: payload}
		return nil
	})
	if err != nil {
		if ae := asAppError(err); ae != nil {
			return nil, ae
		}
		return nil, apperror.Wrap(apperror.CodeStorageFatal, "failed to update entry", err)
	}
	r.publish(ctx, event.KindEntryUpdated, result.ID, result.Scope)
	return &result, nil
}

// SetActive flips the active flag (deactivate/reactivate). scope is the
// entry's own scope, which the caller already has from the GetByID it
// performed to authorize the mutation; passed through here so the
// invalidation event names the right scope without another round trip.
func (r *EntryRepository) SetActive(ctx context.Context, id string, active bool, scope domain.ScopeRef) error {
	res, err := r.db.ExecContext(ctx, r.rewrite(`UPDATE entries SET active = ? WHERE id = ? AND kind = ?`), active, id, r.kind)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to set active flag", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to read rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound(string(r.kind), id)
	}
	r.publish(ctx, event.KindEntryUpdated, id, scope)
	return nil
}

// Delete removes the entry and every row that references it across
// tables, all inside one transaction. Cascade is implemented here, not
// relied on via foreign keys, per spec's backend-independence rule.
// scope is the entry's own scope (see SetActive), passed through for the
// same reason.
func (r *EntryRepository) Delete(ctx context.Context, id string, scope domain.ScopeRef) error {
	err := r.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		statements := []string{
			`DELETE FROM embeddings WHERE entry_kind = ? AND entry_id = ?`,
			`DELETE FROM tag_attachments WHERE entry_kind = ? AND entry_id = ?`,
			`DELETE FROM relations WHERE (source_kind = ? AND source_id = ?) OR (target_kind = ? AND target_id = ?)`,
		}
		args := [][]any{
			{r.kind, id},
			{r.kind, id},
			{r.kind, id, r.kind, id},
		}
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, r.rewrite(stmt), args[i]...); err != nil {
				return err
			}
		}

		// Graph nodes/edges mirror entries 1:1; drop edges touching this
		// node before the node itself.
		if _, err := tx.ExecContext(ctx, r.rewrite(
			`DELETE FROM graph_edges WHERE source_node = ? OR target_node = ?`), id, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.rewrite(`DELETE FROM graph_nodes WHERE id = ?`), id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.rewrite(`DELETE FROM entry_versions WHERE entry_id = ?`), id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, r.rewrite(`DELETE FROM entries WHERE id = ? AND kind = ?`), id, r.kind)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound(string(r.kind), id)
		}
		return nil
	})
	if err != nil {
		if ae := asAppError(err); ae != nil {
			return ae
		}
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to delete entry", err)
	}
	r.publish(ctx, event.KindEntryDeleted, id, scope)
	return nil
}

// History returns every version of id, oldest first.
func (r *EntryRepository) History(ctx context.Context, id string) ([]domain.Version, error) {
	rows, err := r.db.QueryContext(ctx, r.rewrite(`
		SELECT entry_id, version_number, payload, change_reason, created_by, created_at
		FROM entry_versions WHERE entry_id = ? ORDER BY version_number ASC`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Version
	for rows.Next() {
		var v domain.Version
		var raw string
		if err := rows.Scan(&v.EntryID, &v.VersionNumber, &raw, &v.ChangeReason, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &v.Payload); err != nil {
			return nil, apperror.Wrap(apperror.CodeWrongType, "corrupt stored version payload", err)
		}
		v.Kind = r.kind
		out = append(out, v)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanHeader(row *sql.Row) (domain.Header, error) {
	return scanHeaderInto(row)
}

func scanHeaderRow(row *sql.Rows) (domain.Header, error) {
	return scanHeaderInto(row)
}

func scanHeaderInto(row scannable) (domain.Header, error) {
	var h domain.Header
	err := row.Scan(&h.ID, &h.Kind, &h.Name, &h.Category, &h.Scope.Kind, &h.Scope.ID, &h.Priority, &h.Active, &h.CreatedAt, &h.CreatedBy, &h.HeadVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return h, apperror.NotFound("entry", "")
		}
		return h, err
	}
	return h, nil
}

func asAppError(err error) *apperror.Error {
	var ae *apperror.Error
	if apperror.As(err, &ae) {
		return ae
	}
	return nil
}

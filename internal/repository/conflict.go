package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// ConflictWindow is the server-clock window within which two writers
// updating the same entry both succeed but produce a conflict record,
// per spec §4.4.
const ConflictWindow = 5 * time.Second

// ConflictRepository records and resolves optimistic-concurrency
// conflicts. It never blocks a write; detection only appends a record.
type ConflictRepository struct {
	db storage.Adapter
}

// NewConflictRepository constructs a ConflictRepository.
func NewConflictRepository(deps DbDeps) *ConflictRepository {
	return &ConflictRepository{db: deps.Adapter}
}

func (r *ConflictRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// DetectAndRecord checks whether entryID's previous update (its highest
// version below newVersion) was created within ConflictWindow of now;
// if so it appends a conflict record pairing that version with
// newVersion and returns it. newVersion may already be stored or still
// about to be written. The initial version 1 written by Create is not an
// update and never counts. Returns nil, nil when no conflict is detected.
func (r *ConflictRepository) DetectAndRecord(ctx context.Context, tx storage.DBTX, entryID string, newVersion int, now time.Time) (*domain.Conflict, error) {
	var lastVersion int
	var lastCreatedAt time.Time
	row := tx.QueryRowContext(ctx, r.rewrite(`
		SELECT version_number, created_at FROM entry_versions
		WHERE entry_id = ? AND version_number > 1 AND version_number < ?
		ORDER BY version_number DESC LIMIT 1`), entryID, newVersion)
	if err := row.Scan(&lastVersion, &lastCreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if now.Sub(lastCreatedAt) > ConflictWindow {
		return nil, nil
	}

	conflict := domain.Conflict{
		ID:         entryID + ":" + strconv.Itoa(lastVersion) + ":" + strconv.Itoa(newVersion),
		EntryID:    entryID,
		VersionA:   lastVersion,
		VersionB:   newVersion,
		DetectedAt: now,
		Resolved:   false,
	}
	_, err := tx.ExecContext(ctx, r.rewrite(`
		INSERT INTO conflicts (id, entry_id, version_a, version_b, detected_at, resolved, resolved_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		conflict.ID, conflict.EntryID, conflict.VersionA, conflict.VersionB, conflict.DetectedAt, conflict.Resolved, "")
	if err != nil {
		return nil, err
	}
	return &conflict, nil
}

// ForEntry returns unresolved conflicts for entryID.
func (r *ConflictRepository) ForEntry(ctx context.Context, entryID string) ([]domain.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, r.rewrite(`
		SELECT id, entry_id, version_a, version_b, detected_at, resolved, resolved_by
		FROM conflicts WHERE entry_id = ? AND resolved = FALSE ORDER BY detected_at DESC`), entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conflict
	for rows.Next() {
		var c domain.Conflict
		if err := rows.Scan(&c.ID, &c.EntryID, &c.VersionA, &c.VersionB, &c.DetectedAt, &c.Resolved, &c.ResolvedBy); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Resolve marks a conflict resolved by resolvedBy.
func (r *ConflictRepository) Resolve(ctx context.Context, id, resolvedBy string) error {
	res, err := r.db.ExecContext(ctx, r.rewrite(
		`UPDATE conflicts SET resolved = TRUE, resolved_by = ? WHERE id = ?`), resolvedBy, id)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to resolve conflict", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("conflict", id)
	}
	return nil
}

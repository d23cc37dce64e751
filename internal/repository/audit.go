package repository

import (
	"context"
	"encoding/json"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// MaxAuditSnapshotBytes bounds a single audit record's serialized
// snapshot; content beyond this is dropped and Truncated is set, never
// silently lost without a record of the fact.
const MaxAuditSnapshotBytes = 16 * 1024

// AuditRepository writes append-only mutation records. When Write is
// given the primary mutation's transaction, a rollback of one rolls back
// the other; with a nil tx the record is written on its own.
type AuditRepository struct {
	db storage.Adapter
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(deps DbDeps) *AuditRepository {
	return &AuditRepository{db: deps.Adapter}
}

func (r *AuditRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// Write inserts rec using tx if non-nil (same-transaction write per
// spec §4.10), or the adapter directly otherwise.
func (r *AuditRepository) Write(ctx context.Context, tx storage.DBTX, rec domain.AuditRecord) error {
	if tx == nil {
		tx = r.db
	}

	snapshot, truncated, err := truncateSnapshot(rec.Snapshot)
	if err != nil {
		return apperror.Wrap(apperror.CodeWrongType, "failed to marshal audit snapshot", err)
	}
	rec.Truncated = rec.Truncated || truncated

	_, err = tx.ExecContext(ctx, r.rewrite(`
		INSERT INTO audit_log (id, action, entry_kind, entry_id, actor, scope_kind, scope_id, correlation_id, snapshot, truncated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Action, rec.EntryKind, rec.EntryID, rec.Actor, rec.Scope.Kind, rec.Scope.ID,
		rec.CorrelationID, snapshot, rec.Truncated, rec.CreatedAt)
	return err
}

func truncateSnapshot(snapshot map[string]any) (string, bool, error) {
	if snapshot == nil {
		return "", false, nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", false, err
	}
	if len(raw) <= MaxAuditSnapshotBytes {
		return string(raw), false, nil
	}
	return string(raw[:MaxAuditSnapshotBytes]), true, nil
}

// ForEntry returns every audit record for (kind, id), newest first.
func (r *AuditRepository) ForEntry(ctx context.Context, kind domain.EntryKind, id string, limit int) ([]domain.AuditRecord, error) {
	query := `SELECT id, action, entry_kind, entry_id, actor, scope_kind, scope_id, correlation_id, snapshot, truncated, created_at
		FROM audit_log WHERE entry_kind = ? AND entry_id = ? ORDER BY created_at DESC`
	args := []any{kind, id}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rewrite(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var snapshot *string
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.EntryKind, &rec.EntryID, &rec.Actor,
			&rec.Scope.Kind, &rec.Scope.ID, &rec.CorrelationID, &snapshot, &rec.Truncated, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if snapshot != nil && *snapshot != "" {
			_ = json.Unmarshal([]byte(*snapshot), &rec.Snapshot)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"database/sql"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// EmbeddingRepository tracks which entry versions have a stored vector,
// without holding the vector bytes themselves (those live in
// internal/adapter/vector). Separating tracking from storage lets the
// embedding service ask "is this version's vector current" with one
// cheap row read.
type EmbeddingRepository struct {
	db storage.Adapter
}

// NewEmbeddingRepository constructs an EmbeddingRepository.
func NewEmbeddingRepository(deps DbDeps) *EmbeddingRepository {
	return &EmbeddingRepository{db: deps.Adapter}
}

func (r *EmbeddingRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// Record upserts a tracking row for rec.
func (r *EmbeddingRepository) Record(ctx context.Context, rec domain.EmbeddingRecord) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		if _, err := tx.ExecContext(ctx, r.rewrite(
			`DELETE FROM embeddings WHERE entry_kind = ? AND entry_id = ? AND version_id = ?`),
			rec.EntryKind, rec.EntryID, rec.VersionID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.rewrite(`
			INSERT INTO embeddings (entry_kind, entry_id, version_id, provider, model, dimension, stored_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			rec.EntryKind, rec.EntryID, rec.VersionID, rec.Provider, rec.Model, rec.Dimension, rec.StoredAt)
		return err
	})
}

// Get returns the tracking row for (kind, id, version), if any.
func (r *EmbeddingRepository) Get(ctx context.Context, kind domain.EntryKind, entryID string, versionID int) (*domain.EmbeddingRecord, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(`
		SELECT entry_kind, entry_id, version_id, provider, model, dimension, stored_at
		FROM embeddings WHERE entry_kind = ? AND entry_id = ? AND version_id = ?`), kind, entryID, versionID)

	var rec domain.EmbeddingRecord
	if err := row.Scan(&rec.EntryKind, &rec.EntryID, &rec.VersionID, &rec.Provider, &rec.Model, &rec.Dimension, &rec.StoredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("embedding", entryID)
		}
		return nil, err
	}
	return &rec, nil
}

// Delete removes every tracking row for an entry.
func (r *EmbeddingRepository) Delete(ctx context.Context, kind domain.EntryKind, entryID string) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`DELETE FROM embeddings WHERE entry_kind = ? AND entry_id = ?`), kind, entryID)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// Direction controls which end of a relation the traversal follows.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionBoth     Direction = "both"
)

// RelationRepository stores directed, typed edges between entries.
type RelationRepository struct {
	db storage.Adapter
}

// NewRelationRepository constructs a RelationRepository.
func NewRelationRepository(deps DbDeps) *RelationRepository {
	return &RelationRepository{db: deps.Adapter}
}

func (r *RelationRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// Create inserts rel, validating its type against the closed enum.
func (r *RelationRepository) Create(ctx context.Context, rel domain.Relation) error {
	if !rel.Type.Valid() {
		return apperror.Validation("type", "unknown relation type")
	}
	props, err := json.Marshal(rel.Properties)
	if err != nil {
		return apperror.Wrap(apperror.CodeWrongType, "failed to marshal relation properties", err)
	}
	_, err = r.db.ExecContext(ctx, r.rewrite(`
		INSERT INTO relations (id, source_kind, source_id, target_kind, target_id, relation_type, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rel.ID, rel.SourceKind, rel.SourceID, rel.TargetKind, rel.TargetID, rel.Type, string(props), rel.CreatedAt)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to create relation", err)
	}
	return nil
}

// Delete removes a single relation by id.
func (r *RelationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rewrite(`DELETE FROM relations WHERE id = ?`), id)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to delete relation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("relation", id)
	}
	return nil
}

// ForEntry returns every relation touching (kind, id) in dir.
func (r *RelationRepository) ForEntry(ctx context.Context, kind domain.EntryKind, id string, dir Direction) ([]domain.Relation, error) {
	var query string
	var args []any
	switch dir {
	case DirectionForward:
		query = `SELECT id, source_kind, source_id, target_kind, target_id, relation_type, properties, created_at FROM relations WHERE source_kind = ? AND source_id = ?`
		args = []any{kind, id}
	case DirectionBackward:
		query = `SELECT id, source_kind, source_id, target_kind, target_id, relation_type, properties, created_at FROM relations WHERE target_kind = ? AND target_id = ?`
		args = []any{kind, id}
	default:
		query = `SELECT id, source_kind, source_id, target_kind, target_id, relation_type, properties, created_at FROM relations WHERE (source_kind = ? AND source_id = ?) OR (target_kind = ? AND target_id = ?)`
		args = []any{kind, id, kind, id}
	}

	rows, err := r.db.QueryContext(ctx, r.rewrite(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Relation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

type relScanner interface {
	Scan(dest ...any) error
}

func scanRelation(row relScanner) (domain.Relation, error) {
	var rel domain.Relation
	var props string
	err := row.Scan(&rel.ID, &rel.SourceKind, &rel.SourceID, &rel.TargetKind, &rel.TargetID, &rel.Type, &props, &rel.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return rel, apperror.NotFound("relation", "")
		}
		return rel, err
	}
	if props != "" {
		if err := json.Unmarshal([]byte(props), &rel.Properties); err != nil {
			return rel, apperror.Wrap(apperror.CodeWrongType, "corrupt relation properties", err)
		}
	}
	return rel, nil
}

package repository

import (
	"context"
	"database/sql"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// TagRepository stores globally unique tags and their many-to-many
// attachment to entries.
type TagRepository struct {
	db storage.Adapter
}

// NewTagRepository constructs a TagRepository.
func NewTagRepository(deps DbDeps) *TagRepository {
	return &TagRepository{db: deps.Adapter}
}

func (r *TagRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// Create inserts a new tag.
func (r *TagRepository) Create(ctx context.Context, t domain.Tag) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`INSERT INTO tags (id, name, color, description) VALUES (?, ?, ?, ?)`),
		t.ID, t.Name, t.Color, t.Description)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to create tag", err)
	}
	return nil
}

// GetByName looks up a tag by its unique name.
func (r *TagRepository) GetByName(ctx context.Context, name string) (*domain.Tag, error) {
	row := r.db.QueryRowContext(ctx, r.rewrite(
		`SELECT id, name, color, description FROM tags WHERE name = ?`), name)
	var t domain.Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Color, &t.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("tag", name)
		}
		return nil, err
	}
	return &t, nil
}

// List returns every tag.
func (r *TagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color, description FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a tag and every attachment referencing it (the
// tag_attachments FK is ON DELETE CASCADE, but this keeps delete
// backend-independent like every other repository).
func (r *TagRepository) Delete(ctx context.Context, id string) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		if _, err := tx.ExecContext(ctx, r.rewrite(`DELETE FROM tag_attachments WHERE tag_id = ?`), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.rewrite(`DELETE FROM tags WHERE id = ?`), id)
		return err
	})
}

// Attach links tagID to an entry.
func (r *TagRepository) Attach(ctx context.Context, kind domain.EntryKind, entryID, tagID string) error {
	return r.AttachTx(ctx, r.db, kind, entryID, tagID)
}

// AttachTx is Attach against an explicit tx, so a caller already inside
// a transaction (EntryRepository.Create attaching tags supplied at
// creation) can include the attachment without nesting transactions.
func (r *TagRepository) AttachTx(ctx context.Context, tx storage.DBTX, kind domain.EntryKind, entryID, tagID string) error {
	_, err := tx.ExecContext(ctx, r.rewrite(
		`INSERT INTO tag_attachments (entry_kind, entry_id, tag_id) VALUES (?, ?, ?)`),
		kind, entryID, tagID)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to attach tag", err)
	}
	return nil
}

// Detach removes a single attachment.
func (r *TagRepository) Detach(ctx context.Context, kind domain.EntryKind, entryID, tagID string) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`DELETE FROM tag_attachments WHERE entry_kind = ? AND entry_id = ? AND tag_id = ?`),
		kind, entryID, tagID)
	return err
}

// ForEntries batch-loads tags for every id in entryIDs, at most one
// query, to satisfy the query pipeline's never-N+1 requirement.
func (r *TagRepository) ForEntries(ctx context.Context, kind domain.EntryKind, entryIDs []string) (map[string][]domain.Tag, error) {
	out := make(map[string][]domain.Tag, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT ta.entry_id, t.id, t.name, t.color, t.description
		FROM tag_attachments ta
		JOIN tags t ON t.id = ta.tag_id
		WHERE ta.entry_kind = ? AND ta.entry_id IN (` + placeholders(len(entryIDs)) + `)`
	args := make([]any, 0, len(entryIDs)+1)
	args = append(args, kind)
	for _, id := range entryIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, r.rewrite(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entryID string
		var t domain.Tag
		if err := rows.Scan(&entryID, &t.ID, &t.Name, &t.Color, &t.Description); err != nil {
			return nil, err
		}
		out[entryID] = append(out[entryID], t)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ", ?"
	}
	return s
}

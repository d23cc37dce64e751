package repository

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/sqlutil"
)

// GraphRepository stores the node/edge mirror used by graph-shaped
// traversal tools, kept in sync with entries/relations by the service
// layer rather than database triggers, to stay backend-independent.
type GraphRepository struct {
	db storage.Adapter
}

// NewGraphRepository constructs a GraphRepository.
func NewGraphRepository(deps DbDeps) *GraphRepository {
	return &GraphRepository{db: deps.Adapter}
}

func (r *GraphRepository) rewrite(q string) string { return sqlutil.Rewrite(r.db, q) }

// UpsertNode inserts or refreshes the node mirroring an entry.
func (r *GraphRepository) UpsertNode(ctx context.Context, n domain.GraphNode) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		if _, err := tx.ExecContext(ctx, r.rewrite(`DELETE FROM graph_nodes WHERE id = ?`), n.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.rewrite(
			`INSERT INTO graph_nodes (id, kind, scope_kind, scope_id) VALUES (?, ?, ?, ?)`),
			n.ID, n.Kind, n.Scope.Kind, n.Scope.ID)
		return err
	})
}

// DeleteNode removes a node and every edge touching it.
func (r *GraphRepository) DeleteNode(ctx context.Context, id string) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		if _, err := tx.ExecContext(ctx, r.rewrite(
			`DELETE FROM graph_edges WHERE source_node = ? OR target_node = ?`), id, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.rewrite(`DELETE FROM graph_nodes WHERE id = ?`), id)
		return err
	})
}

// UpsertEdge mirrors a Relation's direction and type.
func (r *GraphRepository) UpsertEdge(ctx context.Context, e domain.GraphEdge) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(
		`INSERT INTO graph_edges (id, source_node, target_node, relation_type) VALUES (?, ?, ?, ?)`),
		e.ID, e.SourceNode, e.TargetNode, e.Type)
	if err != nil {
		return apperror.Wrap(apperror.CodeStorageFatal, "failed to create graph edge", err)
	}
	return nil
}

// DeleteEdge removes a single edge.
func (r *GraphRepository) DeleteEdge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.rewrite(`DELETE FROM graph_edges WHERE id = ?`), id)
	return err
}

// Kinds batch-resolves the entry kind mirrored by each node id, for
// callers (the relations pipeline stage) that only learn ids while
// traversing edges and need to bucket them back by kind.
func (r *GraphRepository) Kinds(ctx context.Context, ids []string) (map[string]domain.EntryKind, error) {
	out := make(map[string]domain.EntryKind, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := "?"
	for i := 1; i < len(ids); i++ {
		placeholders += ", ?"
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, r.rewrite(
		`SELECT id, kind FROM graph_nodes WHERE id IN (`+placeholders+`)`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var kind domain.EntryKind
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, err
		}
		out[id] = kind
	}
	return out, rows.Err()
}

// Neighbors returns the edges touching nodeID, capped at limit (0 means
// unbounded), used by the relations pipeline stage's bounded traversal.
func (r *GraphRepository) Neighbors(ctx context.Context, nodeID string, limit int) ([]domain.GraphEdge, error) {
	query := `SELECT id, source_node, target_node, relation_type FROM graph_edges WHERE source_node = ? OR target_node = ?`
	args := []any{nodeID, nodeID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rewrite(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GraphEdge
	for rows.Next() {
		var e domain.GraphEdge
		if err := rows.Scan(&e.ID, &e.SourceNode, &e.TargetNode, &e.Type); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Package audit wraps internal/repository.AuditRepository with the one
// rule spec §4.10 adds on top of "write an append-only record": a
// failed audit write must never fail the mutation it describes. The
// repository already writes inside the caller's transaction when one is
// given; this package is only for the case a caller wants the write
// attempted best-effort, surfacing failures as a metric and a log line
// instead of a returned error.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/google/uuid"
)

// Recorder writes audit records without letting a storage failure
// propagate to the caller's own mutation result.
type Recorder struct {
	repo    *repository.AuditRepository
	logger  *slog.Logger
	metrics *metrics.Registry
}

// New constructs a Recorder.
func New(repo *repository.AuditRepository, logger *slog.Logger, m *metrics.Registry) *Recorder {
	return &Recorder{repo: repo, logger: logger, metrics: m}
}

// Entry describes one mutation to record. ID and CreatedAt are filled
// in by Record/RecordTx, not the caller.
type Entry struct {
	Action        string
	EntryKind     domain.EntryKind
	EntryID       string
	Actor         string
	Scope         domain.ScopeRef
	CorrelationID string
	Snapshot      map[string]any
}

// RecordTx writes e inside tx, so a rollback of the caller's mutation
// rolls the audit record back with it. Used by repository-layer callers
// that already hold an open transaction for the primary write.
func (r *Recorder) RecordTx(ctx context.Context, tx storage.DBTX, e Entry) error {
	rec := r.toRecord(e)
	if err := r.repo.Write(ctx, tx, rec); err != nil {
		r.reportFailure(e, err)
		return err
	}
	return nil
}

// Record writes e standalone, outside any caller transaction, and never
// returns an error: a write failure here is logged and counted, but the
// operation it describes has already committed and must not be undone
// over an audit-trail gap.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	rec := r.toRecord(e)
	if err := r.repo.Write(ctx, nil, rec); err != nil {
		r.reportFailure(e, err)
	}
}

func (r *Recorder) toRecord(e Entry) domain.AuditRecord {
	return domain.AuditRecord{
		ID:            uuid.NewString(),
		Action:        e.Action,
		EntryKind:     e.EntryKind,
		EntryID:       e.EntryID,
		Actor:         e.Actor,
		Scope:         e.Scope,
		CorrelationID: e.CorrelationID,
		Snapshot:      e.Snapshot,
		CreatedAt:     time.Now().UTC(),
	}
}

func (r *Recorder) reportFailure(e Entry, err error) {
	if r.metrics != nil {
		r.metrics.AuditWriteFailures.Inc()
	}
	if r.logger != nil {
		r.logger.Error("audit write failed", "action", e.Action, "entry_kind", e.EntryKind, "entry_id", e.EntryID, "error", err)
	}
}

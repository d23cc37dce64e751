// Package embedding runs the optional semantic path: on every
// successful create/update the repository layer's caller enqueues a
// job, a bounded worker pool calls the configured provider, and
// successes land in the vector store with a tracking row. Strictly
// optional — nothing else in the service depends on it being enabled.
// Grounded on the teacher's internal/core/processing/async_processor.go
// worker-pool-over-a-channel shape, generalized from alert processing
// to embedding jobs.
package embedding

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/vector"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/retry"
)

// Job is one unit of embedding work, matching spec's
// (entry_kind, entry_id, version_id, text_fingerprint) tuple.
type Job struct {
	EntryKind       domain.EntryKind
	EntryID         string
	VersionID       int
	TextFingerprint string
}

// Config bounds the queue and worker pool and names the provider.
type Config struct {
	Enabled    bool
	Provider   string
	Model      string
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
	Workers    int
	QueueDepth int
}

// Service owns the bounded job queue and worker pool.
type Service struct {
	cfg      Config
	provider Provider
	vectors  vector.Store
	records  *repository.EmbeddingRepository
	entries  map[domain.EntryKind]*repository.EntryRepository
	logger   *slog.Logger
	metrics  *metrics.Registry

	queue chan Job
	wg    sync.WaitGroup
	stop  chan struct{}

	retryMu sync.Mutex
	retries map[jobKey]*domain.RetryJob
}

type jobKey struct {
	kind domain.EntryKind
	id   string
}

// Deps bundles Service's dependencies.
type Deps struct {
	Config   Config
	Provider Provider
	Vectors  vector.Store
	Records  *repository.EmbeddingRepository
	Entries  map[domain.EntryKind]*repository.EntryRepository
	Logger   *slog.Logger
	Metrics  *metrics.Registry
}

// New constructs a Service. Call Start to spin up workers.
func New(d Deps) *Service {
	return &Service{
		cfg:      d.Config,
		provider: d.Provider,
		vectors:  d.Vectors,
		records:  d.Records,
		entries:  d.Entries,
		logger:   d.Logger,
		metrics:  d.Metrics,
		queue:    make(chan Job, maxQueueDepth(d.Config.QueueDepth)),
		stop:     make(chan struct{}),
		retries:  make(map[jobKey]*domain.RetryJob),
	}
}

func maxQueueDepth(configured int) int {
	if configured <= 0 {
		return 256
	}
	return configured
}

// Start launches the configured number of worker goroutines. No-op if
// embedding is disabled.
func (s *Service) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// Enqueue submits a job. Returns false if the queue is full or
// embedding is disabled; the caller's mutation still succeeds either
// way since embedding is best-effort.
func (s *Service) Enqueue(job Job) bool {
	if !s.cfg.Enabled {
		return false
	}
	select {
	case s.queue <- job:
		if s.metrics != nil {
			s.metrics.EmbeddingQueueDepth.Set(float64(len(s.queue)))
		}
		return true
	default:
		if s.metrics != nil {
			s.metrics.EmbeddingFailures.WithLabelValues("queue_full").Inc()
		}
		if s.logger != nil {
			s.logger.Warn("embedding queue full, dropping job", "entry_kind", job.EntryKind, "entry_id", job.EntryID)
		}
		return false
	}
}

// FailedJobs returns a snapshot of every job that exhausted its retry
// budget, for the `reindex --retry-failed`/`--stats` CLI subcommand.
func (s *Service) FailedJobs() []domain.RetryJob {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	out := make([]domain.RetryJob, 0, len(s.retries))
	for _, rj := range s.retries {
		if rj.Failed {
			out = append(out, *rj)
		}
	}
	return out
}

// ClearFailed drops a job from the failed-retry ledger so a fresh
// Enqueue for the same entry starts a new retry budget instead of
// being treated as already exhausted.
func (s *Service) ClearFailed(kind domain.EntryKind, entryID string) {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	delete(s.retries, jobKey{kind, entryID})
}

// EmbedQuery satisfies internal/query.Embedder, letting the score stage
// embed a search string directly without going through the job queue —
// a query needs its vector synchronously, not as a best-effort
// background job. ok is false whenever embedding is disabled or the
// provider call fails, in which case the pipeline falls back to its
// lexical-only scoring path.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, bool, error) {
	if !s.cfg.Enabled {
		return nil, false, nil
	}
	vec, err := s.callProvider(ctx, text)
	if err != nil {
		return nil, false, nil
	}
	return vec, true, nil
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.queue:
			s.process(ctx, job)
		}
	}
}

// process handles one job: skip if stale, call the provider under a
// timeout, write the vector on success, classify and possibly
// reschedule on failure.
func (s *Service) process(ctx context.Context, job Job) {
	if s.isStale(ctx, job) {
		return
	}

	start := time.Now()
	vec, err := s.callProvider(ctx, job.TextFingerprint)
	if s.metrics != nil {
		s.metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.handleFailure(ctx, job, err)
		return
	}

	key := vector.Key{EntryKind: string(job.EntryKind), EntryID: job.EntryID, VersionID: job.VersionID}
	if err := s.vectors.Put(ctx, key, vec); err != nil {
		s.handleFailure(ctx, job, err)
		return
	}
	_ = s.records.Record(ctx, domain.EmbeddingRecord{
		EntryKind: job.EntryKind,
		EntryID:   job.EntryID,
		VersionID: job.VersionID,
		Provider:  s.cfg.Provider,
		Model:     s.cfg.Model,
		Dimension: len(vec),
		StoredAt:  time.Now().UTC(),
	})

	s.retryMu.Lock()
	delete(s.retries, jobKey{job.EntryKind, job.EntryID})
	s.retryMu.Unlock()
}

// callProvider wraps the provider call in a timeout derived from
// Config.Timeout. context.WithTimeout's deferred cancel is this
// service's equivalent of a finally block that always clears the
// timer, whether the call succeeds, fails, or the deadline expires.
func (s *Service) callProvider(ctx context.Context, text string) ([]float32, error) {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.provider.Embed(callCtx, text)
}

// isStale reports whether job's version is no longer the entry's head
// version, in which case embedding it would be wasted work superseded
// by a newer version's own job.
func (s *Service) isStale(ctx context.Context, job Job) bool {
	repo, ok := s.entries[job.EntryKind]
	if !ok {
		return true
	}
	current, err := repo.GetByID(ctx, job.EntryID)
	if err != nil {
		return true
	}
	return current.HeadVersion != job.VersionID
}

func (s *Service) handleFailure(ctx context.Context, job Job, err error) {
	retryable, delay := classify(err)
	reason := "terminal"
	if retryable {
		reason = "retryable"
	}
	if s.metrics != nil {
		s.metrics.EmbeddingFailures.WithLabelValues(reason).Inc()
	}
	if s.logger != nil {
		s.logger.Warn("embedding job failed", "entry_kind", job.EntryKind, "entry_id", job.EntryID, "retryable", retryable, "error", err)
	}
	if !retryable {
		return
	}
	s.scheduleRetry(job, delay, err)
}

func classify(err error) (retryable bool, retryAfter time.Duration) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable, pe.RetryAfter
	}
	return true, 0 // an unclassified error (e.g. vector store write failure) is treated as transient
}

// scheduleRetry records the attempt and, if under the configured
// maximum, re-enqueues the job after a backoff delay computed by
// internal/retry, honoring a provider-supplied delay when present.
func (s *Service) scheduleRetry(job Job, honoredDelay time.Duration, cause error) {
	key := jobKey{job.EntryKind, job.EntryID}

	s.retryMu.Lock()
	rj, ok := s.retries[key]
	if !ok {
		rj = &domain.RetryJob{EntryKind: job.EntryKind, EntryID: job.EntryID}
		s.retries[key] = rj
	}
	rj.Attempt++
	rj.LastError = cause.Error()
	attempt := rj.Attempt
	s.retryMu.Unlock()

	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if attempt > maxRetries {
		if s.logger != nil {
			s.logger.Error("embedding job exhausted retries", "entry_kind", job.EntryKind, "entry_id", job.EntryID, "attempts", attempt)
		}
		s.retryMu.Lock()
		rj.Failed = true
		s.retryMu.Unlock()
		return
	}

	delay := backoffFor(attempt, honoredDelay)
	s.retryMu.Lock()
	rj.NextAttemptAt = time.Now().Add(delay)
	s.retryMu.Unlock()

	time.AfterFunc(delay, func() {
		s.Enqueue(job)
	})
}

// backoffFor computes the nth exponential backoff interval via
// internal/retry, honoring a provider-supplied delay on the first
// retry, capped at one minute.
func backoffFor(attempt int, honoredDelay time.Duration) time.Duration {
	if attempt == 1 && honoredDelay > 0 {
		return honoredDelay
	}
	if d := retry.ExponentialDelay(time.Second, attempt); d < time.Minute {
		return d
	}
	return time.Minute
}

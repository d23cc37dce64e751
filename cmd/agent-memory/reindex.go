package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/runtime"
	"github.com/agent-memory/agent-memory/internal/service/embedding"
)

// reindexCommand walks every entry (optionally one kind) and submits a
// fresh embedding job for any head version without a stored vector,
// batching the submissions with an inter-batch delay so the provider
// isn't hit with a thundering herd on a large store.
func (cli *CLI) reindexCommand() *cobra.Command {
	var entryType string
	var batchSize int
	var delay time.Duration
	var force bool
	var retryFailed bool
	var statsOnly bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Backfill or refresh embeddings for stored entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var kindFilter domain.EntryKind
			if entryType != "" {
				kindFilter = domain.EntryKind(entryType)
				if !kindFilter.Valid() {
					return usageError(fmt.Errorf("unknown --type %q", entryType))
				}
			}

			cfg, err := config.LoadConfig(cli.configPath)
			if err != nil {
				return usageError(fmt.Errorf("load config: %w", err))
			}
			if !cfg.Embedding.Enabled {
				return usageError(fmt.Errorf("embedding is disabled in config, nothing to reindex"))
			}

			ctx := context.Background()
			rt, err := runtime.Global().Bootstrap(ctx, cfg)
			if err != nil {
				return failureError(fmt.Errorf("bootstrap runtime: %w", err))
			}
			defer func() { _ = rt.Shutdown(ctx) }()

			ac, err := runtime.NewAppContext(ctx, rt)
			if err != nil {
				return failureError(fmt.Errorf("build app context: %w", err))
			}

			if statsOnly {
				return printReindexStats(ac, rt.Embedding, kindFilter)
			}

			if retryFailed {
				return retryFailedJobs(ctx, ac, rt.Embedding)
			}

			return reindexEntries(ctx, ac, rt.Embedding, kindFilter, batchSize, delay, force)
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "restrict to one entry kind (guideline, knowledge, tool)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "number of entries to submit per batch")
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "pause between batches")
	cmd.Flags().BoolVar(&force, "force", false, "re-embed even entries that already have a current vector")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "re-enqueue only jobs that exhausted their retry budget")
	cmd.Flags().BoolVar(&statsOnly, "stats", false, "report coverage without submitting any jobs")

	return cmd
}

func kindsToWalk(filter domain.EntryKind) []domain.EntryKind {
	if filter != "" {
		return []domain.EntryKind{filter}
	}
	return []domain.EntryKind{domain.KindGuideline, domain.KindKnowledge, domain.KindTool}
}

func reindexEntries(ctx context.Context, ac *runtime.AppContext, svc *embedding.Service, filter domain.EntryKind, batchSize int, delay time.Duration, force bool) error {
	if batchSize <= 0 {
		batchSize = 50
	}

	submitted := 0
	for _, kind := range kindsToWalk(filter) {
		repo, ok := ac.Entries[kind]
		if !ok {
			continue
		}
		headers, err := repo.List(ctx, repository.ListFilter{})
		if err != nil {
			return failureError(fmt.Errorf("list %s entries: %w", kind, err))
		}

		for _, h := range headers {
			if !force {
				if rec, err := ac.Embeddings.Get(ctx, kind, h.ID, h.HeadVersion); err == nil && rec != nil {
					continue
				}
			}
			entry, err := repo.GetByID(ctx, h.ID)
			if err != nil {
				continue
			}
			svc.Enqueue(embedding.Job{
				EntryKind:       entry.Kind,
				EntryID:         entry.ID,
				VersionID:       entry.HeadVersion,
				TextFingerprint: entry.TextFingerprint(),
			})
			submitted++

			if submitted%batchSize == 0 {
				time.Sleep(delay)
			}
		}
	}

	fmt.Printf("submitted %d embedding job(s)\n", submitted)
	return nil
}

func retryFailedJobs(ctx context.Context, ac *runtime.AppContext, svc *embedding.Service) error {
	failed := svc.FailedJobs()
	submitted := 0
	for _, rj := range failed {
		svc.ClearFailed(rj.EntryKind, rj.EntryID)
		repo, ok := ac.Entries[rj.EntryKind]
		if !ok {
			continue
		}
		entry, err := repo.GetByID(ctx, rj.EntryID)
		if err != nil {
			continue
		}
		if svc.Enqueue(embedding.Job{
			EntryKind:       entry.Kind,
			EntryID:         entry.ID,
			VersionID:       entry.HeadVersion,
			TextFingerprint: entry.TextFingerprint(),
		}) {
			submitted++
		}
	}
	fmt.Printf("re-enqueued %d of %d failed job(s)\n", submitted, len(failed))
	return nil
}

func printReindexStats(ac *runtime.AppContext, svc *embedding.Service, filter domain.EntryKind) error {
	ctx := context.Background()
	for _, kind := range kindsToWalk(filter) {
		repo, ok := ac.Entries[kind]
		if !ok {
			continue
		}
		headers, err := repo.List(ctx, repository.ListFilter{})
		if err != nil {
			return failureError(fmt.Errorf("list %s entries: %w", kind, err))
		}
		embedded := 0
		for _, h := range headers {
			if rec, err := ac.Embeddings.Get(ctx, kind, h.ID, h.HeadVersion); err == nil && rec != nil {
				embedded++
			}
		}
		fmt.Printf("%-12s %d/%d embedded\n", kind, embedded, len(headers))
	}
	fmt.Printf("%d failed job(s) awaiting --retry-failed\n", len(svc.FailedJobs()))
	return nil
}

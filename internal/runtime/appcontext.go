package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/cursor"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/query"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/service/audit"
	"github.com/agent-memory/agent-memory/internal/service/permission"
	"github.com/agent-memory/agent-memory/internal/service/security"
	"github.com/agent-memory/agent-memory/internal/service/verification"
)

// AppContext is the per-transport dependency container assembled over
// a Runtime: repositories, services, the query pipeline, and a logger,
// all built by the one NewAppContext function so the jsonrpc and REST
// backends never diverge in how a repository or service gets
// constructed. Holding a Runtime reference, not a copy, keeps every
// AppContext sharing the same rate limiter, embedding pool, and query
// cache.
type AppContext struct {
	Runtime *Runtime
	Logger  *slog.Logger

	Scopes      *repository.ScopeRepository
	Guidelines  *repository.GuidelineRepository
	Knowledge   *repository.KnowledgeRepository
	Tools       *repository.ToolRepository
	Entries     map[domain.EntryKind]*repository.EntryRepository
	Tags        *repository.TagRepository
	Relations   *repository.RelationRepository
	Graph       *repository.GraphRepository
	Conflicts   *repository.ConflictRepository
	Locks       *repository.LockRepository
	AuditLog    *repository.AuditRepository
	Grants      *repository.GrantRepository
	Embeddings  *repository.EmbeddingRepository

	Permission   *permission.Service
	Verification *verification.Service
	Audit        *audit.Recorder
	Escape       func(string) string

	Cursor   *cursor.Codec
	Pipeline *query.Pipeline
}

// NewAppContext builds an AppContext over rt. Safe to call more than
// once against the same Runtime (e.g. one call per transport process);
// every repository/service constructed here is cheap and stateless
// beyond the shared adapters it wraps.
func NewAppContext(ctx context.Context, rt *Runtime) (*AppContext, error) {
	baseDeps := repository.DbDeps{Adapter: rt.Storage, Events: rt.Events}

	scopes := repository.NewScopeRepository(baseDeps)
	tags := repository.NewTagRepository(baseDeps)
	relations := repository.NewRelationRepository(baseDeps)
	graph := repository.NewGraphRepository(baseDeps)
	conflicts := repository.NewConflictRepository(baseDeps)
	auditRepo := repository.NewAuditRepository(baseDeps)
	grants := repository.NewGrantRepository(baseDeps)
	embeddings := repository.NewEmbeddingRepository(baseDeps)
	locks := repository.NewLockRepository(rt.Lock)

	// Entry repositories additionally get Tags/Conflicts wired in, so
	// Create can attach tags supplied at creation and Update can run the
	// optimistic-conflict check, both inside the same transaction.
	entryDeps := repository.DbDeps{Adapter: rt.Storage, Events: rt.Events, Tags: tags, Conflicts: conflicts}
	guidelines := repository.NewGuidelineRepository(entryDeps)
	knowledge := repository.NewKnowledgeRepository(entryDeps)
	tools := repository.NewToolRepository(entryDeps)
	entries := map[domain.EntryKind]*repository.EntryRepository{
		domain.KindGuideline: guidelines.EntryRepository,
		domain.KindKnowledge: knowledge.EntryRepository,
		domain.KindTool:      tools.EntryRepository,
	}

	cursorSecret := rt.Config.Cursor.HMACSecret
	if cursorSecret == "" && rt.Config.IsDevelopment() {
		cursorSecret = developmentCursorSecret(rt)
	}
	cursorCodec, err := cursor.New(cursorSecret, rt.Config.Cursor.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("appcontext: build cursor codec: %w", err)
	}

	permSvc := permission.New(permission.Deps{
		Grants:      grants,
		Scopes:      scopes,
		Cache:       rt.Cache,
		TTL:         rt.Config.Cache.DefaultTTL,
		Environment: rt.Config.App.Environment,
		Logger:      rt.Logger,
		Metrics:     rt.Metrics,
	})
	if err := wirePermissionCache(ctx, rt, permSvc.HandleEvent); err != nil {
		return nil, fmt.Errorf("appcontext: wire permission cache: %w", err)
	}

	verifySvc := verification.New(scopes, guidelines)
	auditRecorder := audit.New(auditRepo, rt.Logger, rt.Metrics)

	var embedder query.Embedder
	if rt.Embedding != nil {
		embedder = rt.Embedding
	}
	pipeline := query.New(query.Deps{
		Scopes:    scopes,
		Entries:   entries,
		Tags:      tags,
		Relations: relations,
		Graph:     graph,
		Conflicts: conflicts,
		Vectors:   rt.Vectors,
		Embedder:  embedder,
		Cursor:    cursorCodec,
		Metrics:   rt.Metrics,
	})

	return &AppContext{
		Runtime: rt,
		Logger:  rt.Logger,

		Scopes:     scopes,
		Guidelines: guidelines,
		Knowledge:  knowledge,
		Tools:      tools,
		Entries:    entries,
		Tags:       tags,
		Relations:  relations,
		Graph:      graph,
		Conflicts:  conflicts,
		Locks:      locks,
		AuditLog:   auditRepo,
		Grants:     grants,
		Embeddings: embeddings,

		Permission:   permSvc,
		Verification: verifySvc,
		Audit:        auditRecorder,
		Escape:       security.Escape,

		Cursor:   cursorCodec,
		Pipeline: pipeline,
	}, nil
}

// developmentCursorSecret returns a fixed, non-random secret built from
// the app name, so the cursor codec still functions when development
// config leaves cursor.hmac_secret unset. Never used outside Environment=="development"
// (config.Validate already rejects an empty secret everywhere else).
func developmentCursorSecret(rt *Runtime) string {
	return "dev-" + rt.Config.App.Name + "-insecure-cursor-secret"
}

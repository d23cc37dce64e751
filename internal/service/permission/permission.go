// Package permission checks access policy at the boundary of every
// mutating handler: (agent_id, action, entry_kind, entry_id?, scope).
// Grounded on the repository's scope-chain walk (internal/repository
// ScopeRepository.Resolve) plus the teacher's own cache-then-recompute
// shape used throughout pkg/history/cache.
package permission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/cache"
	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// EnvDevelopment is the only environment value that enables the
// permissive fallback. Never "staging" or "production".
const EnvDevelopment = "development"

// Request is one access check.
type Request struct {
	AgentID   string
	Action    domain.Action
	EntryKind domain.EntryKind // empty means "any kind"
	EntryID   *string          // nil means "no specific entry", distinct from the literal string "null"
	Scope     domain.ScopeRef
}

// cacheKey marshals the request to JSON and hashes it. JSON encodes a
// nil *string as the bare null literal and a non-nil *string holding
// "null" as the quoted string "null" — the two never collide, which is
// the property spec requires of the cache key.
func (r Request) cacheKey() string {
	type wire struct {
		AgentID   string
		Action    domain.Action
		EntryKind domain.EntryKind
		EntryID   *string
		Scope     domain.ScopeRef
	}
	b, _ := json.Marshal(wire{r.AgentID, r.Action, r.EntryKind, r.EntryID, r.Scope})
	sum := sha256.Sum256(b)
	return "perm:" + hex.EncodeToString(sum[:])
}

// Service evaluates Requests against stored grants.
type Service struct {
	grants      *repository.GrantRepository
	scopes      *repository.ScopeRepository
	cache       cache.Adapter
	ttl         time.Duration
	environment string
	logger      *slog.Logger
	metrics     *metrics.Registry
}

// Deps bundles Service's dependencies.
type Deps struct {
	Grants      *repository.GrantRepository
	Scopes      *repository.ScopeRepository
	Cache       cache.Adapter
	TTL         time.Duration
	Environment string
	Logger      *slog.Logger
	Metrics     *metrics.Registry
}

// New constructs a Service.
func New(d Deps) *Service {
	return &Service{
		grants:      d.Grants,
		scopes:      d.Scopes,
		cache:       d.Cache,
		ttl:         d.TTL,
		environment: d.Environment,
		logger:      d.Logger,
		metrics:     d.Metrics,
	}
}

// Check reports whether req is allowed, walking the scope chain for a
// satisfying grant. On no match, the permissive fallback allows the
// request only when Service.environment is exactly "development",
// logging that the decision was made permissively.
func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	key := req.cacheKey()
	if s.cache != nil {
		var cached bool
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	chain, err := s.scopes.Resolve(ctx, req.Scope)
	if err != nil {
		return false, err
	}

	grants, err := s.grants.ForAgentAcrossChain(ctx, req.AgentID, chain)
	if err != nil {
		return false, err
	}

	allowed := matches(grants, req)
	if !allowed && s.environment == EnvDevelopment {
		allowed = true
		if s.logger != nil {
			s.logger.Warn("permission denied but allowed by development permissive mode",
				"agent_id", req.AgentID, "action", req.Action, "scope", req.Scope.String())
		}
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, allowed, s.ttl)
	}
	return allowed, nil
}

// matches reports whether any grant satisfies req: same agent (already
// filtered by the query), a grant action at or above the requested
// rank, and a matching entry kind (grant's empty EntryKind is a
// wildcard across kinds).
func matches(grants []domain.Grant, req Request) bool {
	for _, g := range grants {
		if g.Action.Rank() < req.Action.Rank() {
			continue
		}
		if g.EntryKind != "" && g.EntryKind != req.EntryKind {
			continue
		}
		return true
	}
	return false
}

// HandleEvent is the event.Handler registered by internal/runtime's
// wiring against the event bus; any grant or revoke invalidates the
// whole permission cache, since a single grant can change the outcome
// of many different cached requests across entry kinds and actions.
func (s *Service) HandleEvent(evt event.Event) {
	if evt.Kind != event.KindGrantCreated && evt.Kind != event.KindGrantRevoked {
		return
	}
	if s.cache != nil {
		_ = s.cache.Clear(context.Background())
	}
}

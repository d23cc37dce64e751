package tool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/runtime"
	"github.com/agent-memory/agent-memory/internal/service/audit"
	"github.com/agent-memory/agent-memory/internal/service/permission"
)

func permissionRequest(agentID string, action domain.Action, kind domain.EntryKind, scope domain.ScopeRef) permission.Request {
	return permission.Request{AgentID: agentID, Action: action, EntryKind: kind, Scope: scope}
}

func registerPermissionHandlers(reg *Registry) {
	reg.Register("permission", "grant", "grant an agent an action on a scope", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[permissionGrantParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := checkAdmin(ctx, ac, req.Actor, p.Scope.ref()); err != nil {
			return nil, err
		}

		grant := domain.Grant{
			ID:        uuid.NewString(),
			AgentID:   p.AgentID,
			Action:    domain.Action(p.Action),
			EntryKind: domain.EntryKind(p.EntryKind),
			Scope:     p.Scope.ref(),
			CreatedAt: time.Now().UTC().Unix(),
		}
		if !grant.Action.Valid() {
			return nil, apperror.Validation("action", "must be one of read, write, admin")
		}
		if err := ac.Grants.Create(ctx, grant); err != nil {
			return nil, err
		}
		ac.Audit.Record(ctx, audit.Entry{Action: "grant", EntryKind: grant.EntryKind, EntryID: grant.ID, Actor: req.Actor, Scope: grant.Scope})
		return grant, nil
	})

	reg.Register("permission", "revoke", "revoke a previously issued grant", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[permissionRevokeParams](req.Params)
		if err != nil {
			return nil, err
		}
		grant, err := ac.Grants.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if err := checkAdmin(ctx, ac, req.Actor, grant.Scope); err != nil {
			return nil, err
		}
		if err := ac.Grants.Revoke(ctx, p.ID); err != nil {
			return nil, err
		}
		ac.Audit.Record(ctx, audit.Entry{Action: "revoke", EntryID: p.ID, Actor: req.Actor, Scope: grant.Scope})
		return map[string]any{"id": p.ID}, nil
	})

	reg.Register("permission", "check", "check whether an agent may perform an action", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[permissionCheckParams](req.Params)
		if err != nil {
			return nil, err
		}
		allowed, err := ac.Permission.Check(ctx, permissionRequest(p.AgentID, domain.Action(p.Action), domain.EntryKind(p.EntryKind), p.Scope.ref()))
		if err != nil {
			return nil, err
		}
		return map[string]any{"allowed": allowed}, nil
	})

	reg.Register("permission", "list", "list grants held by an agent across a scope chain", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[permissionListParams](req.Params)
		if err != nil {
			return nil, err
		}
		chain, err := ac.Scopes.Resolve(ctx, p.Scope.ref())
		if err != nil {
			return nil, err
		}
		return ac.Grants.ForAgentAcrossChain(ctx, p.AgentID, chain)
	})
}

func checkAdmin(ctx context.Context, ac *runtime.AppContext, actor string, scope domain.ScopeRef) error {
	allowed, err := ac.Permission.Check(ctx, permissionRequest(actor, domain.ActionAdmin, "", scope))
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.New(apperror.CodeDenied, "agent does not hold admin on this scope", "agent_id", actor)
	}
	return nil
}

type permissionGrantParams struct {
	AgentID   string     `json:"agent_id" validate:"required"`
	Action    string     `json:"action" validate:"required"`
	EntryKind string     `json:"entry_kind,omitempty"`
	Scope     scopeParam `json:"scope" validate:"required"`
}

type permissionRevokeParams struct {
	ID string `json:"id" validate:"required"`
}

type permissionCheckParams struct {
	AgentID   string     `json:"agent_id" validate:"required"`
	Action    string     `json:"action" validate:"required"`
	EntryKind string     `json:"entry_kind,omitempty"`
	Scope     scopeParam `json:"scope" validate:"required"`
}

type permissionListParams struct {
	AgentID string     `json:"agent_id" validate:"required"`
	Scope   scopeParam `json:"scope" validate:"required"`
}

package tool

import (
	"context"

	"github.com/google/uuid"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

func registerScopeHandlers(reg *Registry) {
	reg.Register("org", "create", "create an organization scope", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[orgCreateParams](req.Params)
		if err != nil {
			return nil, err
		}
		org := domain.Org{ID: uuid.NewString(), Name: p.Name, CreatedBy: req.Actor}
		if err := ac.Scopes.CreateOrg(ctx, org); err != nil {
			return nil, err
		}
		return org, nil
	})
	reg.Register("org", "get", "fetch an organization by id", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Scopes.GetOrg(ctx, p.ID)
	})
	reg.Register("org", "delete", "delete an organization scope", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Scopes.DeleteOrg(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID}, nil
	})

	reg.Register("project", "create", "create a project scope under an organization", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[projectCreateParams](req.Params)
		if err != nil {
			return nil, err
		}
		project := domain.Project{ID: uuid.NewString(), OrgID: p.OrgID, Name: p.Name, CreatedBy: req.Actor}
		if err := ac.Scopes.CreateProject(ctx, project); err != nil {
			return nil, err
		}
		return project, nil
	})
	reg.Register("project", "get", "fetch a project by id", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Scopes.GetProject(ctx, p.ID)
	})
	reg.Register("project", "list", "list projects under an organization", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[orgIDParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Scopes.ProjectsForOrg(ctx, p.OrgID)
	})
	reg.Register("project", "delete", "delete a project scope", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Scopes.DeleteProject(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID}, nil
	})

	reg.Register("session", "create", "create a session scope under a project", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[sessionCreateParams](req.Params)
		if err != nil {
			return nil, err
		}
		session := domain.Session{ID: uuid.NewString(), ProjectID: p.ProjectID, Name: p.Name, CreatedBy: req.Actor}
		if err := ac.Scopes.CreateSession(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	})
	reg.Register("session", "get", "fetch a session by id", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Scopes.GetSession(ctx, p.ID)
	})
	reg.Register("session", "list", "list sessions under a project", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[projectIDParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Scopes.SessionsForProject(ctx, p.ProjectID)
	})
	reg.Register("session", "delete", "delete a session scope", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Scopes.DeleteSession(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID}, nil
	})
}

type idParams struct {
	ID string `json:"id" validate:"required"`
}

type orgCreateParams struct {
	Name string `json:"name" validate:"required"`
}

type orgIDParams struct {
	OrgID string `json:"org_id" validate:"required"`
}

type projectCreateParams struct {
	OrgID string `json:"org_id" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

type projectIDParams struct {
	ProjectID string `json:"project_id" validate:"required"`
}

type sessionCreateParams struct {
	ProjectID string `json:"project_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

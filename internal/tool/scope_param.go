package tool

import "github.com/agent-memory/agent-memory/internal/domain"

// scopeParam is the wire shape of a scope reference, matching
// spec.md §6.2's { type, id? }.
type scopeParam struct {
	Type string `json:"type" validate:"required,oneof=global organization project session"`
	ID   string `json:"id,omitempty"`
}

func (s scopeParam) ref() domain.ScopeRef {
	return domain.ScopeRef{Kind: domain.ScopeKind(s.Type), ID: s.ID}
}

func fromRef(r domain.ScopeRef) scopeParam {
	return scopeParam{Type: string(r.Kind), ID: r.ID}
}

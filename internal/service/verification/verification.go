// Package verification implements the deterministic pre-action check of
// spec.md §4.9: given a proposed action and a scope, load every
// critical guideline reachable from the scope chain and match its
// trigger patterns against the action text. Matching is pure regexp
// evaluation, never an LLM call, and never interpolates the action text
// into a prompt — that is what internal/service/security.Escape is for,
// used only by callers that do forward text externally, not by this
// package.
package verification

import (
	"context"
	"regexp"
	"sync"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// Severity is a guideline's configured response to a trigger match.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

// ProposedAction is the text under review. Kind is free-form (the tool
// dispatcher supplies something like "file_write" or "shell_command");
// it is not interpreted here, only carried through into any logging a
// caller wants to attach.
type ProposedAction struct {
	Kind string
	Text string
}

// Violation reports one critical guideline whose trigger pattern
// matched the proposed action.
type Violation struct {
	GuidelineName   string   `json:"guideline_name"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	SuggestedAction string   `json:"suggested_action,omitempty"`
}

// Result is the verification outcome.
type Result struct {
	Blocked    bool        `json:"blocked"`
	Violations []Violation `json:"violations"`
	Warnings   []string    `json:"warnings"`
}

// Service evaluates proposed actions against critical guidelines.
type Service struct {
	scopes     *repository.ScopeRepository
	guidelines *repository.GuidelineRepository

	mu    sync.Mutex
	cache map[string]*regexp.Regexp // trigger pattern source -> compiled, reused across calls
}

// New constructs a Service.
func New(scopes *repository.ScopeRepository, guidelines *repository.GuidelineRepository) *Service {
	return &Service{
		scopes:     scopes,
		guidelines: guidelines,
		cache:      make(map[string]*regexp.Regexp),
	}
}

// Verify loads every active, critical guideline reachable from scope
// and matches action.Text against each of their trigger patterns. A
// malformed trigger pattern is skipped and does not fail the whole
// check, since one bad pattern on an inherited guideline should not
// block every scope that inherits it.
func (s *Service) Verify(ctx context.Context, action ProposedAction, scope domain.ScopeRef) (Result, error) {
	chain, err := s.scopes.Resolve(ctx, scope)
	if err != nil {
		return Result{}, err
	}

	entries, err := s.guidelines.ListWithPayload(ctx, repository.ListFilter{
		Scopes:     chain,
		ActiveOnly: true,
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{Violations: []Violation{}, Warnings: []string{}}
	for _, e := range entries {
		critical, _ := e.Payload["critical"].(bool)
		if !critical {
			continue
		}
		severity := Severity(stringField(e.Payload, "severity"))
		if severity != SeverityBlock {
			severity = SeverityWarn
		}
		message := stringField(e.Payload, "rationale")
		suggested := stringField(e.Payload, "suggested_action")

		for _, pattern := range patternsField(e.Payload) {
			re, ok := s.compile(pattern)
			if !ok {
				continue
			}
			if re.MatchString(action.Text) {
				v := Violation{GuidelineName: e.Name, Severity: severity, Message: message, SuggestedAction: suggested}
				result.Violations = append(result.Violations, v)
				if severity == SeverityBlock {
					result.Blocked = true
				} else {
					result.Warnings = append(result.Warnings, message)
				}
				break // one match per guideline is enough
			}
		}
	}

	return result, nil
}

func (s *Service) compile(pattern string) (*regexp.Regexp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if re, ok := s.cache[pattern]; ok {
		return re, re != nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		s.cache[pattern] = nil
		return nil, false
	}
	s.cache[pattern] = re
	return re, true
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func patternsField(payload map[string]any) []string {
	raw, ok := payload["trigger_patterns"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

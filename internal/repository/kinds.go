package repository

import "github.com/agent-memory/agent-memory/internal/domain"

// GuidelineRepository, KnowledgeRepository, and ToolRepository are thin
// aliases fixing EntryRepository's kind; every method is inherited
// unchanged since the three kinds share one storage shape and differ
// only in their payload's fields (interpreted above storage, in
// internal/service).

// GuidelineRepository stores domain.KindGuideline entries.
type GuidelineRepository struct{ *EntryRepository }

// NewGuidelineRepository constructs a GuidelineRepository.
func NewGuidelineRepository(deps DbDeps) *GuidelineRepository {
	return &GuidelineRepository{NewEntryRepository(deps, domain.KindGuideline)}
}

// KnowledgeRepository stores domain.KindKnowledge entries.
type KnowledgeRepository struct{ *EntryRepository }

// NewKnowledgeRepository constructs a KnowledgeRepository.
func NewKnowledgeRepository(deps DbDeps) *KnowledgeRepository {
	return &KnowledgeRepository{NewEntryRepository(deps, domain.KindKnowledge)}
}

// ToolRepository stores domain.KindTool entries.
type ToolRepository struct{ *EntryRepository }

// NewToolRepository constructs a ToolRepository.
func NewToolRepository(deps DbDeps) *ToolRepository {
	return &ToolRepository{NewEntryRepository(deps, domain.KindTool)}
}

package tool

import "github.com/agent-memory/agent-memory/internal/domain"

// RegisterAll wires every tool's handlers into reg. Called once by each
// transport at startup, over a fresh Registry per process — handlers
// are stateless closures over ac, so the same registration list is
// reused by jsonrpc and REST alike.
func RegisterAll(reg *Registry) {
	registerEntryHandlers(reg, "guideline", domain.KindGuideline)
	registerEntryHandlers(reg, "knowledge", domain.KindKnowledge)
	registerEntryHandlers(reg, "tool", domain.KindTool)

	registerScopeHandlers(reg)
	registerQueryHandlers(reg)
	registerTagHandlers(reg)
	registerRelationHandlers(reg)
	registerGraphHandlers(reg)
	registerLockHandlers(reg)
	registerPermissionHandlers(reg)
	registerConflictHandlers(reg)
	registerVotingHandlers(reg)
	registerAnalyticsHandlers(reg)
	registerDataHandlers(reg)
	registerBackupHandlers(reg)
	registerSystemHandlers(reg)
}

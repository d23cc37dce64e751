package tool

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

// The reference system names a `voting` tool with no backing domain
// type anywhere in the data model (see DESIGN.md "Voting tool" entry):
// it is treated here as a lightweight, process-lifetime consensus tally
// over a conflict's candidate resolutions, held in Runtime.StatsCache
// rather than a new table — a vote tally is advisory input to whoever
// eventually calls conflict.resolve, not itself a durable record.
func registerVotingHandlers(reg *Registry) {
	reg.Register("voting", "cast", "cast a vote for one candidate resolution of a conflict", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[votingCastParams](req.Params)
		if err != nil {
			return nil, err
		}
		tally := loadTally(ac, p.ConflictID)
		tally[p.Voter] = p.Choice
		ac.Runtime.StatsCache.Add(tallyKey(p.ConflictID), tally)
		return map[string]any{"conflict_id": p.ConflictID, "tally": summarize(tally)}, nil
	})

	reg.Register("voting", "tally", "report the current vote tally for a conflict", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[conflictIDParams](req.Params)
		if err != nil {
			return nil, err
		}
		tally := loadTally(ac, p.ConflictID)
		return map[string]any{"conflict_id": p.ConflictID, "tally": summarize(tally), "votes": tally}, nil
	})

	reg.Register("voting", "resolve", "apply the majority choice as the conflict's resolution", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[conflictIDParams](req.Params)
		if err != nil {
			return nil, err
		}
		tally := loadTally(ac, p.ConflictID)
		if len(tally) == 0 {
			return nil, apperror.New(apperror.CodeMissingField, "no votes cast for this conflict")
		}
		winner := majority(tally)
		if err := ac.Conflicts.Resolve(ctx, p.ConflictID, "voting:"+winner); err != nil {
			return nil, err
		}
		ac.Runtime.StatsCache.Remove(tallyKey(p.ConflictID))
		return map[string]any{"conflict_id": p.ConflictID, "resolution": winner}, nil
	})
}

func tallyKey(conflictID string) string { return "vote:" + conflictID }

func loadTally(ac *runtime.AppContext, conflictID string) map[string]string {
	if v, ok := ac.Runtime.StatsCache.Get(tallyKey(conflictID)); ok {
		if tally, ok := v.(map[string]string); ok {
			return tally
		}
	}
	return make(map[string]string)
}

func summarize(tally map[string]string) map[string]int {
	counts := make(map[string]int)
	for _, choice := range tally {
		counts[choice]++
	}
	return counts
}

func majority(tally map[string]string) string {
	counts := summarize(tally)
	var best string
	var bestCount int
	for choice, n := range counts {
		if n > bestCount {
			best, bestCount = choice, n
		}
	}
	return best
}

type votingCastParams struct {
	ConflictID string `json:"conflict_id" validate:"required"`
	Voter      string `json:"voter" validate:"required"`
	Choice     string `json:"choice" validate:"required"`
}

type conflictIDParams struct {
	ConflictID string `json:"conflict_id" validate:"required"`
}

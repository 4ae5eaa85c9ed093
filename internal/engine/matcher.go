package engine

import (
	"context"
	"log/slog"

	"github.com/civitas-coop/microfund/internal/model"
	"github.com/civitas-coop/microfund/internal/service"

	"github.com/google/uuid"
)

// ProcessBankStatement classifies each movement against the campaign's
// pending pledges and auto-confirms Sure matches. Every input movement yields
// exactly one result. A pledge confirmed by a Sure match leaves the candidate
// pool immediately, so neither later movements in the same run nor a re-run
// over the same statement can match it again.
func (e *Engine) ProcessBankStatement(ctx context.Context, campaignID int64, movements []model.BankMovement) ([]model.MatchResult, error) {
	unlock := e.lockCampaign(campaignID)
	defer unlock()

	if _, err := e.storage.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	pending := model.StatePending
	pledges, err := e.storage.GetPledges(ctx, service.PledgeFilter{
		CampaignID: &campaignID,
		State:      &pending,
	})
	if err != nil {
		return nil, err
	}

	// Candidate pool keyed by amount; Sure matches are removed as they land.
	pool := make(map[int64][]*model.Pledge)
	for i := range pledges {
		pool[pledges[i].Amount] = append(pool[pledges[i].Amount], &pledges[i])
	}

	run := model.ReconciliationRun{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		StartedAt:  e.now(),
		Movements:  len(movements),
	}

	results := make([]model.MatchResult, 0, len(movements))
	for _, movement := range movements {
		result, matched := e.classifyMovement(ctx, movement, pool)
		results = append(results, result)

		switch result.Confidence {
		case model.MatchSure:
			run.Sure++
			pool[movement.Amount] = removePledge(pool[movement.Amount], matched)
		case model.MatchDoubtful:
			run.Doubtful++
		case model.MatchUnmatched:
			run.Unmatched++
		}
	}

	if err := e.storage.SaveReconciliationRun(ctx, &run); err != nil {
		return nil, err
	}

	slog.Info("Bank statement processed",
		"campaign_id", campaignID,
		"run_id", run.ID,
		"movements", run.Movements,
		"sure", run.Sure,
		"doubtful", run.Doubtful,
		"unmatched", run.Unmatched)
	return results, nil
}

// classifyMovement matches one movement against the remaining candidate
// pool. A Sure classification confirms the pledge as part of the commit; low
// confidence is a classification, never an error.
func (e *Engine) classifyMovement(ctx context.Context, movement model.BankMovement, pool map[int64][]*model.Pledge) (model.MatchResult, *model.Pledge) {
	result := model.MatchResult{Movement: movement}

	candidates := pool[movement.Amount]
	if len(candidates) == 0 {
		result.Confidence = model.MatchUnmatched
		return result, nil
	}

	ids := digitTokens(movement.Concept)

	var sure []*model.Pledge
	for _, candidate := range candidates {
		idFound := ids[candidate.ID]
		nameFound := nameAppearsIn(movement.Concept, candidate.Payer.FullName())

		if idFound {
			result.Basis.IDFound = true
		}
		if nameFound {
			result.Basis.NameFound = true
		}
		if idFound && nameFound {
			sure = append(sure, candidate)
		}
	}

	if len(sure) == 1 {
		pledge := sure[0]
		fromState := pledge.State
		if err := pledge.Confirm(e.now()); err == nil {
			if err := e.storage.UpdatePledgeState(ctx, pledge, fromState); err == nil {
				result.Confidence = model.MatchSure
				result.Basis = model.MatchBasis{IDFound: true, NameFound: true}
				result.PledgeID = &pledge.ID
				return result, pledge
			}
		}
		// Confirmation raced with another writer; fall through to Doubtful so
		// the operator sees the movement.
	}

	// Partial evidence, ambiguity, or a race: attach the candidate list for
	// manual resolution.
	result.Confidence = model.MatchDoubtful
	for _, candidate := range candidates {
		result.Candidates = append(result.Candidates, candidate.ID)
	}
	return result, nil
}

func removePledge(candidates []*model.Pledge, pledge *model.Pledge) []*model.Pledge {
	if pledge == nil {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		if c.ID != pledge.ID {
			out = append(out, c)
		}
	}
	return out
}

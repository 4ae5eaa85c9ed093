package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/civitas-coop/microfund/internal/model"
)

// CampaignStatus computes every capacity and percentage figure for a
// campaign. This is the sole source of truth for those figures; nothing else
// aggregates pledges.
func (e *Engine) CampaignStatus(ctx context.Context, campaignID int64) (*model.CampaignStatus, error) {
	campaign, err := e.storage.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	tiers, err := campaign.Tiers()
	if err != nil {
		return nil, err
	}

	pledges, err := e.storage.GetCampaignPledges(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	return computeStatus(campaign, tiers, pledges), nil
}

func computeStatus(campaign *model.Campaign, tiers model.TierConfig, pledges []model.Pledge) *model.CampaignStatus {
	status := &model.CampaignStatus{
		CampaignID:          campaign.ID,
		TotalGoal:           campaign.TotalGoal,
		PhaseCapacityAmount: tiers.PhaseCapacityAmount(),
		BankCountedAmount:   campaign.BankCountedAmount,
	}

	countedByTier := make(map[int64]int, tiers.Len())
	confirmedByTier := make(map[int64]int, tiers.Len())
	payers := make(map[string]bool)
	confirmedPayers := make(map[string]bool)

	for i := range pledges {
		p := &pledges[i]

		if p.DiscardedAt != nil {
			status.DiscardedCount++
			status.DiscardedAmount += p.Amount
			continue
		}

		status.CreatedCount++
		status.CreatedAmount += p.Amount
		if key := payerKey(p); key != "" {
			payers[key] = true
		}

		if p.CountsTowardConfidence() {
			status.ConfirmedCount++
			status.ConfirmedAmount += p.Amount
			if key := payerKey(p); key != "" {
				confirmedPayers[key] = true
			}
		}
		if p.CountsTowardCapacity() {
			status.CountedCount++
			status.CountedAmount += p.Amount
			countedByTier[p.Amount]++
		} else if p.State == model.StateConfirmed {
			confirmedByTier[p.Amount]++
		}
	}

	status.UniquePayers = len(payers)
	status.UniqueConfirmedPayers = len(confirmedPayers)

	status.PhaseFull = true
	for _, tier := range tiers.Tiers() {
		counted := countedByTier[tier.Amount]
		remaining := tier.Slots - counted
		if remaining < 0 {
			remaining = 0
		}
		if remaining > 0 {
			status.PhaseFull = false
		}
		status.Tiers = append(status.Tiers, model.TierStatus{
			Amount:    tier.Amount,
			Slots:     tier.Slots,
			Counted:   counted,
			Confirmed: confirmedByTier[tier.Amount],
			Remaining: remaining,
		})
	}

	if campaign.TotalGoal > 0 {
		status.ConfidencePercent = 100 * float64(status.ConfirmedAmount) / float64(campaign.TotalGoal)
		status.CurrentPercent = 100 * float64(status.CountedAmount) / float64(campaign.TotalGoal)
	}

	return status
}

// payerKey identifies a payer for unique counting: registered user id when
// present, otherwise the document id.
func payerKey(p *model.Pledge) string {
	if p.UserID != nil {
		return fmt.Sprintf("user:%d", *p.UserID)
	}
	if p.DocumentID != "" {
		return "doc:" + p.DocumentID
	}
	return ""
}

// tierFree returns how many slots remain sellable for an amount: configured
// slots minus counted occupancy minus confirmations waiting to be counted.
func tierFree(status *model.CampaignStatus, amount int64) int {
	for _, tier := range status.Tiers {
		if tier.Amount == amount {
			return tier.Remaining - tier.Confirmed
		}
	}
	return 0
}

// AdvancePhase marks confirmed, not yet counted pledges as counted, retiring
// the current phase's remaining slot capacity. Per tier it never counts past
// the configured slot count; confirmations beyond capacity stay confirmed and
// are reported back. Idempotent: with no new confirmations a second call
// performs no writes.
func (e *Engine) AdvancePhase(ctx context.Context, campaignID int64) (BatchResult, error) {
	unlock := e.lockCampaign(campaignID)
	defer unlock()

	var result BatchResult

	campaign, err := e.storage.GetCampaign(ctx, campaignID)
	if err != nil {
		return result, err
	}
	tiers, err := campaign.Tiers()
	if err != nil {
		return result, err
	}

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback() }()

	pledges, err := tx.GetCampaignPledges(ctx, campaignID)
	if err != nil {
		return result, err
	}

	remaining := make(map[int64]int, tiers.Len())
	for _, tier := range tiers.Tiers() {
		remaining[tier.Amount] = tier.Slots
	}
	for i := range pledges {
		if pledges[i].CountsTowardCapacity() {
			remaining[pledges[i].Amount]--
		}
	}

	// Oldest confirmations are counted first.
	var confirmed []*model.Pledge
	for i := range pledges {
		if pledges[i].State == model.StateConfirmed {
			confirmed = append(confirmed, &pledges[i])
		}
	}
	sort.SliceStable(confirmed, func(i, j int) bool {
		a, b := confirmed[i].ConfirmedAt, confirmed[j].ConfirmedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})

	now := e.now()
	for _, pledge := range confirmed {
		if remaining[pledge.Amount] <= 0 {
			slog.Warn("Tier capacity exhausted, pledge stays confirmed",
				"pledge_id", pledge.ID,
				"amount", pledge.Amount)
			result.record(pledge.ID, fmt.Errorf("tier %d has no remaining slots", pledge.Amount))
			continue
		}

		if err := pledge.Count(now); err != nil {
			result.record(pledge.ID, err)
			continue
		}
		if err := tx.UpdatePledgeState(ctx, pledge, model.StateConfirmed); err != nil {
			result.record(pledge.ID, err)
			continue
		}
		remaining[pledge.Amount]--
		result.record(pledge.ID, nil)
	}

	if result.Succeeded == 0 {
		// Nothing advanced; leave the campaign untouched.
		return result, nil
	}

	if err := tx.SetLastPhaseChange(ctx, campaignID, now); err != nil {
		return result, err
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit phase advance: %w", err)
	}

	slog.Info("Phase advanced",
		"campaign_id", campaignID,
		"counted", result.Succeeded,
		"held_back", result.Skipped)
	return result, nil
}

// UpdateTierLimits replaces a campaign's tier configuration. Callers without
// elevated privilege may redistribute slots but must keep the phase total
// constant; any violation aborts with no writes.
func (e *Engine) UpdateTierLimits(ctx context.Context, campaignID int64, limits string, elevated bool) error {
	campaign, err := e.storage.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	old, err := campaign.Tiers()
	if err != nil {
		return err
	}
	updated, err := model.ParseTierConfig(limits)
	if err != nil {
		return err
	}
	if err := model.ValidateTierEdit(old, updated, elevated); err != nil {
		return err
	}

	return e.storage.UpdateCampaignLimits(ctx, campaignID, updated.String())
}

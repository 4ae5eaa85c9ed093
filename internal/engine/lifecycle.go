package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/civitas-coop/microfund/internal/common"
	"github.com/civitas-coop/microfund/internal/model"
)

// ErrTransferCycle indicates a renewal link that would revisit a pledge
// already in the transfer chain.
var ErrTransferCycle = errors.New("transfer would create a cycle")

// ItemResult reports the outcome of one pledge inside a batch operation.
type ItemResult struct {
	Err      error
	PledgeID int64
}

// BatchResult reports a batch lifecycle operation. State errors on individual
// pledges do not abort the batch.
type BatchResult struct {
	Results   []ItemResult
	Succeeded int
	Skipped   int
}

func (r *BatchResult) record(id int64, err error) {
	r.Results = append(r.Results, ItemResult{PledgeID: id, Err: err})
	if err != nil {
		r.Skipped++
	} else {
		r.Succeeded++
	}
}

// NewPledgeRequest carries the data needed to subscribe a new pledge.
type NewPledgeRequest struct {
	Payer       model.Payer
	DocumentID  string
	IBANAccount string
	IBANBIC     string
	OptionCode  string
	UserID      *int64
	CampaignID  int64
	Amount      int64
}

// buildPledge validates a subscription against the campaign's tier capacity
// and returns the unsaved pledge in Pending state with a fresh renewal
// secret.
func (e *Engine) buildPledge(ctx context.Context, req NewPledgeRequest) (*model.Pledge, error) {
	campaign, err := e.storage.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if !campaign.IsActive(now) {
		if campaign.HasFinished(now) {
			return nil, common.NewUserError("the campaign has already finished", common.ErrCampaignHasFinished)
		}
		return nil, common.NewUserError("the campaign is not active right now", common.ErrCampaignNotActive)
	}

	tiers, err := campaign.Tiers()
	if err != nil {
		return nil, err
	}
	if !tiers.HasAmount(req.Amount) {
		return nil, common.NewUserError(
			fmt.Sprintf("amount %d is not offered by this campaign", req.Amount), nil)
	}

	status, err := e.CampaignStatus(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if tierFree(status, req.Amount) <= 0 {
		return nil, common.NewUserError(
			fmt.Sprintf("no pledges left for amount %d", req.Amount), nil)
	}

	secret, err := newRenewalSecret()
	if err != nil {
		return nil, err
	}

	return &model.Pledge{
		CampaignID:    req.CampaignID,
		Amount:        req.Amount,
		UserID:        req.UserID,
		Payer:         req.Payer,
		DocumentID:    req.DocumentID,
		IBANAccount:   req.IBANAccount,
		IBANBIC:       req.IBANBIC,
		OptionCode:    req.OptionCode,
		State:         model.StatePending,
		RenewalSecret: secret,
		CreatedAt:     now,
	}, nil
}

// CreatePledge validates and stores a new subscription.
func (e *Engine) CreatePledge(ctx context.Context, req NewPledgeRequest) (*model.Pledge, error) {
	pledge, err := e.buildPledge(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := e.storage.CreatePledge(ctx, pledge); err != nil {
		return nil, err
	}

	slog.Info("Pledge created",
		"pledge_id", pledge.ID,
		"campaign_id", pledge.CampaignID,
		"amount", pledge.Amount)
	return pledge, nil
}

// ConfirmPledges marks each pledge confirmed. Already confirmed pledges are
// counted as successes (the operation is idempotent per pledge).
func (e *Engine) ConfirmPledges(ctx context.Context, ids []int64) BatchResult {
	return e.applyTransition(ctx, ids, "confirm", func(p *model.Pledge) error {
		return p.Confirm(e.now())
	})
}

// UnconfirmPledges clears confirmations that have not been counted yet.
func (e *Engine) UnconfirmPledges(ctx context.Context, ids []int64) BatchResult {
	return e.applyTransition(ctx, ids, "unconfirm", func(p *model.Pledge) error {
		return p.Unconfirm()
	})
}

// DiscardPledges permanently excludes pledges from all capacity and total
// calculations.
func (e *Engine) DiscardPledges(ctx context.Context, ids []int64) BatchResult {
	return e.applyTransition(ctx, ids, "discard", func(p *model.Pledge) error {
		return p.Discard(e.now())
	})
}

// ReturnPledges marks already committed money as refunded to the payers.
func (e *Engine) ReturnPledges(ctx context.Context, ids []int64) BatchResult {
	return e.applyTransition(ctx, ids, "return", func(p *model.Pledge) error {
		return p.Return(e.now())
	})
}

// applyTransition loads each pledge, applies the in-memory transition and
// persists it guarded by the pledge's previous state. StateErrors are
// reported per item; the batch always runs to completion.
func (e *Engine) applyTransition(ctx context.Context, ids []int64, op string, transition func(*model.Pledge) error) BatchResult {
	var result BatchResult

	for _, id := range ids {
		pledge, err := e.storage.GetPledge(ctx, id)
		if err != nil {
			result.record(id, err)
			continue
		}

		fromState := pledge.State
		if err := transition(pledge); err != nil {
			slog.Warn("Skipping pledge in batch",
				"op", op,
				"pledge_id", id,
				"state", fromState,
				"error", err)
			result.record(id, err)
			continue
		}

		if pledge.State == fromState {
			// Idempotent no-op, nothing to write.
			result.record(id, nil)
			continue
		}

		if err := e.storage.UpdatePledgeState(ctx, pledge, fromState); err != nil {
			result.record(id, err)
			continue
		}
		result.record(id, nil)
	}

	slog.Info("Batch lifecycle operation finished",
		"op", op,
		"succeeded", result.Succeeded,
		"skipped", result.Skipped)
	return result
}

// Transfer attaches a renewal link from pledge to target. The link forms a
// forest: the chain starting at target must never revisit the pledge.
func (e *Engine) Transfer(ctx context.Context, pledgeID, targetID int64) error {
	if pledgeID == targetID {
		return fmt.Errorf("pledge %d: %w", pledgeID, ErrTransferCycle)
	}

	pledge, err := e.storage.GetPledge(ctx, pledgeID)
	if err != nil {
		return err
	}
	if !pledge.CanTransfer() {
		return common.NewStateError(pledgeID, "transfer", string(pledge.State))
	}

	// Walk the existing chain from the target; reject if the pledge already
	// appears anywhere in it.
	visited := map[int64]bool{pledgeID: true}
	currentID := targetID
	for {
		if visited[currentID] {
			return fmt.Errorf("pledge %d via %d: %w", pledgeID, currentID, ErrTransferCycle)
		}
		visited[currentID] = true

		current, err := e.storage.GetPledge(ctx, currentID)
		if err != nil {
			return err
		}
		if current.TransferredTo == nil {
			break
		}
		currentID = *current.TransferredTo
	}

	if err := e.storage.SetTransferredTo(ctx, pledgeID, targetID); err != nil {
		return err
	}

	slog.Info("Pledge transferred",
		"pledge_id", pledgeID,
		"target_id", targetID)
	return nil
}

func newRenewalSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate renewal secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

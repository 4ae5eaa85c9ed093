package engine

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/civitas-coop/microfund/internal/common"
	"github.com/civitas-coop/microfund/internal/model"
)

// RenewalLink is the identifier pair embedded in a renewal deep link.
type RenewalLink struct {
	Token    string
	PledgeID int64
}

// BuildRenewalLink derives the unguessable token for a renewable pledge. The
// token is keyed by the secret stored at pledge creation, so it cannot be
// forged without database access.
func (e *Engine) BuildRenewalLink(ctx context.Context, pledgeID int64) (*RenewalLink, error) {
	pledge, err := e.storage.GetPledge(ctx, pledgeID)
	if err != nil {
		return nil, err
	}

	if err := e.checkRenewable(ctx, pledge); err != nil {
		return nil, err
	}

	return &RenewalLink{
		PledgeID: pledge.ID,
		Token:    renewalToken(pledge),
	}, nil
}

// VerifyRenewalLink recomputes the expected token for the pledge and compares
// it in constant time.
func (e *Engine) VerifyRenewalLink(ctx context.Context, pledgeID int64, token string) (*model.Pledge, error) {
	pledge, err := e.storage.GetPledge(ctx, pledgeID)
	if err != nil {
		return nil, err
	}

	expected := renewalToken(pledge)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		slog.Warn("Renewal token mismatch", "pledge_id", pledgeID)
		return nil, fmt.Errorf("pledge %d: %w", pledgeID, common.ErrInvalidRenewalToken)
	}
	return pledge, nil
}

// Renew re-pledges a confirmed past commitment into a currently open
// campaign: a new pledge is created with the same payer identity and amount,
// confirmed, and linked from the old pledge, which is then marked returned.
// All three writes happen in one transaction; a failed renewal leaves both
// campaigns untouched. The new pledge is only counted later, by phase
// advancement.
func (e *Engine) Renew(ctx context.Context, pledgeID int64, token string, targetCampaignID int64) (*model.Pledge, error) {
	old, err := e.VerifyRenewalLink(ctx, pledgeID, token)
	if err != nil {
		return nil, err
	}
	if err := e.checkRenewable(ctx, old); err != nil {
		return nil, err
	}
	if old.CampaignID == targetCampaignID {
		return nil, fmt.Errorf("pledge %d: cannot renew into its own campaign: %w", pledgeID, common.ErrNotRenewable)
	}

	renewed, err := e.buildPledge(ctx, NewPledgeRequest{
		CampaignID:  targetCampaignID,
		Amount:      old.Amount,
		UserID:      old.UserID,
		Payer:       old.Payer,
		DocumentID:  old.DocumentID,
		IBANAccount: old.IBANAccount,
		IBANBIC:     old.IBANBIC,
		OptionCode:  old.OptionCode,
	})
	if err != nil {
		return nil, err
	}

	// The renewal carries the payer's standing commitment over, so the new
	// pledge starts out confirmed.
	if err := renewed.Confirm(e.now()); err != nil {
		return nil, err
	}
	fromState := old.State
	if err := old.Return(e.now()); err != nil {
		return nil, err
	}

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.CreatePledge(ctx, renewed); err != nil {
		return nil, err
	}
	if err := tx.SetTransferredTo(ctx, old.ID, renewed.ID); err != nil {
		return nil, err
	}
	if err := tx.UpdatePledgeState(ctx, old, fromState); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit renewal: %w", err)
	}

	slog.Info("Pledge renewed",
		"old_pledge_id", old.ID,
		"new_pledge_id", renewed.ID,
		"campaign_id", targetCampaignID,
		"amount", renewed.Amount)
	return renewed, nil
}

// checkRenewable verifies the eligibility rules: the pledge is confirmed and
// not returned, its own campaign has finished, and at least one other
// campaign is currently open.
func (e *Engine) checkRenewable(ctx context.Context, pledge *model.Pledge) error {
	if pledge.State != model.StateConfirmed && pledge.State != model.StateCounted {
		return fmt.Errorf("pledge %d is not confirmed: %w", pledge.ID, common.ErrNotRenewable)
	}

	now := e.now()
	campaign, err := e.storage.GetCampaign(ctx, pledge.CampaignID)
	if err != nil {
		return err
	}
	if !campaign.HasFinished(now) {
		return fmt.Errorf("pledge %d: campaign still running: %w", pledge.ID, common.ErrNotRenewable)
	}

	active, err := e.storage.GetActiveCampaigns(ctx, now)
	if err != nil {
		return err
	}
	for _, c := range active {
		if c.ID != pledge.CampaignID {
			return nil
		}
	}
	return fmt.Errorf("pledge %d: no open campaign to renew into: %w", pledge.ID, common.ErrNotRenewable)
}

func renewalToken(pledge *model.Pledge) string {
	mac := hmac.New(sha256.New, []byte(pledge.RenewalSecret))
	mac.Write([]byte("renewal:" + strconv.FormatInt(pledge.ID, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

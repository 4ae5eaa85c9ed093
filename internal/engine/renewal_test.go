package engine

import (
	"context"
	"testing"
	"time"

	"github.com/civitas-coop/microfund/internal/common"
	"github.com/civitas-coop/microfund/internal/model"
	"github.com/civitas-coop/microfund/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedRenewalScenario sets up a finished campaign with a confirmed pledge and
// a currently open follow-up campaign, the situation renewal links exist for.
func seedRenewalScenario(t *testing.T) (*Engine, renewalScenario) {
	t.Helper()
	eng, store, clock := newTestEngine(t)
	ctx := context.Background()

	finished := seedCampaign(t, store, "100 10")
	pledge := seedPledge(t, eng, finished.ID, 100, "Juan", "García")
	require.Equal(t, 1, eng.ConfirmPledges(ctx, []int64{pledge.ID}).Succeeded)

	next := &model.Campaign{
		Title:     "Autumn Campaign",
		Limits:    "100 10",
		TotalGoal: 10000,
		StartsAt:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:    time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateCampaign(ctx, next))

	// Cross into 2027: the first campaign is over, the next one is open.
	clock.Advance(300 * 24 * time.Hour)

	return eng, renewalScenario{
		store:    store,
		clock:    clock,
		finished: finished,
		next:     next,
		pledge:   pledge,
	}
}

type renewalScenario struct {
	store    *storage.SQLiteStorage
	clock    *testClock
	finished *model.Campaign
	next     *model.Campaign
	pledge   *model.Pledge
}

func TestBuildRenewalLink(t *testing.T) {
	eng, s := seedRenewalScenario(t)
	ctx := context.Background()

	link, err := eng.BuildRenewalLink(ctx, s.pledge.ID)
	require.NoError(t, err)
	assert.Equal(t, s.pledge.ID, link.PledgeID)
	assert.Len(t, link.Token, 64) // hex encoded HMAC-SHA256

	// Deterministic for the same pledge.
	again, err := eng.BuildRenewalLink(ctx, s.pledge.ID)
	require.NoError(t, err)
	assert.Equal(t, link.Token, again.Token)
}

func TestBuildRenewalLinkEligibility(t *testing.T) {
	t.Run("campaign still running", func(t *testing.T) {
		eng, store, _ := newTestEngine(t)
		ctx := context.Background()
		campaign := seedCampaign(t, store, "100 10")
		pledge := seedPledge(t, eng, campaign.ID, 100, "Juan", "García")
		require.Equal(t, 1, eng.ConfirmPledges(ctx, []int64{pledge.ID}).Succeeded)

		_, err := eng.BuildRenewalLink(ctx, pledge.ID)
		assert.ErrorIs(t, err, common.ErrNotRenewable)
	})

	t.Run("unconfirmed pledge", func(t *testing.T) {
		eng, store, clock := newTestEngine(t)
		ctx := context.Background()
		campaign := seedCampaign(t, store, "100 10")
		pledge := seedPledge(t, eng, campaign.ID, 100, "Juan", "García")

		next := &model.Campaign{
			Title:     "Autumn Campaign",
			Limits:    "100 10",
			TotalGoal: 10000,
			StartsAt:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			EndsAt:    time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.CreateCampaign(ctx, next))
		clock.Advance(300 * 24 * time.Hour)

		// The campaign finished with the pledge still pending: no renewal.
		_, err := eng.BuildRenewalLink(ctx, pledge.ID)
		assert.ErrorIs(t, err, common.ErrNotRenewable)
	})

	t.Run("no open campaign", func(t *testing.T) {
		eng, store, clock := newTestEngine(t)
		ctx := context.Background()
		campaign := seedCampaign(t, store, "100 10")
		pledge := seedPledge(t, eng, campaign.ID, 100, "Juan", "García")
		require.Equal(t, 1, eng.ConfirmPledges(ctx, []int64{pledge.ID}).Succeeded)

		clock.Advance(300 * 24 * time.Hour)

		_, err := eng.BuildRenewalLink(ctx, pledge.ID)
		assert.ErrorIs(t, err, common.ErrNotRenewable)
	})
}

func TestVerifyRenewalLink(t *testing.T) {
	eng, s := seedRenewalScenario(t)
	ctx := context.Background()

	link, err := eng.BuildRenewalLink(ctx, s.pledge.ID)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		pledge, err := eng.VerifyRenewalLink(ctx, s.pledge.ID, link.Token)
		require.NoError(t, err)
		assert.Equal(t, s.pledge.ID, pledge.ID)
	})

	t.Run("forged token", func(t *testing.T) {
		_, err := eng.VerifyRenewalLink(ctx, s.pledge.ID, "0123456789abcdef")
		assert.ErrorIs(t, err, common.ErrInvalidRenewalToken)
	})

	t.Run("token bound to its pledge", func(t *testing.T) {
		_, err := eng.VerifyRenewalLink(ctx, s.pledge.ID+999, link.Token)
		assert.Error(t, err)
	})
}

func TestRenew(t *testing.T) {
	eng, s := seedRenewalScenario(t)
	ctx := context.Background()

	link, err := eng.BuildRenewalLink(ctx, s.pledge.ID)
	require.NoError(t, err)

	renewed, err := eng.Renew(ctx, s.pledge.ID, link.Token, s.next.ID)
	require.NoError(t, err)

	// The new pledge carries the payer and amount into the open campaign,
	// already confirmed but not yet counted.
	assert.Equal(t, s.next.ID, renewed.CampaignID)
	assert.Equal(t, s.pledge.Amount, renewed.Amount)
	assert.Equal(t, s.pledge.Payer, renewed.Payer)
	assert.Equal(t, model.StateConfirmed, renewed.State)
	assert.Nil(t, renewed.CountedAt)
	assert.NotEqual(t, s.pledge.RenewalSecret, renewed.RenewalSecret)

	// The old pledge is returned and linked forward.
	old, err := s.store.GetPledge(ctx, s.pledge.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateReturned, old.State)
	require.NotNil(t, old.TransferredTo)
	assert.Equal(t, renewed.ID, *old.TransferredTo)
}

func TestRenewFailureLeavesNoPartialState(t *testing.T) {
	eng, store, clock := newTestEngine(t)
	ctx := context.Background()

	finished := seedCampaign(t, store, "100 10")
	pledge := seedPledge(t, eng, finished.ID, 100, "Juan", "García")
	require.Equal(t, 1, eng.ConfirmPledges(ctx, []int64{pledge.ID}).Succeeded)

	// The follow-up campaign has a single slot at this amount.
	next := &model.Campaign{
		Title:     "Autumn Campaign",
		Limits:    "100 1",
		TotalGoal: 10000,
		StartsAt:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:    time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateCampaign(ctx, next))
	clock.Advance(300 * 24 * time.Hour)

	link, err := eng.BuildRenewalLink(ctx, pledge.ID)
	require.NoError(t, err)

	// Someone else takes the slot before the link is used.
	taken := seedPledge(t, eng, next.ID, 100, "Ana", "López")
	require.Equal(t, 1, eng.ConfirmPledges(ctx, []int64{taken.ID}).Succeeded)

	_, err = eng.Renew(ctx, pledge.ID, link.Token, next.ID)
	require.Error(t, err)
	assert.True(t, common.IsUserError(err))

	// The old pledge is untouched: still confirmed, still unlinked, and the
	// renewal link stays usable for another campaign.
	old, err := store.GetPledge(ctx, pledge.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateConfirmed, old.State)
	assert.Nil(t, old.TransferredTo)

	// No half-created pledge in the target campaign.
	pledges, err := store.GetCampaignPledges(ctx, next.ID)
	require.NoError(t, err)
	assert.Len(t, pledges, 1)
}

func TestRenewRejections(t *testing.T) {
	eng, s := seedRenewalScenario(t)
	ctx := context.Background()

	link, err := eng.BuildRenewalLink(ctx, s.pledge.ID)
	require.NoError(t, err)

	t.Run("bad token", func(t *testing.T) {
		_, err := eng.Renew(ctx, s.pledge.ID, "not-the-token", s.next.ID)
		assert.ErrorIs(t, err, common.ErrInvalidRenewalToken)
	})

	t.Run("own campaign", func(t *testing.T) {
		_, err := eng.Renew(ctx, s.pledge.ID, link.Token, s.finished.ID)
		assert.ErrorIs(t, err, common.ErrNotRenewable)
	})

	t.Run("renewal consumes eligibility", func(t *testing.T) {
		_, err := eng.Renew(ctx, s.pledge.ID, link.Token, s.next.ID)
		require.NoError(t, err)

		// The old pledge is now returned, so the link cannot be replayed.
		_, err = eng.Renew(ctx, s.pledge.ID, link.Token, s.next.ID)
		assert.ErrorIs(t, err, common.ErrNotRenewable)
	})
}

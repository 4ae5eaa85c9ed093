// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/civitas-coop/microfund/internal/model"
)

// PledgeFilter defines filtering options for pledge queries.
type PledgeFilter struct {
	CampaignID  *int64
	State       *model.PledgeState
	DocumentID  string
	Amount      *int64
	Transferred *bool
	Limit       int
	Offset      int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Campaign operations
	CreateCampaign(ctx context.Context, campaign *model.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	GetCampaigns(ctx context.Context) ([]model.Campaign, error)
	GetActiveCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error)
	UpdateCampaignLimits(ctx context.Context, id int64, limits string) error
	SetBankCountedAmount(ctx context.Context, id, amount int64) error
	SetLastPhaseChange(ctx context.Context, id int64, at time.Time) error

	// Pledge operations
	CreatePledge(ctx context.Context, pledge *model.Pledge) error
	GetPledge(ctx context.Context, id int64) (*model.Pledge, error)
	GetPledges(ctx context.Context, filter PledgeFilter) ([]model.Pledge, error)
	GetCampaignPledges(ctx context.Context, campaignID int64) ([]model.Pledge, error)
	// UpdatePledgeState persists a lifecycle transition guarded by an
	// optimistic check on the previous state. It returns common.ErrNotFound
	// when the pledge is no longer in fromState.
	UpdatePledgeState(ctx context.Context, pledge *model.Pledge, fromState model.PledgeState) error
	SetTransferredTo(ctx context.Context, pledgeID, targetID int64) error

	// Reconciliation audit
	SaveReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error
	GetReconciliationRuns(ctx context.Context, campaignID int64) ([]model.ReconciliationRun, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx represents a database transaction over the same contract.
type Tx interface {
	Commit() error
	Rollback() error

	CreatePledge(ctx context.Context, pledge *model.Pledge) error
	GetCampaignPledges(ctx context.Context, campaignID int64) ([]model.Pledge, error)
	UpdatePledgeState(ctx context.Context, pledge *model.Pledge, fromState model.PledgeState) error
	SetTransferredTo(ctx context.Context, pledgeID, targetID int64) error
	SetLastPhaseChange(ctx context.Context, id int64, at time.Time) error
}

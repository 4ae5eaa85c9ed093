// Package storage provides the data persistence layer for the microfund application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civitas-coop/microfund/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidID       = errors.New("id must be positive")
	ErrInvalidState    = errors.New("invalid pledge state")
	ErrInvalidPledge   = errors.New("invalid pledge")
	ErrInvalidCampaign = errors.New("invalid campaign")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures an identifier is positive.
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

// validateCampaign validates a campaign before persisting it.
func validateCampaign(campaign *model.Campaign) error {
	if campaign == nil {
		return fmt.Errorf("%w: campaign", ErrNilParameter)
	}
	if strings.TrimSpace(campaign.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidCampaign)
	}
	if campaign.StartsAt.IsZero() || campaign.EndsAt.IsZero() {
		return fmt.Errorf("%w: missing date window", ErrInvalidCampaign)
	}
	if !campaign.EndsAt.After(campaign.StartsAt) {
		return fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidCampaign)
	}
	if _, err := campaign.Tiers(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCampaign, err)
	}
	return nil
}

// validatePledge validates a pledge before persisting it.
func validatePledge(pledge *model.Pledge) error {
	if pledge == nil {
		return fmt.Errorf("%w: pledge", ErrNilParameter)
	}
	if pledge.CampaignID <= 0 {
		return fmt.Errorf("%w: missing campaign id", ErrInvalidPledge)
	}
	if pledge.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPledge)
	}
	if pledge.RenewalSecret == "" {
		return fmt.Errorf("%w: missing renewal secret", ErrInvalidPledge)
	}
	if !pledge.HasUser() && pledge.Payer.FullName() == "" {
		return fmt.Errorf("%w: anonymous pledge needs payer name", ErrInvalidPledge)
	}
	return validateState(pledge.State)
}

// validateState validates a pledge lifecycle state.
func validateState(state model.PledgeState) error {
	switch state {
	case model.StatePending,
		model.StateConfirmed,
		model.StateCounted,
		model.StateDiscarded,
		model.StateReturned:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
}

package model

import (
	"time"

	"github.com/civitas-coop/microfund/internal/common"
)

// PledgeState is the explicit lifecycle state of a pledge. The audit
// timestamps record when each transition happened; the state field is the
// single source of truth for what is currently permitted.
type PledgeState string

// Pledge lifecycle states.
const (
	StatePending   PledgeState = "PENDING"
	StateConfirmed PledgeState = "CONFIRMED"
	StateCounted   PledgeState = "COUNTED"
	StateDiscarded PledgeState = "DISCARDED"
	StateReturned  PledgeState = "RETURNED"
)

// Payer holds the identity of a pledger without a registered user account.
// It is stored as a YAML snapshot alongside the pledge.
type Payer struct {
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Email      string `yaml:"email,omitempty"`
	Address    string `yaml:"address,omitempty"`
	PostalCode string `yaml:"postal_code,omitempty"`
	Town       string `yaml:"town,omitempty"`
	Province   string `yaml:"province,omitempty"`
	Country    string `yaml:"country,omitempty"`
}

// FullName returns "First Last" with whatever parts are present.
func (p Payer) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Pledge is a single payer's monetary commitment to a campaign.
type Pledge struct {
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
	CountedAt     *time.Time
	DiscardedAt   *time.Time
	ReturnedAt    *time.Time
	UserID        *int64
	TransferredTo *int64 // renewal link to a pledge in a later campaign
	State         PledgeState
	Payer         Payer
	DocumentID    string
	IBANAccount   string
	IBANBIC       string
	OptionCode    string
	RenewalSecret string // set at creation, used to key renewal link tokens
	ID            int64
	CampaignID    int64
	Amount        int64
}

// Confirm marks the pledge confirmed. Confirming an already confirmed or
// counted pledge is a no-op.
func (p *Pledge) Confirm(now time.Time) error {
	switch p.State {
	case StateConfirmed, StateCounted:
		return nil
	case StatePending:
		p.State = StateConfirmed
		p.ConfirmedAt = &now
		return nil
	default:
		return common.NewStateError(p.ID, "confirm", string(p.State))
	}
}

// Unconfirm clears a confirmation that has not been counted yet, putting the
// pledge back in the pending pool. Unconfirming a counted pledge is rejected:
// counted slots are only retired through phase accounting, never by clearing
// a confirmation.
func (p *Pledge) Unconfirm() error {
	switch p.State {
	case StatePending:
		return nil
	case StateConfirmed:
		p.State = StatePending
		p.ConfirmedAt = nil
		return nil
	default:
		return common.NewStateError(p.ID, "unconfirm", string(p.State))
	}
}

// Count marks a confirmed pledge as counted against the current phase's tier
// capacity. Counting an already counted pledge is a no-op. Only phase
// advancement calls this.
func (p *Pledge) Count(now time.Time) error {
	switch p.State {
	case StateCounted:
		return nil
	case StateConfirmed:
		p.State = StateCounted
		p.CountedAt = &now
		return nil
	default:
		return common.NewStateError(p.ID, "count", string(p.State))
	}
}

// Discard removes the pledge from all subsequent capacity and total
// calculations. Irreversible.
func (p *Pledge) Discard(now time.Time) error {
	switch p.State {
	case StatePending, StateConfirmed, StateCounted:
		p.State = StateDiscarded
		p.DiscardedAt = &now
		return nil
	default:
		return common.NewStateError(p.ID, "discard", string(p.State))
	}
}

// Return marks already committed money as given back to the payer, e.g.
// post-campaign refunds. Requires a confirmation on record.
func (p *Pledge) Return(now time.Time) error {
	switch p.State {
	case StateConfirmed, StateCounted:
		p.State = StateReturned
		p.ReturnedAt = &now
		return nil
	default:
		return common.NewStateError(p.ID, "return", string(p.State))
	}
}

// CanTransfer reports whether a renewal link may be attached. The transfer
// link is an overlay attribute, settable from any non-discarded state.
func (p *Pledge) CanTransfer() bool {
	return p.State != StateDiscarded
}

// HasUser reports whether the pledge belongs to a registered user rather than
// an anonymous payer snapshot.
func (p *Pledge) HasUser() bool {
	return p.UserID != nil
}

// CountsTowardCapacity reports whether the pledge occupies a tier slot.
// Returned pledges keep their counted slot; discarded ones release it.
func (p *Pledge) CountsTowardCapacity() bool {
	return p.CountedAt != nil && p.DiscardedAt == nil
}

// CountsTowardConfidence reports whether the pledge's amount contributes to
// the campaign's confidence figure (confirmed or counted, not discarded).
func (p *Pledge) CountsTowardConfidence() bool {
	return p.ConfirmedAt != nil && p.DiscardedAt == nil
}

// Package model defines the core domain models used throughout the application.
package model

import "time"

// Campaign represents a crowdfunding campaign with tiered funding phases.
type Campaign struct {
	StartsAt          time.Time
	EndsAt            time.Time
	CreatedAt         time.Time
	LastPhaseChangeAt *time.Time
	Title             string
	Limits            string // tier mini-language, see ParseTierConfig
	Subgoals          string // optional "<amount> <label>" lines
	ID                int64
	TotalGoal         int64
	BankCountedAmount int64 // externally reconciled bank balance, kept apart from pledge totals
}

// IsActive reports whether the campaign is currently inside its date window.
func (c *Campaign) IsActive(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// IsUpcoming reports whether the campaign has not started yet.
func (c *Campaign) IsUpcoming(now time.Time) bool {
	return now.Before(c.StartsAt)
}

// HasFinished reports whether the campaign's date window has passed.
func (c *Campaign) HasFinished(now time.Time) bool {
	return !now.Before(c.EndsAt)
}

// Tiers parses the campaign's limits configuration.
func (c *Campaign) Tiers() (TierConfig, error) {
	return ParseTierConfig(c.Limits)
}

// ParsedSubgoals parses the campaign's optional subgoal thresholds.
func (c *Campaign) ParsedSubgoals() ([]Subgoal, error) {
	if c.Subgoals == "" {
		return nil, nil
	}
	return ParseSubgoals(c.Subgoals)
}

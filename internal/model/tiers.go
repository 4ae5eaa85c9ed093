package model

import (
	"strconv"
	"strings"

	"github.com/civitas-coop/microfund/internal/common"
)

// Tier is a single amount bracket in a campaign's limits configuration.
type Tier struct {
	Amount int64
	Slots  int
}

// TierConfig is the ordered set of tiers a campaign sells slots in. Order is
// meaningful and preserved through parse/serialize round trips.
type TierConfig struct {
	tiers []Tier
}

// ParseTierConfig parses the tier mini-language: whitespace-separated
// "<amount> <slotCount>" pairs, e.g. "100 10 500 5 1000 2".
func ParseTierConfig(s string) (TierConfig, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return TierConfig{}, common.NewConfigError("empty configuration")
	}
	if len(tokens)%2 != 0 {
		return TierConfig{}, common.NewConfigError("odd token count %d, want amount/slot pairs", len(tokens))
	}

	tiers := make([]Tier, 0, len(tokens)/2)
	seen := make(map[int64]bool, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		amount, err := strconv.ParseInt(tokens[i], 10, 64)
		if err != nil {
			return TierConfig{}, common.NewConfigError("invalid amount %q", tokens[i])
		}
		slots, err := strconv.Atoi(tokens[i+1])
		if err != nil {
			return TierConfig{}, common.NewConfigError("invalid slot count %q", tokens[i+1])
		}
		if amount <= 0 {
			return TierConfig{}, common.NewConfigError("amount must be positive, got %d", amount)
		}
		if slots <= 0 {
			return TierConfig{}, common.NewConfigError("slot count must be positive, got %d", slots)
		}
		if seen[amount] {
			return TierConfig{}, common.NewConfigError("duplicate tier amount %d", amount)
		}
		seen[amount] = true
		tiers = append(tiers, Tier{Amount: amount, Slots: slots})
	}

	return TierConfig{tiers: tiers}, nil
}

// String re-serializes the configuration to the same token format it was
// parsed from.
func (c TierConfig) String() string {
	parts := make([]string, 0, len(c.tiers)*2)
	for _, t := range c.tiers {
		parts = append(parts, strconv.FormatInt(t.Amount, 10), strconv.Itoa(t.Slots))
	}
	return strings.Join(parts, " ")
}

// Tiers returns the tiers in configuration order.
func (c TierConfig) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Len returns the number of configured tiers.
func (c TierConfig) Len() int {
	return len(c.tiers)
}

// Slots returns the slot count configured for the given amount, or 0 when the
// amount is not a configured tier.
func (c TierConfig) Slots(amount int64) int {
	for _, t := range c.tiers {
		if t.Amount == amount {
			return t.Slots
		}
	}
	return 0
}

// HasAmount reports whether amount is one of the configured tier amounts.
func (c TierConfig) HasAmount(amount int64) bool {
	return c.Slots(amount) > 0
}

// PhaseCapacityAmount returns the total amount the current phase can raise if
// every slot is sold.
func (c TierConfig) PhaseCapacityAmount() int64 {
	var total int64
	for _, t := range c.tiers {
		total += t.Amount * int64(t.Slots)
	}
	return total
}

// ValidateTierEdit checks whether replacing old with updated is permitted.
// Callers without elevated privilege may redistribute slots across tiers but
// must keep the phase total constant.
func ValidateTierEdit(old, updated TierConfig, elevated bool) error {
	if elevated {
		return nil
	}
	if old.PhaseCapacityAmount() != updated.PhaseCapacityAmount() {
		return common.NewConfigError("phase total must remain constant")
	}
	return nil
}

// Subgoal is an optional intermediate campaign threshold with a label.
type Subgoal struct {
	Amount int64
	Label  string
}

// ParseSubgoals parses one "<amount> <label>" subgoal per line, preserving
// order. Blank lines are skipped.
func ParseSubgoals(s string) ([]Subgoal, error) {
	var subgoals []Subgoal
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		amount, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || amount <= 0 {
			return nil, common.NewConfigError("invalid subgoal amount %q", fields[0])
		}
		label := ""
		if len(fields) > 1 {
			label = strings.TrimSpace(fields[1])
		}
		subgoals = append(subgoals, Subgoal{Amount: amount, Label: label})
	}
	return subgoals, nil
}

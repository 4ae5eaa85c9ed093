package model

// TierStatus is the occupancy of one tier in the current phase.
type TierStatus struct {
	Amount    int64
	Slots     int
	Counted   int
	Confirmed int // confirmed, waiting to be counted
	Remaining int
}

// CampaignStatus consolidates every capacity and percentage figure for a
// campaign. It is produced by the limit tracker and nowhere else.
type CampaignStatus struct {
	Tiers                 []TierStatus
	CampaignID            int64
	TotalGoal             int64
	PhaseCapacityAmount   int64
	CreatedAmount         int64
	ConfirmedAmount       int64
	CountedAmount         int64
	DiscardedAmount       int64
	BankCountedAmount     int64
	CreatedCount          int
	ConfirmedCount        int
	CountedCount          int
	DiscardedCount        int
	UniquePayers          int
	UniqueConfirmedPayers int
	ConfidencePercent     float64 // confirmed-or-counted amounts over total goal
	CurrentPercent        float64 // counted amounts over total goal
	PhaseFull             bool    // zero remaining slots across all tiers
}

package model

import "time"

// BankMovement is a single parsed bank statement line handed to the matcher.
// Parsing the raw bank file format is an upstream concern; the matcher only
// ever sees fully decoded movements.
type BankMovement struct {
	Date    time.Time
	Concept string // free-text concept line as it appears on the statement
	Amount  int64
}

// MatchConfidence classifies a reconciliation result.
type MatchConfidence string

// Match confidence levels.
const (
	// MatchSure means both the payer name and the pledge id were found in the
	// concept text for a single amount-compatible pledge.
	MatchSure MatchConfidence = "SURE"
	// MatchDoubtful means the amount matched but the evidence was partial or
	// ambiguous; the candidates are attached for operator review.
	MatchDoubtful MatchConfidence = "DOUBTFUL"
	// MatchUnmatched means no amount-compatible pending pledge exists.
	MatchUnmatched MatchConfidence = "UNMATCHED"
)

// MatchBasis records which evidence supported a match.
type MatchBasis struct {
	IDFound   bool
	NameFound bool
}

// MatchResult is the classification of one bank movement. Every input
// movement yields exactly one result.
type MatchResult struct {
	Movement   BankMovement
	Confidence MatchConfidence
	Basis      MatchBasis
	PledgeID   *int64  // set for Sure matches
	Candidates []int64 // attached to Doubtful results for manual resolution
}

// ReconciliationRun is the audit record of one bank-statement processing run.
type ReconciliationRun struct {
	StartedAt  time.Time
	ID         string // uuid
	CampaignID int64
	Movements  int
	Sure       int
	Doubtful   int
	Unmatched  int
}

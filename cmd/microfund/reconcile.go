package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/civitas-coop/microfund/internal/model"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// movementRecord is one statement line as exported by the bank tooling.
// Amounts arrive as decimal strings ("100.00"); tiers are whole currency
// units, so fractional amounts are rejected up front.
type movementRecord struct {
	Date    string `json:"date"`
	Concept string `json:"concept"`
	Amount  string `json:"amount"`
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <campaign-id> <movements-file>",
		Short: "Match a bank statement against pending pledges",
		Long: `Read a JSON array of bank movements and classify each one against the
campaign's pending pledges. A movement whose concept carries both the
payer's name and the pledge id is a sure match and confirms the pledge;
partial or ambiguous evidence is reported as doubtful with the
candidate pledges attached.

The statement file either parses completely or the run is aborted; no
movements from a partially valid file are processed.`,
		Args: cobra.ExactArgs(2),
		RunE: runReconcile,
	}

	cmd.Flags().Bool("quiet", false, "Suppress per-movement output")

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	campaignID, err := parseID(args[0], "campaign id")
	if err != nil {
		return err
	}
	quiet, _ := cmd.Flags().GetBool("quiet")

	movements, err := loadMovements(args[1])
	if err != nil {
		return err
	}

	eng, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := eng.ProcessBankStatement(cmd.Context(), campaignID, movements)
	if err != nil {
		return err
	}

	var sure, doubtful, unmatched int
	for _, result := range results {
		switch result.Confidence {
		case model.MatchSure:
			sure++
			if !quiet {
				fmt.Printf("SURE       %s  -> pledge %d confirmed\n",
					result.Movement.Concept, *result.PledgeID)
			}
		case model.MatchDoubtful:
			doubtful++
			if !quiet {
				fmt.Printf("DOUBTFUL   %s  candidates %v\n",
					result.Movement.Concept, result.Candidates)
			}
		case model.MatchUnmatched:
			unmatched++
			if !quiet {
				fmt.Printf("UNMATCHED  %s\n", result.Movement.Concept)
			}
		}
	}

	fmt.Printf("%d movements: %d sure, %d doubtful, %d unmatched\n",
		len(results), sure, doubtful, unmatched)
	return nil
}

// loadMovements decodes and validates the whole statement file before any
// matching happens.
func loadMovements(path string) ([]model.BankMovement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read movements file: %w", err)
	}

	var records []movementRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse movements file: %w", err)
	}

	bar := progressbar.NewOptions(len(records),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Validating movements"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	movements := make([]model.BankMovement, 0, len(records))
	for i, record := range records {
		date, err := time.Parse("2006-01-02", record.Date)
		if err != nil {
			return nil, fmt.Errorf("movement %d: invalid date %q: %w", i+1, record.Date, err)
		}

		amount, err := decimal.NewFromString(record.Amount)
		if err != nil {
			return nil, fmt.Errorf("movement %d: invalid amount %q: %w", i+1, record.Amount, err)
		}
		if !amount.IsInteger() {
			return nil, fmt.Errorf("movement %d: amount %s has a fractional part", i+1, amount)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("movement %d: amount %s is not positive", i+1, amount)
		}

		movements = append(movements, model.BankMovement{
			Date:    date,
			Concept: record.Concept,
			Amount:  amount.IntPart(),
		})
		_ = bar.Add(1)
	}
	return movements, nil
}

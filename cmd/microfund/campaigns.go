package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/civitas-coop/microfund/internal/engine"
	"github.com/civitas-coop/microfund/internal/model"

	"github.com/spf13/cobra"
)

func campaignsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Inspect crowdfunding campaigns",
	}

	cmd.AddCommand(campaignsCreateCmd())
	cmd.AddCommand(campaignsListCmd())
	cmd.AddCommand(campaignsShowCmd())
	cmd.AddCommand(campaignsLimitsCmd())
	cmd.AddCommand(campaignsBankCmd())

	return cmd
}

func campaignsBankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bank <campaign-id> <amount>",
		Short: "Record the externally reconciled bank balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID(args[0], "campaign id")
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount < 0 {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.SetBankCountedAmount(cmd.Context(), campaignID, amount); err != nil {
				return err
			}
			fmt.Printf("campaign %d bank counted amount set to %d\n", campaignID, amount)
			return nil
		},
	}
}

func campaignsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		RunE: func(cmd *cobra.Command, _ []string) error {
			title, _ := cmd.Flags().GetString("title")
			limits, _ := cmd.Flags().GetString("limits")
			goal, _ := cmd.Flags().GetInt64("goal")
			startsStr, _ := cmd.Flags().GetString("starts")
			endsStr, _ := cmd.Flags().GetString("ends")
			subgoals, _ := cmd.Flags().GetString("subgoals")

			starts, err := time.Parse("2006-01-02", startsStr)
			if err != nil {
				return fmt.Errorf("invalid start date %q: %w", startsStr, err)
			}
			ends, err := time.Parse("2006-01-02", endsStr)
			if err != nil {
				return fmt.Errorf("invalid end date %q: %w", endsStr, err)
			}

			// Fail on a bad tier configuration before touching the database.
			if _, err := model.ParseTierConfig(limits); err != nil {
				return err
			}
			if subgoals != "" {
				if _, err := model.ParseSubgoals(subgoals); err != nil {
					return err
				}
			}

			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			campaign := &model.Campaign{
				Title:     title,
				Limits:    limits,
				Subgoals:  subgoals,
				TotalGoal: goal,
				StartsAt:  starts,
				EndsAt:    ends,
				CreatedAt: time.Now().UTC(),
			}
			if err := store.CreateCampaign(cmd.Context(), campaign); err != nil {
				return err
			}
			fmt.Printf("campaign %d created\n", campaign.ID)
			return nil
		},
	}

	cmd.Flags().String("title", "", "Campaign title")
	cmd.Flags().String("limits", "", `Tier limits, e.g. "100 10 500 5 1000 2"`)
	cmd.Flags().Int64("goal", 0, "Total fundraising goal")
	cmd.Flags().String("starts", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().String("ends", "", "End date (YYYY-MM-DD)")
	cmd.Flags().String("subgoals", "", `Optional subgoal lines, "<amount> <label>" per line`)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("limits")
	_ = cmd.MarkFlagRequired("goal")
	_ = cmd.MarkFlagRequired("starts")
	_ = cmd.MarkFlagRequired("ends")

	return cmd
}

func campaignsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List campaigns with their progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()
			eng := engine.New(store)

			ctx := cmd.Context()
			campaigns, err := store.GetCampaigns(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tWINDOW\tGOAL\tCONFIDENCE\tCURRENT\tPHASE")
			for _, c := range campaigns {
				status, err := eng.CampaignStatus(ctx, c.ID)
				if err != nil {
					return err
				}
				phase := "open"
				if status.PhaseFull {
					phase = "full"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.1f%%\t%.1f%%\t%s\n",
					c.ID,
					c.Title,
					campaignWindow(c.StartsAt, c.EndsAt),
					c.TotalGoal,
					status.ConfidencePercent,
					status.CurrentPercent,
					phase,
				)
			}
			return w.Flush()
		},
	}
}

func campaignsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show a campaign's tier occupancy and totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID(args[0], "campaign id")
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := eng.CampaignStatus(cmd.Context(), campaignID)
			if err != nil {
				return err
			}

			fmt.Printf("Campaign %d\n", status.CampaignID)
			fmt.Printf("  goal: %d  phase capacity: %d  bank counted: %d\n",
				status.TotalGoal, status.PhaseCapacityAmount, status.BankCountedAmount)
			fmt.Printf("  pledges: %d created / %d confirmed / %d counted / %d discarded\n",
				status.CreatedCount, status.ConfirmedCount, status.CountedCount, status.DiscardedCount)
			fmt.Printf("  amounts: %d created / %d confirmed / %d counted / %d discarded\n",
				status.CreatedAmount, status.ConfirmedAmount, status.CountedAmount, status.DiscardedAmount)
			fmt.Printf("  payers: %d unique (%d confirmed)\n",
				status.UniquePayers, status.UniqueConfirmedPayers)
			fmt.Printf("  confidence: %.1f%%  current: %.1f%%\n",
				status.ConfidencePercent, status.CurrentPercent)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  TIER\tSLOTS\tCOUNTED\tWAITING\tREMAINING")
			for _, tier := range status.Tiers {
				fmt.Fprintf(w, "  %d\t%d\t%d\t%d\t%d\n",
					tier.Amount, tier.Slots, tier.Counted, tier.Confirmed, tier.Remaining)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if status.PhaseFull {
				fmt.Println("  phase is FULL; advance it to retire the remaining capacity")
			}
			return nil
		},
	}
}

func campaignsLimitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits <campaign-id> <limits>",
		Short: "Replace a campaign's tier limits",
		Long: `Replace a campaign's tier configuration, given as whitespace-separated
"<amount> <slotCount>" pairs, e.g. "100 10 500 5 1000 2".

Without --elevated the new configuration must keep the phase total
(sum of amount times slots) constant.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID(args[0], "campaign id")
			if err != nil {
				return err
			}
			elevated, _ := cmd.Flags().GetBool("elevated")

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.UpdateTierLimits(cmd.Context(), campaignID, args[1], elevated); err != nil {
				return err
			}
			fmt.Printf("campaign %d limits updated\n", campaignID)
			return nil
		},
	}

	cmd.Flags().Bool("elevated", false, "Allow changing the phase total")
	return cmd
}

// campaignWindow formats a campaign date range for display.
func campaignWindow(start, end time.Time) string {
	return start.Format("2006-01-02") + " – " + end.Format("2006-01-02")
}

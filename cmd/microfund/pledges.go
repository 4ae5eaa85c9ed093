package main

import (
	"errors"
	"fmt"

	"github.com/civitas-coop/microfund/internal/engine"
	"github.com/civitas-coop/microfund/internal/model"

	"github.com/spf13/cobra"
)

func pledgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pledges",
		Short: "Manage pledge lifecycle",
	}

	cmd.AddCommand(pledgesCreateCmd())
	cmd.AddCommand(pledgesBatchCmd("confirm", "Confirm pledges (payment verified)",
		func(e *engine.Engine, cmd *cobra.Command, ids []int64) engine.BatchResult {
			return e.ConfirmPledges(cmd.Context(), ids)
		}))
	cmd.AddCommand(pledgesBatchCmd("unconfirm", "Revert confirmations that have not been counted",
		func(e *engine.Engine, cmd *cobra.Command, ids []int64) engine.BatchResult {
			return e.UnconfirmPledges(cmd.Context(), ids)
		}))
	cmd.AddCommand(pledgesBatchCmd("discard", "Permanently exclude pledges from all totals",
		func(e *engine.Engine, cmd *cobra.Command, ids []int64) engine.BatchResult {
			return e.DiscardPledges(cmd.Context(), ids)
		}))
	cmd.AddCommand(pledgesBatchCmd("return", "Mark committed pledges as refunded",
		func(e *engine.Engine, cmd *cobra.Command, ids []int64) engine.BatchResult {
			return e.ReturnPledges(cmd.Context(), ids)
		}))

	return cmd
}

func pledgesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Subscribe a new pledge to a campaign",
		RunE: func(cmd *cobra.Command, _ []string) error {
			campaignID, _ := cmd.Flags().GetInt64("campaign")
			amount, _ := cmd.Flags().GetInt64("amount")
			userID, _ := cmd.Flags().GetInt64("user")
			name, _ := cmd.Flags().GetString("name")
			surname, _ := cmd.Flags().GetString("surname")
			documentID, _ := cmd.Flags().GetString("document")
			iban, _ := cmd.Flags().GetString("iban")
			bic, _ := cmd.Flags().GetString("bic")

			req := engine.NewPledgeRequest{
				CampaignID:  campaignID,
				Amount:      amount,
				DocumentID:  documentID,
				IBANAccount: iban,
				IBANBIC:     bic,
				Payer: model.Payer{
					FirstName: name,
					LastName:  surname,
				},
			}
			if userID > 0 {
				req.UserID = &userID
			}

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			pledge, err := eng.CreatePledge(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("pledge %d created (campaign %d, amount %d)\n",
				pledge.ID, pledge.CampaignID, pledge.Amount)
			return nil
		},
	}

	cmd.Flags().Int64("campaign", 0, "Campaign to pledge into")
	cmd.Flags().Int64("amount", 0, "Pledge amount (must match a tier)")
	cmd.Flags().Int64("user", 0, "Registered user id (omit for anonymous pledges)")
	cmd.Flags().String("name", "", "Payer first name (anonymous pledges)")
	cmd.Flags().String("surname", "", "Payer surname (anonymous pledges)")
	cmd.Flags().String("document", "", "Payer document id")
	cmd.Flags().String("iban", "", "Payer IBAN account")
	cmd.Flags().String("bic", "", "Payer IBAN BIC")
	_ = cmd.MarkFlagRequired("campaign")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

// pledgesBatchCmd builds one lifecycle subcommand; they all share the same
// id-list argument shape and per-item reporting.
func pledgesBatchCmd(op, short string, run func(*engine.Engine, *cobra.Command, []int64) engine.BatchResult) *cobra.Command {
	return &cobra.Command{
		Use:   op + " <pledge-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "pledge id")
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			result := run(eng, cmd, ids)
			for _, item := range result.Results {
				if item.Err != nil {
					fmt.Printf("pledge %d: skipped: %v\n", item.PledgeID, item.Err)
				} else {
					fmt.Printf("pledge %d: %sed\n", item.PledgeID, op)
				}
			}
			fmt.Printf("%d succeeded, %d skipped\n", result.Succeeded, result.Skipped)

			if result.Succeeded == 0 && result.Skipped > 0 {
				return errors.New("no pledges were updated")
			}
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func renewalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "renewal",
		Short: "Renewal links for finished campaign pledges",
	}

	cmd.AddCommand(renewalLinkCmd())
	cmd.AddCommand(renewalVerifyCmd())
	cmd.AddCommand(renewalRenewCmd())

	return cmd
}

func renewalLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <pledge-id>",
		Short: "Derive the renewal token for an eligible pledge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pledgeID, err := parseID(args[0], "pledge id")
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			link, err := eng.BuildRenewalLink(cmd.Context(), pledgeID)
			if err != nil {
				return err
			}
			fmt.Printf("pledge %d token %s\n", link.PledgeID, link.Token)
			return nil
		},
	}
}

func renewalVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <pledge-id> <token>",
		Short: "Check a renewal token against its pledge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pledgeID, err := parseID(args[0], "pledge id")
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			pledge, err := eng.VerifyRenewalLink(cmd.Context(), pledgeID, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("token valid for pledge %d (campaign %d, amount %d, state %s)\n",
				pledge.ID, pledge.CampaignID, pledge.Amount, pledge.State)
			return nil
		},
	}
}

func renewalRenewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew <pledge-id> <token> <target-campaign-id>",
		Short: "Re-pledge a finished campaign commitment into an open campaign",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pledgeID, err := parseID(args[0], "pledge id")
			if err != nil {
				return err
			}
			targetID, err := parseID(args[2], "campaign id")
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			renewed, err := eng.Renew(cmd.Context(), pledgeID, args[1], targetID)
			if err != nil {
				return err
			}
			fmt.Printf("pledge %d renewed as pledge %d in campaign %d\n",
				pledgeID, renewed.ID, renewed.CampaignID)
			return nil
		},
	}
}

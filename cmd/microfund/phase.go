package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func phaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Manage campaign phases",
	}

	cmd.AddCommand(phaseAdvanceCmd())

	return cmd
}

func phaseAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <campaign-id>",
		Short: "Count confirmed pledges and retire the current phase",
		Long: `Count every confirmed pledge the current tier capacity can absorb,
oldest confirmations first, and stamp the campaign's phase change
timestamp. Confirmations beyond a tier's remaining slots stay
confirmed and are reported.

Running it again without new confirmations is a no-op.`,
		Args: cobra.ExactArgs(1),
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

			result, err := eng.AdvancePhase(cmd.Context(), campaignID)
			if err != nil {
				return err
			}

			for _, item := range result.Results {
				if item.Err != nil {
					fmt.Printf("pledge %d: held back: %v\n", item.PledgeID, item.Err)
				}
			}
			if result.Succeeded == 0 {
				fmt.Println("nothing to count; campaign unchanged")
				return nil
			}
			fmt.Printf("counted %d pledges (%d held back)\n", result.Succeeded, result.Skipped)
			return nil
		},
	}
}

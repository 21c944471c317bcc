package main

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats <campaign-id>",
	Short:   "Show a campaign's funnel counters",
	GroupID: "campaigns",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := api.CampaignStats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(stats)
			return nil
		}
		printStats(stats)
		return nil
	},
}

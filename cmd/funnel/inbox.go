package main

import (
	"github.com/spf13/cobra"
)

var inboxCmd = &cobra.Command{
	Use:     "inbox",
	Short:   "Browse the shared conversation inbox",
	GroupID: "inbox",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conversations, err := api.ListConversations(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(conversations)
			return nil
		}
		printConversationTable(conversations)
		return nil
	},
}

var inboxMessagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "Show one conversation's message history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := api.GetMessages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(msgs)
			return nil
		}
		printMessages(msgs)
		return nil
	},
}

var inboxRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent messages across all conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		msgs, err := api.RecentMessages(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(msgs)
			return nil
		}
		printMessages(msgs)
		return nil
	},
}

func init() {
	inboxRecentCmd.Flags().Int("limit", 50, "maximum messages to return")
	inboxCmd.AddCommand(inboxMessagesCmd, inboxRecentCmd)
}

package main

import (
	"fmt"

	"github.com/groblegark/funnel/internal/client"
	"github.com/groblegark/funnel/internal/model"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:     "send <contact-id>",
	Short:   "Send a one-off message outside the funnel graph",
	GroupID: "inbox",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		subject, _ := cmd.Flags().GetString("subject")
		body, _ := cmd.Flags().GetString("body")
		audioURL, _ := cmd.Flags().GetString("audio-url")

		resp, err := api.SendMessage(cmd.Context(), args[0], &client.SendRequest{
			Channel:  model.Channel(channel),
			Subject:  subject,
			Body:     body,
			AudioURL: audioURL,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		outcome := "not delivered"
		if resp.Result.Delivered {
			outcome = "delivered"
		}
		fmt.Printf("Message %s via %s: %s\n", resp.Message.ID, resp.Result.Provider, outcome)
		return nil
	},
}

func init() {
	sendCmd.Flags().String("channel", "sms", "channel (sms, email, voicemail)")
	sendCmd.Flags().String("subject", "", "email subject")
	sendCmd.Flags().String("body", "", "message body (merge tags allowed)")
	sendCmd.Flags().String("audio-url", "", "recording URL for voicemail drops")
}

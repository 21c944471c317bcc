package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/groblegark/funnel/internal/model"
	"github.com/spf13/cobra"
)

var campaignsCmd = &cobra.Command{
	Use:     "campaigns",
	Short:   "Manage campaigns and their funnel graphs",
	GroupID: "campaigns",
}

var campaignsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerName, _ := cmd.Flags().GetString("owner")
		ownerEmail, _ := cmd.Flags().GetString("owner-email")
		ownerPhone, _ := cmd.Flags().GetString("owner-phone")
		eventType, _ := cmd.Flags().GetString("type")
		eventDate, _ := cmd.Flags().GetString("date")
		city, _ := cmd.Flags().GetString("city")
		state, _ := cmd.Flags().GetString("state")
		timezone, _ := cmd.Flags().GetString("timezone")
		templateID, _ := cmd.Flags().GetString("template")

		date, err := time.Parse("2006-01-02", eventDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", eventDate)
		}

		campaign, err := api.CreateCampaign(cmd.Context(), &model.Campaign{
			Name:       args[0],
			OwnerName:  ownerName,
			OwnerEmail: ownerEmail,
			OwnerPhone: ownerPhone,
			EventType:  eventType,
			EventDate:  date,
			City:       city,
			State:      state,
			Timezone:   timezone,
			TemplateID: templateID,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(campaign)
			return nil
		}
		printCampaign(campaign)
		return nil
	},
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		campaigns, err := api.ListCampaigns(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(campaigns)
			return nil
		}
		printCampaignTable(campaigns)
		return nil
	},
}

var campaignsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		campaign, err := api.GetCampaign(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(campaign)
			return nil
		}
		printCampaign(campaign)
		return nil
	},
}

var campaignsSetCmd = &cobra.Command{
	Use:   "set <id> <key=value>...",
	Short: "Update campaign fields",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := parsePatch(args[1:])
		if err != nil {
			return err
		}
		campaign, err := api.UpdateCampaign(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(campaign)
			return nil
		}
		printCampaign(campaign)
		return nil
	},
}

var campaignsGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Pull or push a campaign's funnel graph",
}

var campaignsGraphPullCmd = &cobra.Command{
	Use:   "pull <campaign-id>",
	Short: "Print the campaign's graph document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := api.GetGraph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJSON(doc)
		return nil
	},
}

var campaignsGraphPushCmd = &cobra.Command{
	Use:   "push <campaign-id> <graph.json>",
	Short: "Validate and save a graph document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var doc model.GraphDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", args[1], err)
		}
		resp, err := api.PutGraph(cmd.Context(), args[0], doc)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("Saved graph version %s (%d nodes, %d edges)\n", resp.Version, resp.Nodes, resp.Edges)
		for _, warning := range resp.Warnings {
			fmt.Printf("warning: %s\n", warning)
		}
		return nil
	},
}

// parsePatch converts key=value pairs into a JSON-ready patch map. Values
// that parse as JSON are embedded as-is; everything else becomes a string.
func parsePatch(pairs []string) (map[string]any, error) {
	patch := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", p)
		}
		var raw any
		if err := json.Unmarshal([]byte(v), &raw); err == nil {
			patch[k] = raw
		} else {
			patch[k] = v
		}
	}
	return patch, nil
}

func init() {
	campaignsCreateCmd.Flags().String("owner", "", "event owner name")
	campaignsCreateCmd.Flags().String("owner-email", "", "event owner email")
	campaignsCreateCmd.Flags().String("owner-phone", "", "caller ID for outbound SMS and voicemail")
	campaignsCreateCmd.Flags().String("type", "dinner", "event type")
	campaignsCreateCmd.Flags().String("date", "", "event date (YYYY-MM-DD)")
	campaignsCreateCmd.Flags().String("city", "", "event city")
	campaignsCreateCmd.Flags().String("state", "", "event state")
	campaignsCreateCmd.Flags().String("timezone", "", "IANA timezone for at_local conditions")
	campaignsCreateCmd.Flags().String("template", "", "clone the graph from this template ID")
	_ = campaignsCreateCmd.MarkFlagRequired("owner")
	_ = campaignsCreateCmd.MarkFlagRequired("owner-email")
	_ = campaignsCreateCmd.MarkFlagRequired("date")

	campaignsGraphCmd.AddCommand(campaignsGraphPullCmd, campaignsGraphPushCmd)
	campaignsCmd.AddCommand(
		campaignsCreateCmd,
		campaignsListCmd,
		campaignsShowCmd,
		campaignsSetCmd,
		campaignsGraphCmd,
	)
}

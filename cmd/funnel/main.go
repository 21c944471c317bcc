package main

import (
	"fmt"
	"os"

	"github.com/groblegark/funnel/internal/client"
	"github.com/groblegark/funnel/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool
	noColor    bool

	api client.FunnelClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("FUNNEL_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	return os.Getenv("FUNNEL_AUTH_TOKEN")
}

var rootCmd = &cobra.Command{
	Use:   "funnel <command>",
	Short: "CLI client for the funnel automation service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		api = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if api != nil {
			api.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "funnel server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "campaigns", Title: "Campaigns:"},
		&cobra.Group{ID: "contacts", Title: "Contacts:"},
		&cobra.Group{ID: "inbox", Title: "Inbox:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	rootCmd.AddCommand(
		campaignsCmd,
		contactsCmd,
		inboxCmd,
		sendCmd,
		statsCmd,
		healthCmd,
		serveCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

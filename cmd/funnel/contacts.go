package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/groblegark/funnel/internal/model"
	"github.com/spf13/cobra"
)

var contactsCmd = &cobra.Command{
	Use:     "contacts",
	Short:   "Manage contacts and their automation",
	GroupID: "contacts",
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <campaign-id> <name>",
	Short: "Add a contact to a campaign",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")
		company, _ := cmd.Flags().GetString("company")
		enroll, _ := cmd.Flags().GetBool("enroll")

		contact, err := api.CreateContact(cmd.Context(), args[0], &model.Contact{
			Name:    args[1],
			Email:   email,
			Phone:   phone,
			Company: company,
		}, enroll)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contact)
			return nil
		}
		printContact(contact)
		return nil
	},
}

var contactsImportCmd = &cobra.Command{
	Use:   "import <campaign-id> <contacts.json>",
	Short: "Bulk import contacts from a JSON array",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var contacts []model.Contact
		if err := json.Unmarshal(data, &contacts); err != nil {
			return fmt.Errorf("parsing %s: %w", args[1], err)
		}
		resp, err := api.BulkCreateContacts(cmd.Context(), args[0], contacts)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("Imported %d contacts, %d rejected\n", len(resp.Created), len(resp.Failed))
		for _, f := range resp.Failed {
			fmt.Printf("  row %d: %s\n", f.Index, f.Error)
		}
		return nil
	},
}

var contactsListCmd = &cobra.Command{
	Use:   "list <campaign-id>",
	Short: "List a campaign's contacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, err := api.ListContacts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contacts)
			return nil
		}
		printContactTable(contacts)
		return nil
	},
}

var contactsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contact, err := api.GetContact(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contact)
			return nil
		}
		printContact(contact)
		return nil
	},
}

var contactsSetCmd = &cobra.Command{
	Use:   "set <id> <key=value>...",
	Short: "Update contact profile fields",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := parsePatch(args[1:])
		if err != nil {
			return err
		}
		contact, err := api.UpdateContact(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contact)
			return nil
		}
		printContact(contact)
		return nil
	},
}

var contactsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.DeleteContact(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var contactsEnrollCmd = &cobra.Command{
	Use:   "enroll <id>",
	Short: "Enroll a contact at the campaign graph's entry node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contact, err := api.EnrollContact(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contact)
			return nil
		}
		printContact(contact)
		return nil
	},
}

var contactsResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Clear interception and place the contact at a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeKey, _ := cmd.Flags().GetString("at")
		contact, err := api.ResumeContact(cmd.Context(), args[0], nodeKey)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contact)
			return nil
		}
		printContact(contact)
		return nil
	},
}

var contactsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Stop a contact's automation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contact, err := api.CancelContact(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contact)
			return nil
		}
		printContact(contact)
		return nil
	},
}

var contactsEventCmd = &cobra.Command{
	Use:   "event <id> <name>",
	Short: "Record a named event (rsvp_received, agreement_signed, ...)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		contact, err := api.RecordContactEvent(cmd.Context(), args[0], args[1], model.Status(status))
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(contact)
			return nil
		}
		printContact(contact)
		return nil
	},
}

func init() {
	contactsAddCmd.Flags().String("email", "", "contact email")
	contactsAddCmd.Flags().String("phone", "", "contact phone")
	contactsAddCmd.Flags().String("company", "", "contact company")
	contactsAddCmd.Flags().Bool("enroll", false, "enroll into the campaign graph immediately")

	contactsResumeCmd.Flags().String("at", "", "node key to resume at")
	_ = contactsResumeCmd.MarkFlagRequired("at")

	contactsEventCmd.Flags().String("status", "", "also set the funnel status")

	contactsCmd.AddCommand(
		contactsAddCmd,
		contactsImportCmd,
		contactsListCmd,
		contactsShowCmd,
		contactsSetCmd,
		contactsDeleteCmd,
		contactsEnrollCmd,
		contactsResumeCmd,
		contactsCancelCmd,
		contactsEventCmd,
	)
}

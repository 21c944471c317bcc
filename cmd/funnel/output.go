package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/groblegark/funnel/internal/client"
	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printCampaign(c *model.Campaign) {
	fmt.Printf("ID:         %s\n", ui.RenderAccent(c.ID))
	fmt.Printf("Name:       %s\n", c.Name)
	fmt.Printf("Owner:      %s <%s>\n", c.OwnerName, c.OwnerEmail)
	fmt.Printf("Event:      %s, %s\n", c.EventType, c.EventDate.Format("2006-01-02"))
	if c.City != "" {
		fmt.Printf("Location:   %s, %s\n", c.City, c.State)
	}
	if c.Timezone != "" {
		fmt.Printf("Timezone:   %s\n", c.Timezone)
	}
	fmt.Printf("Status:     %s\n", c.Status)
	if !c.CreatedAt.IsZero() {
		fmt.Printf("Created At: %s\n", ui.RenderMuted(c.CreatedAt.Format("2006-01-02 15:04:05")))
	}
}

func printCampaignTable(campaigns []*model.Campaign) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tEVENT\tDATE\tNAME")
	for _, c := range campaigns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.EventType, c.EventDate.Format("2006-01-02"), c.Name)
	}
	w.Flush()
	fmt.Printf("\n%d campaigns\n", len(campaigns))
}

func printContact(c *model.Contact) {
	fmt.Printf("ID:          %s\n", ui.RenderAccent(c.ID))
	fmt.Printf("Campaign:    %s\n", c.CampaignID)
	fmt.Printf("Name:        %s\n", c.Name)
	if c.Company != "" {
		fmt.Printf("Company:     %s\n", c.Company)
	}
	if c.Email != "" {
		fmt.Printf("Email:       %s\n", c.Email)
	}
	if c.Phone != "" {
		fmt.Printf("Phone:       %s\n", c.Phone)
	}
	fmt.Printf("Status:      %s\n", ui.RenderStatus(c.Status))
	fmt.Printf("Automation:  %s\n", ui.RenderAutomation(c.Automation))
	if c.CurrentNodeKey != "" {
		fmt.Printf("At Node:     %s\n", c.CurrentNodeKey)
	}
	if c.Intercepted {
		fmt.Printf("Intercepted: yes (replied; waiting on a human)\n")
	}
	if c.StageKey != "" {
		fmt.Printf("Stage:       %s\n", c.StageKey)
	}
}

func printContactTable(contacts []*model.Contact) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tAUTOMATION\tNODE\tPHONE")
	for _, c := range contacts {
		node := c.CurrentNodeKey
		if node == "" {
			node = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, ui.RenderStatus(c.Status), ui.RenderAutomation(c.Automation), node, c.Phone)
	}
	w.Flush()
	fmt.Printf("\n%d contacts\n", len(contacts))
}

func printConversationTable(conversations []*model.Conversation) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHANNEL\tCONTACT\tMESSAGES\tLAST")
	for _, conv := range conversations {
		name := conv.ContactID
		if conv.Contact != nil {
			name = conv.Contact.Name
		}
		last := ""
		if n := len(conv.Messages); n > 0 {
			last = conv.Messages[n-1].CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			conv.ID, conv.Channel, name, len(conv.Messages), last)
	}
	w.Flush()
	fmt.Printf("\n%d conversations\n", len(conversations))
}

func printMessages(msgs []*model.Message) {
	for _, m := range msgs {
		arrow := "->"
		if m.Direction == model.DirectionIn {
			arrow = "<-"
		}
		status := ""
		if m.Direction == model.DirectionOut && !m.Delivered {
			status = " (not delivered)"
		}
		ts := ui.RenderMuted(m.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("%s %s %s%s\n", ts, arrow, m.Text, status)
	}
	fmt.Printf("\n%d messages\n", len(msgs))
}

func printStats(stats *client.CampaignStats) {
	fmt.Printf("Campaign: %s\n\n", ui.RenderAccent(stats.CampaignID))
	keys := make([]model.Status, 0, len(stats.Statuses))
	for k := range stats.Statuses {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", ui.RenderStatus(k), stats.Statuses[k])
	}
	w.Flush()
}

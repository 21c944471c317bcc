package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/groblegark/funnel/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version           string    `json:"version"`
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	CampaignCount     int       `json:"campaign_count"`
	ConversationCount int       `json:"conversation_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes all campaigns and conversations (with their messages and
// owning contacts) from the store as JSONL to w.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	campaigns, err := s.ListCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("list campaigns: %w", err)
	}
	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].ID < campaigns[j].ID
	})

	conversations, err := s.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].ID < conversations[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:           "1",
		Type:              "header",
		Timestamp:         time.Now().UTC(),
		CampaignCount:     len(campaigns),
		ConversationCount: len(conversations),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range campaigns {
		if err := enc.Encode(record{Type: "campaign", Data: c}); err != nil {
			return fmt.Errorf("encode campaign %s: %w", c.ID, err)
		}
	}
	for _, c := range conversations {
		if err := enc.Encode(record{Type: "conversation", Data: c}); err != nil {
			return fmt.Errorf("encode conversation %s: %w", c.ID, err)
		}
	}
	return nil
}

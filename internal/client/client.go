// Package client provides a typed interface to the funnel service and an
// HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"fmt"

	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/model"
)

// FunnelClient is the interface the CLI commands use to talk to the funnel
// server. It is implemented by HTTPClient.
type FunnelClient interface {
	// Campaigns
	CreateCampaign(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*model.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, patch map[string]any) (*model.Campaign, error)
	GetGraph(ctx context.Context, campaignID string) (model.GraphDoc, error)
	PutGraph(ctx context.Context, campaignID string, doc model.GraphDoc) (*PutGraphResponse, error)
	CampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error)

	// Contacts
	CreateContact(ctx context.Context, campaignID string, c *model.Contact, enroll bool) (*model.Contact, error)
	BulkCreateContacts(ctx context.Context, campaignID string, contacts []model.Contact) (*BulkCreateResponse, error)
	ListContacts(ctx context.Context, campaignID string) ([]*model.Contact, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	UpdateContact(ctx context.Context, id string, patch map[string]any) (*model.Contact, error)
	DeleteContact(ctx context.Context, id string) error
	EnrollContact(ctx context.Context, id string) (*model.Contact, error)
	ResumeContact(ctx context.Context, id, nodeKey string) (*model.Contact, error)
	CancelContact(ctx context.Context, id string) (*model.Contact, error)
	RecordContactEvent(ctx context.Context, id, name string, status model.Status) (*model.Contact, error)

	// Messaging
	SendMessage(ctx context.Context, contactID string, req *SendRequest) (*SendResponse, error)
	ListConversations(ctx context.Context) ([]*model.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error)
	RecentMessages(ctx context.Context, limit int) ([]*model.Message, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// PutGraphResponse summarizes a saved graph version.
type PutGraphResponse struct {
	Version  string   `json:"version"`
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
	Warnings []string `json:"warnings,omitempty"`
}

// CampaignStats holds the funnel counters for one campaign.
type CampaignStats struct {
	CampaignID string               `json:"campaign_id"`
	Name       string               `json:"name,omitempty"`
	Statuses   map[model.Status]int `json:"statuses"`
}

// BulkCreateResponse reports the outcome of a bulk contact import.
type BulkCreateResponse struct {
	Created []*model.Contact `json:"created"`
	Failed  []BulkRowError   `json:"failed"`
}

// BulkRowError is one rejected row from a bulk import.
type BulkRowError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// SendRequest is a one-off operator send outside the funnel graph.
type SendRequest struct {
	Channel  model.Channel `json:"channel"`
	Subject  string        `json:"subject,omitempty"`
	Body     string        `json:"body"`
	AudioURL string        `json:"audio_url,omitempty"`
}

// SendResponse pairs the recorded ledger entry with the provider outcome.
type SendResponse struct {
	Message *model.Message  `json:"message"`
	Result  dispatch.Result `json:"result"`
}

// APIError is an error response from the funnel server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (HTTP %d): %s", e.StatusCode, e.Message)
}

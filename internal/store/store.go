package store

import (
	"context"
	"time"

	"github.com/groblegark/funnel/internal/model"
)

// Store defines the persistence interface for the funnel service.
type Store interface {
	// Campaigns
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*model.Campaign, error)
	UpdateCampaign(ctx context.Context, c *model.Campaign) error

	// Graph documents. SaveGraph replaces the owner's nodes and edges
	// transactionally; an owner is either a template or a campaign.
	SaveTemplateGraph(ctx context.Context, templateID string, doc model.GraphDoc) error
	GetTemplateGraph(ctx context.Context, templateID string) (model.GraphDoc, error)
	SaveCampaignGraph(ctx context.Context, campaignID string, doc model.GraphDoc) error
	GetCampaignGraph(ctx context.Context, campaignID string) (model.GraphDoc, error)

	// Templates
	CreateTemplate(ctx context.Context, t *model.Template) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	ListTemplates(ctx context.Context) ([]*model.Template, error)
	GetContentTemplate(ctx context.Context, name string) (*model.ContentTemplate, error)

	// Contacts
	CreateContact(ctx context.Context, c *model.Contact) error
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	ListContacts(ctx context.Context, campaignID string) ([]*model.Contact, error)
	UpdateContact(ctx context.Context, c *model.Contact) error
	DeleteContact(ctx context.Context, id string) error
	// FindContactByPhoneDigits matches stored phone numbers containing the
	// given digit substring, returning the most recently created contact.
	FindContactByPhoneDigits(ctx context.Context, digits string) (*model.Contact, error)
	SetIntercepted(ctx context.Context, contactID string, intercepted bool) error
	// UpdateCursor advances a contact's graph cursor and automation state.
	UpdateCursor(ctx context.Context, contactID, nodeKey string, enteredAt time.Time, state model.AutomationState) error

	// Conversations and messages. EnsureConversation is idempotent: it
	// creates at most one conversation per (contact, channel) pair and
	// returns the existing ID on repeat calls.
	EnsureConversation(ctx context.Context, conv *model.Conversation) (string, error)
	ListConversations(ctx context.Context) ([]*model.Conversation, error)
	AddMessage(ctx context.Context, m *model.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error)
	ListRecentMessages(ctx context.Context, limit int) ([]*model.Message, error)

	// Contact events (for `on:` edge conditions)
	RecordContactEvent(ctx context.Context, ev *model.ContactEvent) error
	ListContactEvents(ctx context.Context, contactID string, since time.Time) ([]*model.ContactEvent, error)

	// Stats
	CountContactsByStatus(ctx context.Context, campaignID string) (map[model.Status]int, error)

	// Lifecycle
	Close() error
}

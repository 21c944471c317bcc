package events

import (
	"context"
	"time"

	"github.com/groblegark/funnel/internal/model"
)

// Event topic constants
const (
	TopicCampaignCreated = "funnel.campaign.created"
	TopicCampaignUpdated = "funnel.campaign.updated"

	TopicContactCreated     = "funnel.contact.created"
	TopicContactUpdated     = "funnel.contact.updated"
	TopicContactDeleted     = "funnel.contact.deleted"
	TopicContactEnrolled    = "funnel.contact.enrolled"
	TopicContactAdvanced    = "funnel.contact.advanced"
	TopicContactCompleted   = "funnel.contact.completed"
	TopicContactHalted      = "funnel.contact.halted"
	TopicContactIntercepted = "funnel.contact.intercepted"
	TopicContactResumed     = "funnel.contact.resumed"

	TopicMessageOut = "funnel.message.out"
	TopicMessageIn  = "funnel.message.in"
)

// Event types

type CampaignCreated struct {
	Campaign *model.Campaign `json:"campaign"`
}

type CampaignUpdated struct {
	Campaign *model.Campaign `json:"campaign"`
	Changes  map[string]any  `json:"changes"` // field name -> new value
}

type ContactCreated struct {
	Contact *model.Contact `json:"contact"`
}

type ContactUpdated struct {
	Contact *model.Contact `json:"contact"`
	Changes map[string]any `json:"changes"`
}

type ContactDeleted struct {
	ContactID string `json:"contact_id"`
}

type ContactEnrolled struct {
	ContactID  string `json:"contact_id"`
	CampaignID string `json:"campaign_id"`
	NodeKey    string `json:"node_key"`
}

type ContactAdvanced struct {
	ContactID  string `json:"contact_id"`
	CampaignID string `json:"campaign_id"`
	FromKey    string `json:"from_key"`
	ToKey      string `json:"to_key"`
}

type ContactCompleted struct {
	ContactID string `json:"contact_id"`
	NodeKey   string `json:"node_key"` // the goal or exit node reached
}

type ContactHalted struct {
	ContactID string `json:"contact_id"`
	NodeKey   string `json:"node_key"`
	Reason    string `json:"reason"`
}

type ContactIntercepted struct {
	ContactID string `json:"contact_id"`
	From      string `json:"from"` // inbound sender
}

type ContactResumed struct {
	ContactID string `json:"contact_id"`
	NodeKey   string `json:"node_key"`
}

type MessageOut struct {
	Message   *model.Message `json:"message"`
	ContactID string         `json:"contact_id"`
	Channel   model.Channel  `json:"channel"`
}

type MessageIn struct {
	Message   *model.Message `json:"message"`
	ContactID string         `json:"contact_id"`
	From      string         `json:"from"`
	ReceivedAt time.Time     `json:"received_at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

package model

import (
	"encoding/json"
	"time"
)

// Status tracks where a contact sits in the event funnel. The set is closed;
// it drives the funnel counters on the analytics endpoints.
type Status string

const (
	StatusNoActivity        Status = "No Activity"
	StatusNeedsBDR          Status = "Needs BDR"
	StatusReceivedRSVP      Status = "Received RSVP"
	StatusShowedUpToEvent   Status = "Showed Up To Event"
	StatusPostEvent1        Status = "Post Event #1"
	StatusPostEvent2        Status = "Post Event #2"
	StatusPostEvent3        Status = "Post Event #3"
	StatusReceivedAgreement Status = "Received Agreement"
	StatusSignedAgreement   Status = "Signed Agreement"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusNoActivity, StatusNeedsBDR, StatusReceivedRSVP, StatusShowedUpToEvent,
		StatusPostEvent1, StatusPostEvent2, StatusPostEvent3,
		StatusReceivedAgreement, StatusSignedAgreement:
		return true
	}
	return false
}

// AutomationState reflects whether the engine is still driving a contact.
type AutomationState string

const (
	AutomationActive    AutomationState = "active"
	AutomationCompleted AutomationState = "completed" // reached a goal/exit node
	AutomationHalted    AutomationState = "halted"    // stopped short of a terminal node (cycle limit or cancel)
)

// Contact is an enrolled recipient inside a campaign.
//
// CurrentNodeKey and EnteredAt form the contact's graph cursor; they are
// mutated only by engine transitions and explicit resume/cancel operations.
// Intercepted pauses automation until an operator resolves the inbound reply.
type Contact struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	URL        string `json:"url,omitempty"`
	Status     Status `json:"status"`
	StageKey   string `json:"stage_key,omitempty"`

	CurrentNodeKey string          `json:"current_node_key,omitempty"`
	EnteredAt      *time.Time      `json:"entered_at,omitempty"`
	Intercepted    bool            `json:"intercepted"`
	Automation     AutomationState `json:"automation,omitempty"`

	Attributes json.RawMessage `json:"attributes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

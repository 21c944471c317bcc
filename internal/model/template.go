package model

import "time"

// Template is a reusable funnel graph. Creating a campaign from a template
// clones the template's nodes and edges into the campaign's own graph.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentTemplate is a named piece of reusable outbound content that send
// nodes can reference instead of carrying inline copy.
type ContentTemplate struct {
	Name     string  `json:"name"`
	Channel  Channel `json:"channel"`
	Subject  string  `json:"subject,omitempty"`
	Body     string  `json:"body"`
	AudioURL string  `json:"audio_url,omitempty"`
}

// ContactEvent is a recorded occurrence for a contact (rsvp_received,
// inbound_reply, ...) consumed by `on:` edge conditions.
type ContactEvent struct {
	ID        int64     `json:"id"`
	ContactID string    `json:"contact_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

package model

import "time"

// Channel identifies a communication medium.
type Channel string

const (
	ChannelSMS       Channel = "sms"
	ChannelEmail     Channel = "email"
	ChannelVoicemail Channel = "voicemail"
)

// String returns the string representation of the channel.
func (c Channel) String() string {
	return string(c)
}

// IsValid checks whether the channel is a known value.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelVoicemail:
		return true
	}
	return false
}

// Direction marks a message as inbound or outbound.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// IsValid checks whether the direction is a known value.
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Conversation is the per-contact, per-channel message history.
// At most one conversation exists for a given (contact, channel) pair.
type Conversation struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Channel   Channel   `json:"channel"`
	CreatedAt time.Time `json:"created_at"`

	// Relational data -- populated by queries, not stored in the conversations table.
	Messages []*Message `json:"messages,omitempty"`
	Contact  *Contact   `json:"contact,omitempty"`
}

// Message is a single entry in a conversation timeline. Messages are
// append-only and immutable once written; outbound entries are recorded for
// every dispatch attempt whether or not the provider delivered.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Direction      Direction `json:"direction"`
	Text           string    `json:"text"`
	Delivered      bool      `json:"delivered"`
	Provider       string    `json:"provider,omitempty"`
	ProviderMsgID  string    `json:"provider_msg_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

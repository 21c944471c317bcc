// Package ledger records every send attempt and inbound reply as an
// append-only message history, one conversation per (contact, channel) pair.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/events"
	"github.com/groblegark/funnel/internal/idgen"
	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store"
)

// Ledger writes conversation entries to the store and mirrors them onto the
// event bus.
type Ledger struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Ledger. A nil publisher disables event mirroring.
func New(st store.Store, pub events.Publisher, logger *slog.Logger) *Ledger {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: st, publisher: pub, logger: logger, now: time.Now}
}

// EnsureConversation returns the conversation ID for the (contact, channel)
// pair, creating the conversation on first use. Repeat calls return the same
// ID.
func (l *Ledger) EnsureConversation(ctx context.Context, contactID string, channel model.Channel) (string, error) {
	id, err := idgen.Generate(idgen.PrefixConversation)
	if err != nil {
		return "", err
	}
	conv := &model.Conversation{
		ID:        id,
		ContactID: contactID,
		Channel:   channel,
		CreatedAt: l.now().UTC(),
	}
	got, err := l.store.EnsureConversation(ctx, conv)
	if err != nil {
		return "", fmt.Errorf("ensure conversation: %w", err)
	}
	return got, nil
}

// RecordOutbound appends an outbound entry for a dispatch attempt. The entry
// is written whether or not the provider delivered; failed attempts land with
// Delivered=false so the history shows what the engine tried to send.
func (l *Ledger) RecordOutbound(ctx context.Context, contactID string, channel model.Channel, text string, res dispatch.Result) (*model.Message, error) {
	convID, err := l.EnsureConversation(ctx, contactID, channel)
	if err != nil {
		return nil, err
	}
	msgID, err := idgen.Generate(idgen.PrefixMessage)
	if err != nil {
		return nil, err
	}
	msg := &model.Message{
		ID:             msgID,
		ConversationID: convID,
		Direction:      model.DirectionOut,
		Text:           text,
		Delivered:      res.Delivered,
		Provider:       res.Provider,
		ProviderMsgID:  res.ProviderMsgID,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append outbound message: %w", err)
	}
	if err := l.publisher.Publish(ctx, events.TopicMessageOut, events.MessageOut{
		Message: msg, ContactID: contactID, Channel: channel,
	}); err != nil {
		l.logger.Warn("publish outbound message event", "error", err)
	}
	return msg, nil
}

// RecordInbound appends an inbound entry to the contact's conversation for
// the channel.
func (l *Ledger) RecordInbound(ctx context.Context, contactID string, channel model.Channel, from, text string) (*model.Message, error) {
	convID, err := l.EnsureConversation(ctx, contactID, channel)
	if err != nil {
		return nil, err
	}
	msgID, err := idgen.Generate(idgen.PrefixMessage)
	if err != nil {
		return nil, err
	}
	msg := &model.Message{
		ID:             msgID,
		ConversationID: convID,
		Direction:      model.DirectionIn,
		Text:           text,
		Delivered:      true,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append inbound message: %w", err)
	}
	if err := l.publisher.Publish(ctx, events.TopicMessageIn, events.MessageIn{
		Message: msg, ContactID: contactID, From: from, ReceivedAt: msg.CreatedAt,
	}); err != nil {
		l.logger.Warn("publish inbound message event", "error", err)
	}
	return msg, nil
}

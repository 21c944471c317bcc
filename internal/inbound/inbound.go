// Package inbound routes provider webhook replies back onto contact
// conversations and pauses automation for a human to take over.
package inbound

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/events"
	"github.com/groblegark/funnel/internal/ledger"
	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store"
)

// Waker is the slice of the engine the router needs: pausing automation
// under the engine's contact lock, recording the reply event, and nudging
// the contact's evaluation.
type Waker interface {
	Intercept(ctx context.Context, contactID string) error
	NotifyEvent(ctx context.Context, contactID, name string) error
}

// Router matches inbound SMS replies to contacts and intercepts their
// automation.
type Router struct {
	store     store.Store
	ledger    *ledger.Ledger
	publisher events.Publisher
	waker     Waker
	logger    *slog.Logger
}

// New creates a Router. waker may be nil when no engine is running.
func New(st store.Store, l *ledger.Ledger, pub events.Publisher, waker Waker, logger *slog.Logger) *Router {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{store: st, ledger: l, publisher: pub, waker: waker, logger: logger}
}

// Route handles one inbound SMS. The sender is matched against stored
// contacts by their last ten digits; with multiple matches the most recently
// created contact wins. An unmatched sender is logged and dropped -- the
// webhook must still succeed so the provider does not retry forever.
func (r *Router) Route(ctx context.Context, from, to, body string) error {
	digits := dispatch.NormalizePhone10(from)
	if digits == "" {
		r.logger.Info("inbound message without usable sender", "to", to)
		return nil
	}

	contact, err := r.store.FindContactByPhoneDigits(ctx, digits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Info("inbound message from unknown sender", "from", from)
			return nil
		}
		return fmt.Errorf("match inbound sender: %w", err)
	}

	msg, err := r.ledger.RecordInbound(ctx, contact.ID, model.ChannelSMS, from, body)
	if err != nil {
		return err
	}

	// Go through the engine when one is running: its Intercept serializes
	// the flag write against an evaluation pass in flight.
	if r.waker != nil {
		if err := r.waker.Intercept(ctx, contact.ID); err != nil {
			return fmt.Errorf("intercept contact: %w", err)
		}
	} else if err := r.store.SetIntercepted(ctx, contact.ID, true); err != nil {
		return fmt.Errorf("intercept contact: %w", err)
	}
	contact.Intercepted = true
	contact.Status = model.StatusNeedsBDR
	contact.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateContact(ctx, contact); err != nil {
		return fmt.Errorf("flag contact for follow-up: %w", err)
	}

	if r.waker != nil {
		if err := r.waker.NotifyEvent(ctx, contact.ID, "inbound_reply"); err != nil {
			r.logger.Warn("recording inbound reply event", "contact", contact.ID, "error", err)
		}
	}

	if err := r.publisher.Publish(ctx, events.TopicContactIntercepted, events.ContactIntercepted{
		ContactID: contact.ID, From: from,
	}); err != nil {
		r.logger.Warn("publishing interception event", "contact", contact.ID, "error", err)
	}

	r.logger.Info("inbound reply routed",
		"contact", contact.ID, "from", from, "message", msg.ID)
	return nil
}

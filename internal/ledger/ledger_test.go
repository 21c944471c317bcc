package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store/memory"
)

func seedContact(t *testing.T, st *memory.Store) *model.Contact {
	t.Helper()
	now := time.Now().UTC()
	c := &model.Contact{
		ID: "ct-1", CampaignID: "cp-1", Name: "Jane Doe", Phone: "5551234567",
		Status: model.StatusNoActivity, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateContact(context.Background(), c); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	return c
}

func TestEnsureConversationIdempotent(t *testing.T) {
	st := memory.New()
	seedContact(t, st)
	l := New(st, nil, nil)

	ctx := context.Background()
	first, err := l.EnsureConversation(ctx, "ct-1", model.ChannelSMS)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := l.EnsureConversation(ctx, "ct-1", model.ChannelSMS)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first != second {
		t.Errorf("conversation IDs differ: %q vs %q", first, second)
	}

	// A different channel gets its own conversation.
	email, err := l.EnsureConversation(ctx, "ct-1", model.ChannelEmail)
	if err != nil {
		t.Fatalf("email ensure: %v", err)
	}
	if email == first {
		t.Error("email conversation should be distinct from sms")
	}
}

func TestRecordOutboundKeepsFailedAttempts(t *testing.T) {
	st := memory.New()
	seedContact(t, st)
	l := New(st, nil, nil)

	ctx := context.Background()
	msg, err := l.RecordOutbound(ctx, "ct-1", model.ChannelSMS, "hello",
		dispatch.Result{Delivered: false, Provider: "mock"})
	if err != nil {
		t.Fatalf("record outbound: %v", err)
	}
	if msg.Delivered {
		t.Error("expected delivered=false preserved")
	}
	if msg.Provider != "mock" {
		t.Errorf("provider = %q", msg.Provider)
	}

	msgs, err := st.GetMessages(ctx, msg.ConversationID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Direction != model.DirectionOut {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRecordInboundAndOutboundShareConversation(t *testing.T) {
	st := memory.New()
	seedContact(t, st)
	l := New(st, nil, nil)

	ctx := context.Background()
	out, err := l.RecordOutbound(ctx, "ct-1", model.ChannelSMS, "ping",
		dispatch.Result{Delivered: true, Provider: "bonzo", ProviderMsgID: "bz-1"})
	if err != nil {
		t.Fatalf("record outbound: %v", err)
	}
	in, err := l.RecordInbound(ctx, "ct-1", model.ChannelSMS, "+15551234567", "pong")
	if err != nil {
		t.Fatalf("record inbound: %v", err)
	}
	if out.ConversationID != in.ConversationID {
		t.Errorf("conversation split: %q vs %q", out.ConversationID, in.ConversationID)
	}

	msgs, err := st.GetMessages(ctx, out.ConversationID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[1].Direction != model.DirectionIn || msgs[1].Text != "pong" {
		t.Errorf("inbound entry = %+v", msgs[1])
	}
}

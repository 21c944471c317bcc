package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	campaign := &model.Campaign{
		ID: "cp-1", Name: "Denver Dinner", EventDate: now,
		Status: model.CampaignLive, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateCampaign(ctx, campaign); err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	contact := &model.Contact{
		ID: "ct-1", CampaignID: "cp-1", Name: "Jane Doe", Phone: "5551234567",
		Status: model.StatusNoActivity, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateContact(ctx, contact); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	conv := &model.Conversation{ID: "cv-1", ContactID: "ct-1", Channel: model.ChannelSMS, CreatedAt: now}
	if _, err := st.EnsureConversation(ctx, conv); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	msg := &model.Message{
		ID: "ms-1", ConversationID: "cv-1", Direction: model.DirectionOut,
		Text: "hello", Delivered: true, Provider: "bonzo", CreatedAt: now,
	}
	if err := st.AddMessage(ctx, msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return st
}

func TestExportJSONL(t *testing.T) {
	st := seedStore(t)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), st, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	scanner := bufio.NewScanner(&buf)

	if !scanner.Scan() {
		t.Fatal("missing header line")
	}
	var hdr header
	if err := json.Unmarshal(scanner.Bytes(), &hdr); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if hdr.Type != "header" || hdr.CampaignCount != 1 || hdr.ConversationCount != 1 {
		t.Errorf("header = %+v", hdr)
	}

	types := map[string]int{}
	for scanner.Scan() {
		var rec struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		types[rec.Type]++
		if rec.Type == "conversation" {
			var conv model.Conversation
			if err := json.Unmarshal(rec.Data, &conv); err != nil {
				t.Fatalf("decode conversation: %v", err)
			}
			if len(conv.Messages) != 1 || conv.Messages[0].Text != "hello" {
				t.Errorf("conversation messages = %+v", conv.Messages)
			}
			if conv.Contact == nil || conv.Contact.ID != "ct-1" {
				t.Errorf("conversation contact = %+v", conv.Contact)
			}
		}
	}
	if types["campaign"] != 1 || types["conversation"] != 1 {
		t.Errorf("record counts = %v", types)
	}
}

type memDestination struct {
	mu     sync.Mutex
	writes [][]byte
}

func (d *memDestination) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := append([]byte(nil), data...)
	d.writes = append(d.writes, cp)
	return nil
}

func (d *memDestination) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func TestSchedulerRunsImmediately(t *testing.T) {
	st := seedStore(t)
	dest := &memDestination{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sched := NewScheduler(st, []Destination{dest}, time.Hour, logger)
	sched.Start()
	defer sched.Stop()

	deadline := time.After(2 * time.Second)
	for dest.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no export within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

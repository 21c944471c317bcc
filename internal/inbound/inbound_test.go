package inbound

import (
	"context"
	"testing"
	"time"

	"github.com/groblegark/funnel/internal/ledger"
	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store/memory"
)

type recordingWaker struct {
	st          *memory.Store
	intercepted []string
	contactIDs  []string
	names       []string
}

func (w *recordingWaker) Intercept(ctx context.Context, contactID string) error {
	w.intercepted = append(w.intercepted, contactID)
	return w.st.SetIntercepted(ctx, contactID, true)
}

func (w *recordingWaker) NotifyEvent(_ context.Context, contactID, name string) error {
	w.contactIDs = append(w.contactIDs, contactID)
	w.names = append(w.names, name)
	return nil
}

func newRouter(t *testing.T) (*Router, *memory.Store, *recordingWaker) {
	t.Helper()
	st := memory.New()
	w := &recordingWaker{st: st}
	r := New(st, ledger.New(st, nil, nil), nil, w, nil)
	return r, st, w
}

func addContact(t *testing.T, st *memory.Store, id, phone string, createdAt time.Time) {
	t.Helper()
	c := &model.Contact{
		ID: id, CampaignID: "cp-1", Name: "Jane Doe", Phone: phone,
		Status: model.StatusNoActivity, CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	if err := st.CreateContact(context.Background(), c); err != nil {
		t.Fatalf("seed contact %s: %v", id, err)
	}
}

func TestRouteMatchesAndIntercepts(t *testing.T) {
	r, st, w := newRouter(t)
	addContact(t, st, "ct-1", "(555) 123-4567", time.Now().UTC())

	ctx := context.Background()
	if err := r.Route(ctx, "+15551234567", "+15550001111", "yes I'm in"); err != nil {
		t.Fatalf("route: %v", err)
	}

	c, _ := st.GetContact(ctx, "ct-1")
	if !c.Intercepted {
		t.Error("contact not intercepted")
	}
	if c.Status != model.StatusNeedsBDR {
		t.Errorf("status = %q, want %q", c.Status, model.StatusNeedsBDR)
	}

	msgs, _ := st.ListRecentMessages(ctx, 10)
	if len(msgs) != 1 || msgs[0].Direction != model.DirectionIn || msgs[0].Text != "yes I'm in" {
		t.Errorf("messages = %+v", msgs)
	}

	if len(w.names) != 1 || w.names[0] != "inbound_reply" || w.contactIDs[0] != "ct-1" {
		t.Errorf("waker calls = %v %v", w.contactIDs, w.names)
	}
	// The flag write must go through the engine, not straight to the store.
	if len(w.intercepted) != 1 || w.intercepted[0] != "ct-1" {
		t.Errorf("intercept calls = %v, want [ct-1]", w.intercepted)
	}
}

func TestRouteMostRecentContactWins(t *testing.T) {
	r, st, _ := newRouter(t)
	now := time.Now().UTC()
	addContact(t, st, "ct-old", "5551234567", now.Add(-time.Hour))
	addContact(t, st, "ct-new", "+1 555 123 4567", now)

	if err := r.Route(context.Background(), "5551234567", "", "hi"); err != nil {
		t.Fatalf("route: %v", err)
	}

	old, _ := st.GetContact(context.Background(), "ct-old")
	recent, _ := st.GetContact(context.Background(), "ct-new")
	if old.Intercepted {
		t.Error("older contact intercepted")
	}
	if !recent.Intercepted {
		t.Error("most recent contact not intercepted")
	}
}

func TestRouteUnknownSenderIsDropped(t *testing.T) {
	r, st, w := newRouter(t)
	addContact(t, st, "ct-1", "5551234567", time.Now().UTC())

	if err := r.Route(context.Background(), "+19998887777", "", "who dis"); err != nil {
		t.Fatalf("route should swallow unknown senders: %v", err)
	}

	c, _ := st.GetContact(context.Background(), "ct-1")
	if c.Intercepted {
		t.Error("unrelated contact intercepted")
	}
	if msgs, _ := st.ListRecentMessages(context.Background(), 10); len(msgs) != 0 {
		t.Errorf("messages recorded for unknown sender: %d", len(msgs))
	}
	if len(w.names) != 0 {
		t.Errorf("waker called for unknown sender: %v", w.names)
	}
}

func TestRouteEmptySender(t *testing.T) {
	r, _, _ := newRouter(t)
	if err := r.Route(context.Background(), "", "", "hello"); err != nil {
		t.Fatalf("route with empty sender: %v", err)
	}
}

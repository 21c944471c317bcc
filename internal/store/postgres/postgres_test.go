package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/groblegark/funnel/internal/model"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var campaignCols = []string{
	"id", "name", "owner_name", "owner_email", "owner_phone", "city", "state",
	"event_type", "event_date", "launch_date", "video_link", "event_link",
	"hotel_name", "hotel_address", "calendly_link", "sender_email", "timezone",
	"template_id", "status", "created_at", "updated_at",
}

var contactCols = []string{
	"id", "campaign_id", "name", "company", "email", "phone", "city", "state", "url",
	"status", "stage_key", "current_node_key", "entered_at", "intercepted", "automation",
	"attributes", "created_at", "updated_at",
}

func campaignRow(id string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(campaignCols).AddRow(
		id, "Denver Workshop", "Ada Owner", "ada@example.com", "", "Denver", "CO",
		"workshop", now, nil, "", "",
		"", "", "", "", "America/Denver",
		nil, "live", now, now,
	)
}

func contactRow(id, campaignID, phone string, now time.Time) []driver.Value {
	return []driver.Value{
		id, campaignID, "Jane Doe", "", "jane@example.com", phone, "", "", "",
		"No Activity", "", "", nil, false, "active",
		nil, now, now,
	}
}

func TestCreateCampaign(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	c := &model.Campaign{
		ID: "cp-abc", Name: "Denver Workshop", OwnerName: "Ada Owner",
		OwnerEmail: "ada@example.com", EventType: "workshop", EventDate: now,
		Timezone: "America/Denver", Status: model.CampaignLive,
		CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs(
			"cp-abc", "Denver Workshop", "Ada Owner", "ada@example.com", "", "", "",
			"workshop", now, sqlmock.AnyArg(), "", "",
			"", "", "", "", "America/Denver",
			sqlmock.AnyArg(), "live", now, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateCampaign(context.Background(), db, c); err != nil {
		t.Fatalf("create campaign: %v", err)
	}
}

func TestGetCampaign(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id = \\$1").
		WithArgs("cp-abc").
		WillReturnRows(campaignRow("cp-abc", now))

	c, err := queryGetCampaign(context.Background(), db, "cp-abc")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if c.ID != "cp-abc" || c.Status != model.CampaignLive {
		t.Errorf("campaign = %+v", c)
	}
	if c.LaunchDate != nil {
		t.Errorf("launch_date should be nil, got %v", c.LaunchDate)
	}
}

func TestUpdateCampaignNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	c := &model.Campaign{ID: "cp-missing", EventDate: now, Status: model.CampaignDraft, UpdatedAt: now}
	mock.ExpectExec("UPDATE campaigns SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryUpdateCampaign(context.Background(), db, c); err != sql.ErrNoRows {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestReplaceGraphWritesNodesAndEdgesInOrder(t *testing.T) {
	db, mock := newMockDB(t)
	doc := model.GraphDoc{
		Nodes: []model.NodeSpec{
			{ID: "start", Type: model.NodeSMSSend, Name: "Intro"},
			{ID: "done", Type: model.NodeGoal},
		},
		Edges: []model.EdgeSpec{
			{From: "start", To: "done", Condition: &model.Condition{On: "rsvp_received"}},
		},
	}

	mock.ExpectExec("DELETE FROM graph_nodes").WithArgs("campaign", "cp-abc").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM graph_edges").WithArgs("campaign", "cp-abc").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO graph_nodes").
		WithArgs("campaign", "cp-abc", 0, "start", "sms_send", "Intro",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO graph_nodes").
		WithArgs("campaign", "cp-abc", 1, "done", "goal", "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO graph_edges").
		WithArgs("campaign", "cp-abc", 0, "start", "done", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryReplaceGraph(context.Background(), db, ownerCampaign, "cp-abc", doc); err != nil {
		t.Fatalf("replace graph: %v", err)
	}
}

func TestGetGraphRoundTripsConditions(t *testing.T) {
	db, mock := newMockDB(t)
	cond, _ := json.Marshal(model.Condition{After: "PT10M"})
	mock.ExpectQuery("SELECT .+ FROM graph_nodes").
		WithArgs("campaign", "cp-abc").
		WillReturnRows(sqlmock.NewRows([]string{"key", "type", "name", "config", "pos_x", "pos_y"}).
			AddRow("start", "sms_send", "Intro", []byte(`{"content":{"body":"hi"}}`), 10.0, 20.0))
	mock.ExpectQuery("SELECT .+ FROM graph_edges").
		WithArgs("campaign", "cp-abc").
		WillReturnRows(sqlmock.NewRows([]string{"from_key", "to_key", "condition"}).
			AddRow("start", "done", cond))

	doc, err := queryGetGraph(context.Background(), db, ownerCampaign, "cp-abc")
	if err != nil {
		t.Fatalf("get graph: %v", err)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Pos == nil || doc.Nodes[0].Pos.X != 10.0 {
		t.Errorf("nodes = %+v", doc.Nodes)
	}
	if len(doc.Edges) != 1 || doc.Edges[0].Condition == nil || doc.Edges[0].Condition.After != "PT10M" {
		t.Errorf("edges = %+v", doc.Edges)
	}
}

func TestFindContactByPhoneDigits(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(contactCols).AddRow(contactRow("ct-new", "cp-abc", "(555) 123-4567", now)...)
	mock.ExpectQuery("SELECT .+ FROM contacts\\s+WHERE phone <> '' AND regexp_replace").
		WithArgs("5551234567").
		WillReturnRows(rows)

	c, err := queryFindContactByPhoneDigits(context.Background(), db, "5551234567")
	if err != nil {
		t.Fatalf("find contact: %v", err)
	}
	if c.ID != "ct-new" {
		t.Errorf("contact = %+v", c)
	}
}

func TestEnsureConversationReturnsExistingID(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	conv := &model.Conversation{ID: "cv-new", ContactID: "ct-1", Channel: model.ChannelSMS, CreatedAt: now}

	// Conflict: insert is a no-op, select returns the earlier row's ID.
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("cv-new", "ct-1", "sms", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM conversations").
		WithArgs("ct-1", "sms").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cv-old"))

	id, err := queryEnsureConversation(context.Background(), db, conv)
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	if id != "cv-old" {
		t.Errorf("id = %q, want cv-old", id)
	}
}

func TestUpdateCursor(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("UPDATE contacts SET").
		WithArgs("ct-1", "wait_1", now, "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpdateCursor(context.Background(), db, "ct-1", "wait_1", now, model.AutomationActive); err != nil {
		t.Fatalf("update cursor: %v", err)
	}
}

func TestAddAndListMessages(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	m := &model.Message{
		ID: "ms-1", ConversationID: "cv-1", Direction: model.DirectionOut,
		Text: "hello", Delivered: true, Provider: "bonzo", ProviderMsgID: "bz-1", CreatedAt: now,
	}
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("ms-1", "cv-1", "out", "hello", true, "bonzo", "bz-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := queryAddMessage(context.Background(), db, m); err != nil {
		t.Fatalf("add message: %v", err)
	}

	mock.ExpectQuery("SELECT .+ FROM messages WHERE conversation_id = \\$1").
		WithArgs("cv-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "conversation_id", "direction", "text", "delivered", "provider", "provider_msg_id", "created_at",
		}).AddRow("ms-1", "cv-1", "out", "hello", true, "bonzo", "bz-1", now))

	msgs, err := queryGetMessages(context.Background(), db, "cv-1")
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Provider != "bonzo" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestCountContactsByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("cp-abc").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("No Activity", 12).
			AddRow("Received RSVP", 3))

	counts, err := queryCountContactsByStatus(context.Background(), db, "cp-abc")
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	if counts[model.StatusNoActivity] != 12 || counts[model.StatusReceivedRSVP] != 3 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRecordContactEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	ev := &model.ContactEvent{ContactID: "ct-1", Name: "rsvp_received", CreatedAt: now}
	mock.ExpectQuery("INSERT INTO contact_events").
		WithArgs("ct-1", "rsvp_received", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	if err := queryRecordContactEvent(context.Background(), db, ev); err != nil {
		t.Fatalf("record event: %v", err)
	}
	if ev.ID != 7 {
		t.Errorf("id = %d, want 7", ev.ID)
	}
}

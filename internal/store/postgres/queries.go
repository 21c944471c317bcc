package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/groblegark/funnel/internal/model"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ownerKind distinguishes whose graph a nodes/edges row set belongs to.
type ownerKind string

const (
	ownerTemplate ownerKind = "template"
	ownerCampaign ownerKind = "campaign"
)

// campaignColumns is the column list used for SELECT statements on the campaigns table.
const campaignColumns = `id, name, owner_name, owner_email, owner_phone, city, state,
	event_type, event_date, launch_date, video_link, event_link,
	hotel_name, hotel_address, calendly_link, sender_email, timezone,
	template_id, status, created_at, updated_at`

func queryCreateCampaign(ctx context.Context, db executor, c *model.Campaign) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO campaigns (
			id, name, owner_name, owner_email, owner_phone, city, state,
			event_type, event_date, launch_date, video_link, event_link,
			hotel_name, hotel_address, calendly_link, sender_email, timezone,
			template_id, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21
		)`,
		c.ID, c.Name, c.OwnerName, c.OwnerEmail, c.OwnerPhone, c.City, c.State,
		c.EventType, c.EventDate, nullTimePtr(c.LaunchDate), c.VideoLink, c.EventLink,
		c.HotelName, c.HotelAddress, c.CalendlyLink, c.SenderEmail, c.Timezone,
		nullString(c.TemplateID), string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func queryGetCampaign(ctx context.Context, db executor, id string) (*model.Campaign, error) {
	row := db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	return scanCampaign(row)
}

func queryListCampaigns(ctx context.Context, db executor) ([]*model.Campaign, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func queryUpdateCampaign(ctx context.Context, db executor, c *model.Campaign) error {
	res, err := db.ExecContext(ctx, `
		UPDATE campaigns SET
			name = $2, owner_name = $3, owner_email = $4, owner_phone = $5,
			city = $6, state = $7, event_type = $8, event_date = $9,
			launch_date = $10, video_link = $11, event_link = $12,
			hotel_name = $13, hotel_address = $14, calendly_link = $15,
			sender_email = $16, timezone = $17, template_id = $18,
			status = $19, updated_at = $20
		WHERE id = $1`,
		c.ID, c.Name, c.OwnerName, c.OwnerEmail, c.OwnerPhone,
		c.City, c.State, c.EventType, c.EventDate,
		nullTimePtr(c.LaunchDate), c.VideoLink, c.EventLink,
		c.HotelName, c.HotelAddress, c.CalendlyLink,
		c.SenderEmail, c.Timezone, nullString(c.TemplateID),
		string(c.Status), c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryCreateTemplate(ctx context.Context, db executor, t *model.Template) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO templates (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt)
	return err
}

func queryGetTemplate(ctx context.Context, db executor, id string) (*model.Template, error) {
	var t model.Template
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryListTemplates(ctx context.Context, db executor) ([]*model.Template, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func queryGetContentTemplate(ctx context.Context, db executor, name string) (*model.ContentTemplate, error) {
	var (
		t        model.ContentTemplate
		subject  sql.NullString
		audioURL sql.NullString
	)
	err := db.QueryRowContext(ctx,
		`SELECT name, channel, subject, body, audio_url FROM content_templates WHERE name = $1`, name).
		Scan(&t.Name, &t.Channel, &subject, &t.Body, &audioURL)
	if err != nil {
		return nil, err
	}
	t.Subject = subject.String
	t.AudioURL = audioURL.String
	return &t, nil
}

func queryReplaceGraph(ctx context.Context, db executor, kind ownerKind, ownerID string, doc model.GraphDoc) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM graph_nodes WHERE owner_kind = $1 AND owner_id = $2`, string(kind), ownerID); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM graph_edges WHERE owner_kind = $1 AND owner_id = $2`, string(kind), ownerID); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}

	for i, n := range doc.Nodes {
		var posX, posY sql.NullFloat64
		if n.Pos != nil {
			posX = sql.NullFloat64{Float64: n.Pos.X, Valid: true}
			posY = sql.NullFloat64{Float64: n.Pos.Y, Valid: true}
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO graph_nodes (owner_kind, owner_id, ord, key, type, name, config, pos_x, pos_y)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			string(kind), ownerID, i, n.ID, string(n.Type), n.Name, jsonbBytes(n.Config), posX, posY,
		); err != nil {
			return fmt.Errorf("insert node %q: %w", n.ID, err)
		}
	}

	for i, e := range doc.Edges {
		var cond []byte
		if e.Condition != nil {
			data, err := json.Marshal(e.Condition)
			if err != nil {
				return fmt.Errorf("marshal condition: %w", err)
			}
			cond = data
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO graph_edges (owner_kind, owner_id, ord, from_key, to_key, condition)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			string(kind), ownerID, i, e.From, e.To, cond,
		); err != nil {
			return fmt.Errorf("insert edge %d: %w", i, err)
		}
	}
	return nil
}

func queryGetGraph(ctx context.Context, db executor, kind ownerKind, ownerID string) (model.GraphDoc, error) {
	var doc model.GraphDoc

	rows, err := db.QueryContext(ctx, `
		SELECT key, type, name, config, pos_x, pos_y
		FROM graph_nodes WHERE owner_kind = $1 AND owner_id = $2 ORDER BY ord`,
		string(kind), ownerID)
	if err != nil {
		return doc, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			spec       model.NodeSpec
			config     []byte
			posX, posY sql.NullFloat64
		)
		if err := rows.Scan(&spec.ID, &spec.Type, &spec.Name, &config, &posX, &posY); err != nil {
			return doc, err
		}
		if len(config) > 0 {
			spec.Config = json.RawMessage(config)
		}
		if posX.Valid && posY.Valid {
			spec.Pos = &model.Position{X: posX.Float64, Y: posY.Float64}
		}
		doc.Nodes = append(doc.Nodes, spec)
	}
	if err := rows.Err(); err != nil {
		return doc, err
	}

	edgeRows, err := db.QueryContext(ctx, `
		SELECT from_key, to_key, condition
		FROM graph_edges WHERE owner_kind = $1 AND owner_id = $2 ORDER BY ord`,
		string(kind), ownerID)
	if err != nil {
		return doc, err
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var (
			spec model.EdgeSpec
			cond []byte
		)
		if err := edgeRows.Scan(&spec.From, &spec.To, &cond); err != nil {
			return doc, err
		}
		if len(cond) > 0 {
			var c model.Condition
			if err := json.Unmarshal(cond, &c); err != nil {
				return doc, fmt.Errorf("unmarshal edge condition: %w", err)
			}
			spec.Condition = &c
		}
		doc.Edges = append(doc.Edges, spec)
	}
	return doc, edgeRows.Err()
}

// contactColumns is the column list used for SELECT statements on the contacts table.
const contactColumns = `id, campaign_id, name, company, email, phone, city, state, url,
	status, stage_key, current_node_key, entered_at, intercepted, automation,
	attributes, created_at, updated_at`

func queryCreateContact(ctx context.Context, db executor, c *model.Contact) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO contacts (
			id, campaign_id, name, company, email, phone, city, state, url,
			status, stage_key, current_node_key, entered_at, intercepted, automation,
			attributes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18
		)`,
		c.ID, c.CampaignID, c.Name, c.Company, c.Email, c.Phone, c.City, c.State, c.URL,
		string(c.Status), c.StageKey, c.CurrentNodeKey, nullTimePtr(c.EnteredAt), c.Intercepted, string(c.Automation),
		jsonbBytes(c.Attributes), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func queryGetContact(ctx context.Context, db executor, id string) (*model.Contact, error) {
	row := db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

func queryListContacts(ctx context.Context, db executor, campaignID string) ([]*model.Contact, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE campaign_id = $1 ORDER BY created_at`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func queryUpdateContact(ctx context.Context, db executor, c *model.Contact) error {
	res, err := db.ExecContext(ctx, `
		UPDATE contacts SET
			name = $2, company = $3, email = $4, phone = $5, city = $6, state = $7,
			url = $8, status = $9, stage_key = $10, attributes = $11, updated_at = $12
		WHERE id = $1`,
		c.ID, c.Name, c.Company, c.Email, c.Phone, c.City, c.State,
		c.URL, string(c.Status), c.StageKey, jsonbBytes(c.Attributes), c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryDeleteContact(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryFindContactByPhoneDigits(ctx context.Context, db executor, digits string) (*model.Contact, error) {
	// Stored phone formats vary; compare digit strings so "(555) 123-4567"
	// still matches "5551234567".
	row := db.QueryRowContext(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE phone <> '' AND regexp_replace(phone, '\D', '', 'g') LIKE '%' || $1
		ORDER BY created_at DESC
		LIMIT 1`, digits)
	return scanContact(row)
}

func querySetIntercepted(ctx context.Context, db executor, contactID string, intercepted bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE contacts SET intercepted = $2, updated_at = now() WHERE id = $1`,
		contactID, intercepted)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryUpdateCursor(ctx context.Context, db executor, contactID, nodeKey string, enteredAt time.Time, state model.AutomationState) error {
	res, err := db.ExecContext(ctx, `
		UPDATE contacts SET
			current_node_key = $2, entered_at = $3, automation = $4, updated_at = now()
		WHERE id = $1`,
		contactID, nodeKey, enteredAt, string(state))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryEnsureConversation(ctx context.Context, db executor, conv *model.Conversation) (string, error) {
	// Insert-if-absent then read back: the unique (contact_id, channel)
	// constraint guarantees at most one conversation per pair even under
	// concurrent callers.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO conversations (id, contact_id, channel, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contact_id, channel) DO NOTHING`,
		conv.ID, conv.ContactID, string(conv.Channel), conv.CreatedAt,
	); err != nil {
		return "", err
	}

	var id string
	err := db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE contact_id = $1 AND channel = $2`,
		conv.ContactID, string(conv.Channel)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func queryListConversations(ctx context.Context, db executor) ([]*model.Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, contact_id, channel, created_at
		FROM conversations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.ContactID, &c.Channel, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range out {
		msgs, err := queryGetMessages(ctx, db, c.ID)
		if err != nil {
			return nil, err
		}
		c.Messages = msgs
		contact, err := queryGetContact(ctx, db, c.ContactID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		c.Contact = contact
	}
	return out, nil
}

// messageColumns is the column list used for SELECT statements on the messages table.
const messageColumns = `id, conversation_id, direction, text, delivered, provider, provider_msg_id, created_at`

func queryAddMessage(ctx context.Context, db executor, m *model.Message) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, direction, text, delivered, provider, provider_msg_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ConversationID, string(m.Direction), m.Text, m.Delivered, m.Provider, m.ProviderMsgID, m.CreatedAt,
	)
	return err
}

func queryGetMessages(ctx context.Context, db executor, conversationID string) ([]*model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func queryListRecentMessages(ctx context.Context, db executor, limit int) ([]*model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func queryRecordContactEvent(ctx context.Context, db executor, ev *model.ContactEvent) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO contact_events (contact_id, name, created_at)
		VALUES ($1, $2, $3) RETURNING id`,
		ev.ContactID, ev.Name, ev.CreatedAt).Scan(&ev.ID)
}

func queryListContactEvents(ctx context.Context, db executor, contactID string, since time.Time) ([]*model.ContactEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, contact_id, name, created_at
		FROM contact_events
		WHERE contact_id = $1 AND created_at >= $2
		ORDER BY created_at`, contactID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ContactEvent
	for rows.Next() {
		var ev model.ContactEvent
		if err := rows.Scan(&ev.ID, &ev.ContactID, &ev.Name, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func queryCountContactsByStatus(ctx context.Context, db executor, campaignID string) (map[model.Status]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM contacts
		WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

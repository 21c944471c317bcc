package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/groblegark/funnel/internal/model"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c          model.Campaign
		launchDate sql.NullTime
		templateID sql.NullString
		status     string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.OwnerName, &c.OwnerEmail, &c.OwnerPhone, &c.City, &c.State,
		&c.EventType, &c.EventDate, &launchDate, &c.VideoLink, &c.EventLink,
		&c.HotelName, &c.HotelAddress, &c.CalendlyLink, &c.SenderEmail, &c.Timezone,
		&templateID, &status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if launchDate.Valid {
		t := launchDate.Time
		c.LaunchDate = &t
	}
	c.TemplateID = templateID.String
	c.Status = model.CampaignStatus(status)
	return &c, nil
}

func scanContact(row rowScanner) (*model.Contact, error) {
	var (
		c          model.Contact
		status     string
		automation sql.NullString
		enteredAt  sql.NullTime
		attributes []byte
	)
	err := row.Scan(
		&c.ID, &c.CampaignID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.City, &c.State, &c.URL,
		&status, &c.StageKey, &c.CurrentNodeKey, &enteredAt, &c.Intercepted, &automation,
		&attributes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.Status(status)
	c.Automation = model.AutomationState(automation.String)
	if enteredAt.Valid {
		t := enteredAt.Time
		c.EnteredAt = &t
	}
	if len(attributes) > 0 {
		c.Attributes = json.RawMessage(attributes)
	}
	return &c, nil
}

func collectMessages(rows *sql.Rows) ([]*model.Message, error) {
	var out []*model.Message
	for rows.Next() {
		var (
			m             model.Message
			direction     string
			provider      sql.NullString
			providerMsgID sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &direction, &m.Text,
			&m.Delivered, &provider, &providerMsgID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = model.Direction(direction)
		m.Provider = provider.String
		m.ProviderMsgID = providerMsgID.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTimePtr converts a nil *time.Time to a SQL NULL.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// jsonbBytes passes raw JSON through for a jsonb column, mapping empty to NULL.
func jsonbBytes(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

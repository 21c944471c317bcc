package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft    CampaignStatus = "draft"
	CampaignLive     CampaignStatus = "live"
	CampaignPaused   CampaignStatus = "paused"
	CampaignArchived CampaignStatus = "archived"
)

// Campaign is a marketing event with its own funnel graph and contact list.
// The descriptive fields double as merge-tag sources for outbound content.
type Campaign struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	OwnerName    string         `json:"owner_name"`
	OwnerEmail   string         `json:"owner_email"`
	OwnerPhone   string         `json:"owner_phone,omitempty"`
	City         string         `json:"city,omitempty"`
	State        string         `json:"state,omitempty"`
	EventType    string         `json:"event_type"`
	EventDate    time.Time      `json:"event_date"`
	LaunchDate   *time.Time     `json:"launch_date,omitempty"`
	VideoLink    string         `json:"video_link,omitempty"`
	EventLink    string         `json:"event_link,omitempty"`
	HotelName    string         `json:"hotel_name,omitempty"`
	HotelAddress string         `json:"hotel_address,omitempty"`
	CalendlyLink string         `json:"calendly_link,omitempty"`
	SenderEmail  string         `json:"sender_email,omitempty"`
	Timezone     string         `json:"timezone,omitempty"` // IANA name; at_local conditions resolve here
	TemplateID   string         `json:"template_id,omitempty"`
	Status       CampaignStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MergeFields returns the campaign's merge-tag values keyed by tag name
// (the part after "campaign." in a {{campaign.*}} placeholder).
func (c *Campaign) MergeFields() map[string]string {
	fields := map[string]string{
		"name":          c.Name,
		"owner_name":    c.OwnerName,
		"owner_email":   c.OwnerEmail,
		"owner_phone":   c.OwnerPhone,
		"event_type":    c.EventType,
		"city":          c.City,
		"state":         c.State,
		"event_date":    c.EventDate.Format("January 2, 2006"),
		"video_link":    c.VideoLink,
		"event_link":    c.EventLink,
		"hotel_name":    c.HotelName,
		"hotel_address": c.HotelAddress,
		"calendly_link": c.CalendlyLink,
		"sender_email":  c.SenderEmail,
	}
	if c.LaunchDate != nil {
		fields["launch_date"] = c.LaunchDate.Format("January 2, 2006")
	}
	return fields
}

// MergeFields returns the contact's merge-tag values keyed by tag name.
func (ct *Contact) MergeFields() map[string]string {
	first, last := splitName(ct.Name)
	return map[string]string{
		"name":       ct.Name,
		"first_name": first,
		"last_name":  last,
		"email":      ct.Email,
		"phone":      ct.Phone,
		"company":    ct.Company,
		"city":       ct.City,
		"state":      ct.State,
		"website":    ct.URL,
		"status":     string(ct.Status),
	}
}

func splitName(full string) (first, last string) {
	for i := 0; i < len(full); i++ {
		if full[i] == ' ' {
			return full[:i], full[i+1:]
		}
	}
	return full, ""
}

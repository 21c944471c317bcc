package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateContact checks a Contact for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the contact is valid.
func ValidateContact(c *Contact) error {
	var ve ValidationError

	if strings.TrimSpace(c.Name) == "" {
		ve.Add("name", "is required")
	}
	if c.Status != "" && !c.Status.IsValid() {
		ve.Add("status", "invalid value %q", c.Status)
	}
	if c.Automation != "" {
		switch c.Automation {
		case AutomationActive, AutomationCompleted, AutomationHalted:
		default:
			ve.Add("automation", "invalid value %q", c.Automation)
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateCampaign checks a Campaign for constraint violations.
func ValidateCampaign(c *Campaign) error {
	var ve ValidationError

	if strings.TrimSpace(c.Name) == "" {
		ve.Add("name", "is required")
	}
	if strings.TrimSpace(c.OwnerName) == "" {
		ve.Add("owner_name", "is required")
	}
	if strings.TrimSpace(c.OwnerEmail) == "" {
		ve.Add("owner_email", "is required")
	}
	if strings.TrimSpace(c.EventType) == "" {
		ve.Add("event_type", "is required")
	}
	if c.EventDate.IsZero() {
		ve.Add("event_date", "is required")
	}
	switch c.Status {
	case "", CampaignDraft, CampaignLive, CampaignPaused, CampaignArchived:
	default:
		ve.Add("status", "invalid value %q", c.Status)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/groblegark/funnel/internal/events"
	"github.com/groblegark/funnel/internal/idgen"
	"github.com/groblegark/funnel/internal/model"
)

// handleCreateContact handles POST /v1/campaigns/{id}/contacts. Pass
// ?enroll=true to drop the contact into the campaign graph immediately.
func (s *FunnelServer) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := r.PathValue("id")
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		writeStoreError(w, err)
		return
	}

	var contact model.Contact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	contact.CampaignID = campaignID
	if contact.Status == "" {
		contact.Status = model.StatusNoActivity
	}
	if err := model.ValidateContact(&contact); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.createContact(r, &contact)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *FunnelServer) createContact(r *http.Request, contact *model.Contact) (*model.Contact, error) {
	ctx := r.Context()
	id, err := idgen.Generate(idgen.PrefixContact)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	contact.ID = id
	contact.Automation = ""
	contact.CreatedAt = now
	contact.UpdatedAt = now

	if err := s.store.CreateContact(ctx, contact); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TopicContactCreated, events.ContactCreated{Contact: contact})

	// Open the contact's primary conversation up front so the inbox shows
	// the contact before any message flows.
	if s.ledger != nil {
		channel := model.Channel("")
		switch {
		case contact.Phone != "":
			channel = model.ChannelSMS
		case contact.Email != "":
			channel = model.ChannelEmail
		}
		if channel != "" {
			if _, err := s.ledger.EnsureConversation(ctx, contact.ID, channel); err != nil {
				slog.Warn("failed to open conversation", "contact", contact.ID, "error", err)
			}
		}
	}

	if r.URL.Query().Get("enroll") == "true" && s.engine != nil {
		if err := s.engine.Enroll(ctx, contact.ID); err != nil {
			return nil, err
		}
		return s.store.GetContact(ctx, contact.ID)
	}
	return contact, nil
}

// handleBulkCreateContacts handles POST /v1/campaigns/{id}/contacts/bulk.
// Invalid rows are reported per-index; valid rows are still created.
func (s *FunnelServer) handleBulkCreateContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := r.PathValue("id")
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		writeStoreError(w, err)
		return
	}

	var req struct {
		Contacts []model.Contact `json:"contacts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	type rowError struct {
		Index int    `json:"index"`
		Error string `json:"error"`
	}
	var (
		created []*model.Contact
		failed  []rowError
	)
	for i := range req.Contacts {
		contact := req.Contacts[i]
		contact.CampaignID = campaignID
		if contact.Status == "" {
			contact.Status = model.StatusNoActivity
		}
		if err := model.ValidateContact(&contact); err != nil {
			failed = append(failed, rowError{Index: i, Error: err.Error()})
			continue
		}
		c, err := s.createContact(r, &contact)
		if err != nil {
			failed = append(failed, rowError{Index: i, Error: err.Error()})
			continue
		}
		created = append(created, c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
		"failed":  failed,
	})
}

// handleListContacts handles GET /v1/campaigns/{id}/contacts.
func (s *FunnelServer) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.ListContacts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

// handleGetContact handles GET /v1/contacts/{id}.
func (s *FunnelServer) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.store.GetContact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// handleUpdateContact handles PATCH /v1/contacts/{id}. Only profile fields
// change here; cursor and interception are owned by the engine and the
// resume/cancel operations.
func (s *FunnelServer) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contact, err := s.store.GetContact(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	raw, err := json.Marshal(contact)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var base map[string]json.RawMessage
	_ = json.Unmarshal(raw, &base)
	for k, v := range patch {
		base[k] = v
	}
	merged, _ := json.Marshal(base)
	var updated model.Contact
	if err := json.Unmarshal(merged, &updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field value: "+err.Error())
		return
	}
	updated.ID = contact.ID
	updated.CampaignID = contact.CampaignID
	updated.CreatedAt = contact.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if err := model.ValidateContact(&updated); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpdateContact(ctx, &updated); err != nil {
		writeStoreError(w, err)
		return
	}

	changes := make(map[string]any, len(patch))
	for k, v := range patch {
		changes[k] = json.RawMessage(v)
	}
	s.publish(ctx, events.TopicContactUpdated, events.ContactUpdated{Contact: &updated, Changes: changes})

	// Status changes can unblock decision rules waiting on contact.status.
	if _, ok := patch["status"]; ok && s.engine != nil {
		s.engine.Wake(updated.ID)
	}
	writeJSON(w, http.StatusOK, &updated)
}

// handleDeleteContact handles DELETE /v1/contacts/{id}.
func (s *FunnelServer) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if s.engine != nil {
		if err := s.engine.Cancel(ctx, id); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if err := s.store.DeleteContact(ctx, id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.publish(ctx, events.TopicContactDeleted, events.ContactDeleted{ContactID: id})
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleEnrollContact handles POST /v1/contacts/{id}/enroll.
func (s *FunnelServer) handleEnrollContact(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.engine.Enroll(ctx, id); err != nil {
		writeStoreError(w, err)
		return
	}
	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// handleResumeContact handles POST /v1/contacts/{id}/resume: places the
// contact at the named node and re-activates automation.
func (s *FunnelServer) handleResumeContact(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	var req struct {
		NodeKey string `json:"node_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.NodeKey == "" {
		writeError(w, http.StatusBadRequest, "node_key is required")
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.engine.Resume(ctx, id, req.NodeKey); err != nil {
		writeStoreError(w, err)
		return
	}
	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// handleCancelContact handles POST /v1/contacts/{id}/cancel.
func (s *FunnelServer) handleCancelContact(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.engine.Cancel(ctx, id); err != nil {
		writeStoreError(w, err)
		return
	}
	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// handleContactEvent handles POST /v1/contacts/{id}/events: records a named
// occurrence (rsvp_received, agreement_signed, ...) and wakes the contact so
// `on:` edges can fire. An optional status in the body updates the funnel
// counter in the same call.
func (s *FunnelServer) handleContactEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string       `json:"name"`
		Status model.Status `json:"status,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Status != "" && !req.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if req.Status != "" {
		contact.Status = req.Status
		contact.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateContact(ctx, contact); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	if s.engine != nil {
		if err := s.engine.NotifyEvent(ctx, id, req.Name); err != nil {
			writeStoreError(w, err)
			return
		}
	} else {
		ev := &model.ContactEvent{ContactID: id, Name: req.Name, CreatedAt: time.Now().UTC()}
		if err := s.store.RecordContactEvent(ctx, ev); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, contact)
}

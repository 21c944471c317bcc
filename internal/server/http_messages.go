package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/engine"
	"github.com/groblegark/funnel/internal/model"
)

// handleListConversations handles GET /v1/conversations: the shared inbox,
// newest first, with messages and owning contacts embedded.
func (s *FunnelServer) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.ListConversations(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

// handleGetMessages handles GET /v1/conversations/{id}/messages.
func (s *FunnelServer) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.GetMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handleRecentMessages handles GET /v1/messages/recent?limit=N.
func (s *FunnelServer) handleRecentMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := s.store.ListRecentMessages(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handleDirectSend handles POST /v1/contacts/{id}/send: a one-off operator
// send outside the funnel graph. The attempt is recorded in the ledger like
// any engine dispatch.
func (s *FunnelServer) handleDirectSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel  model.Channel `json:"channel"`
		Subject  string        `json:"subject,omitempty"`
		Body     string        `json:"body"`
		AudioURL string        `json:"audio_url,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !req.Channel.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid channel")
		return
	}

	ctx := r.Context()
	contact, err := s.store.GetContact(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	campaign, err := s.store.GetCampaign(ctx, contact.CampaignID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	content := dispatch.Content{
		Subject:  engine.RenderTags(req.Subject, contact, campaign),
		Body:     engine.RenderTags(req.Body, contact, campaign),
		AudioURL: req.AudioURL,
	}
	dest := contact.Phone
	if req.Channel == model.ChannelEmail {
		dest = contact.Email
	}

	res := s.dispatcher.Send(ctx, req.Channel, dest, content, dispatch.ContactRef{
		ContactID:  contact.ID,
		CampaignID: campaign.ID,
		CallerID:   campaign.OwnerPhone,
	})

	text := content.Body
	if req.Channel == model.ChannelVoicemail && text == "" {
		text = content.AudioURL
	}
	msg, err := s.ledger.RecordOutbound(ctx, contact.ID, req.Channel, text, res)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "result": res})
}

// handleMessageStats handles GET /v1/stats/messages: inbound/outbound totals
// plus a daily volume series for the last 30 days.
func (s *FunnelServer) handleMessageStats(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.ListConversations(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	type dayCount struct {
		Day string `json:"day"`
		In  int    `json:"in"`
		Out int    `json:"out"`
	}
	var inbound, outbound int
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	byDay := make(map[string]*dayCount)
	for _, conv := range conversations {
		for _, m := range conv.Messages {
			if m.Direction == model.DirectionIn {
				inbound++
			} else {
				outbound++
			}
			if m.CreatedAt.Before(cutoff) {
				continue
			}
			day := m.CreatedAt.UTC().Format("2006-01-02")
			dc := byDay[day]
			if dc == nil {
				dc = &dayCount{Day: day}
				byDay[day] = dc
			}
			if m.Direction == model.DirectionIn {
				dc.In++
			} else {
				dc.Out++
			}
		}
	}
	days := make([]*dayCount, 0, len(byDay))
	for _, dc := range byDay {
		days = append(days, dc)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })

	writeJSON(w, http.StatusOK, map[string]any{
		"inbound":  inbound,
		"outbound": outbound,
		"days":     days,
	})
}

// emptyTwiML is the response Twilio expects when we have nothing to say back.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// handleTwilioSMS handles POST /v1/webhooks/twilio/sms. The webhook always
// returns 200 with empty TwiML: a routing failure must not make the provider
// retry or surface an error SMS to the sender.
func (s *FunnelServer) handleTwilioSMS(w http.ResponseWriter, r *http.Request) {
	respond := func() {
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(emptyTwiML))
	}

	if err := r.ParseForm(); err != nil {
		respond()
		return
	}
	from := r.PostFormValue("From")
	to := r.PostFormValue("To")
	body := r.PostFormValue("Body")

	if s.router != nil {
		if err := s.router.Route(r.Context(), from, to, body); err != nil {
			slog.Warn("inbound webhook routing failed", "from", from, "error", err)
		}
	}
	respond()
}

package server

import (
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and the
// provider webhooks) must include a valid Authorization: Bearer token.
func (s *FunnelServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/campaigns", s.handleCreateCampaign)
	mux.HandleFunc("GET /v1/campaigns", s.handleListCampaigns)
	mux.HandleFunc("GET /v1/campaigns/{id}", s.handleGetCampaign)
	mux.HandleFunc("PATCH /v1/campaigns/{id}", s.handleUpdateCampaign)
	mux.HandleFunc("GET /v1/campaigns/{id}/graph", s.handleGetCampaignGraph)
	mux.HandleFunc("PUT /v1/campaigns/{id}/graph", s.handlePutCampaignGraph)
	mux.HandleFunc("GET /v1/campaigns/{id}/stats", s.handleCampaignStats)
	mux.HandleFunc("GET /v1/campaigns/{id}/contacts", s.handleListContacts)
	mux.HandleFunc("POST /v1/campaigns/{id}/contacts", s.handleCreateContact)
	mux.HandleFunc("POST /v1/campaigns/{id}/contacts/bulk", s.handleBulkCreateContacts)

	mux.HandleFunc("POST /v1/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /v1/templates", s.handleListTemplates)
	mux.HandleFunc("GET /v1/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("GET /v1/templates/{id}/graph", s.handleGetTemplateGraph)
	mux.HandleFunc("PUT /v1/templates/{id}/graph", s.handlePutTemplateGraph)

	mux.HandleFunc("GET /v1/contacts/{id}", s.handleGetContact)
	mux.HandleFunc("PATCH /v1/contacts/{id}", s.handleUpdateContact)
	mux.HandleFunc("DELETE /v1/contacts/{id}", s.handleDeleteContact)
	mux.HandleFunc("POST /v1/contacts/{id}/enroll", s.handleEnrollContact)
	mux.HandleFunc("POST /v1/contacts/{id}/resume", s.handleResumeContact)
	mux.HandleFunc("POST /v1/contacts/{id}/cancel", s.handleCancelContact)
	mux.HandleFunc("POST /v1/contacts/{id}/events", s.handleContactEvent)
	mux.HandleFunc("POST /v1/contacts/{id}/send", s.handleDirectSend)

	mux.HandleFunc("GET /v1/conversations", s.handleListConversations)
	mux.HandleFunc("GET /v1/conversations/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("GET /v1/messages/recent", s.handleRecentMessages)

	mux.HandleFunc("POST /v1/webhooks/twilio/sms", s.handleTwilioSMS)

	mux.HandleFunc("GET /v1/stats", s.handleGlobalStats)
	mux.HandleFunc("GET /v1/stats/messages", s.handleMessageStats)
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *FunnelServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

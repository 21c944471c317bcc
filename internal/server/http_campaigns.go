package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/groblegark/funnel/internal/events"
	"github.com/groblegark/funnel/internal/graph"
	"github.com/groblegark/funnel/internal/idgen"
	"github.com/groblegark/funnel/internal/model"
)

// handleCreateCampaign handles POST /v1/campaigns. When template_id is set,
// the template's graph is cloned into the new campaign.
func (s *FunnelServer) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var campaign model.Campaign
	if err := json.NewDecoder(r.Body).Decode(&campaign); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if campaign.Status == "" {
		campaign.Status = model.CampaignDraft
	}
	if err := model.ValidateCampaign(&campaign); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := idgen.Generate(idgen.PrefixCampaign)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now().UTC()
	campaign.ID = id
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	ctx := r.Context()
	if err := s.store.CreateCampaign(ctx, &campaign); err != nil {
		writeStoreError(w, err)
		return
	}

	if campaign.TemplateID != "" {
		doc, err := s.store.GetTemplateGraph(ctx, campaign.TemplateID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "template graph: "+err.Error())
			return
		}
		if err := s.store.SaveCampaignGraph(ctx, campaign.ID, doc); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	s.publish(ctx, events.TopicCampaignCreated, events.CampaignCreated{Campaign: &campaign})
	writeJSON(w, http.StatusCreated, &campaign)
}

// handleListCampaigns handles GET /v1/campaigns.
func (s *FunnelServer) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListCampaigns(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

// handleGetCampaign handles GET /v1/campaigns/{id}.
func (s *FunnelServer) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.store.GetCampaign(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// handleUpdateCampaign handles PATCH /v1/campaigns/{id}. The request body
// carries the fields to change; absent fields keep their current value.
func (s *FunnelServer) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaign, err := s.store.GetCampaign(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	merged, err := json.Marshal(campaign)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var base map[string]json.RawMessage
	_ = json.Unmarshal(merged, &base)
	for k, v := range patch {
		base[k] = v
	}
	raw, _ := json.Marshal(base)
	var updated model.Campaign
	if err := json.Unmarshal(raw, &updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field value: "+err.Error())
		return
	}
	updated.ID = campaign.ID
	updated.CreatedAt = campaign.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if err := model.ValidateCampaign(&updated); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpdateCampaign(ctx, &updated); err != nil {
		writeStoreError(w, err)
		return
	}

	changes := make(map[string]any, len(patch))
	for k, v := range patch {
		changes[k] = json.RawMessage(v)
	}
	s.publish(ctx, events.TopicCampaignUpdated, events.CampaignUpdated{Campaign: &updated, Changes: changes})
	writeJSON(w, http.StatusOK, &updated)
}

// handleGetCampaignGraph handles GET /v1/campaigns/{id}/graph.
func (s *FunnelServer) handleGetCampaignGraph(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetCampaignGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handlePutCampaignGraph handles PUT /v1/campaigns/{id}/graph. The document
// is compiled before saving so malformed graphs are rejected with field
// errors instead of wedging enrolled contacts.
func (s *FunnelServer) handlePutCampaignGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := r.PathValue("id")
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		writeStoreError(w, err)
		return
	}

	doc, g, ok := s.decodeGraph(w, r, campaignID)
	if !ok {
		return
	}
	if err := s.store.SaveCampaignGraph(ctx, campaignID, doc); err != nil {
		writeStoreError(w, err)
		return
	}
	if s.engine != nil {
		s.engine.InvalidateGraph(campaignID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  g.Version,
		"nodes":    len(g.Nodes),
		"edges":    len(g.Edges),
		"warnings": g.Warnings,
	})
}

// decodeGraph parses and compiles a graph document from the request body.
func (s *FunnelServer) decodeGraph(w http.ResponseWriter, r *http.Request, ownerID string) (model.GraphDoc, *graph.Graph, bool) {
	var doc model.GraphDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return doc, nil, false
	}
	g, err := graph.Load(ownerID, doc)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid graph", "fields": ve.Errors})
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return doc, nil, false
	}
	return doc, g, true
}

// handleCampaignStats handles GET /v1/campaigns/{id}/stats: the funnel
// counter for each contact status.
func (s *FunnelServer) handleCampaignStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := r.PathValue("id")
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		writeStoreError(w, err)
		return
	}
	counts, err := s.store.CountContactsByStatus(ctx, campaignID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign_id": campaignID, "statuses": counts})
}

// handleGlobalStats handles GET /v1/stats: per-campaign funnel counters.
func (s *FunnelServer) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaigns, err := s.store.ListCampaigns(ctx)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	type campaignStats struct {
		CampaignID string               `json:"campaign_id"`
		Name       string               `json:"name"`
		Statuses   map[model.Status]int `json:"statuses"`
	}
	out := make([]campaignStats, 0, len(campaigns))
	for _, c := range campaigns {
		counts, err := s.store.CountContactsByStatus(ctx, c.ID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out = append(out, campaignStats{CampaignID: c.ID, Name: c.Name, Statuses: counts})
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": out})
}

// handleCreateTemplate handles POST /v1/templates.
func (s *FunnelServer) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl model.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if tpl.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := idgen.Generate(idgen.PrefixTemplate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now().UTC()
	tpl.ID = id
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	if err := s.store.CreateTemplate(r.Context(), &tpl); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &tpl)
}

// handleListTemplates handles GET /v1/templates.
func (s *FunnelServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.ListTemplates(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// handleGetTemplate handles GET /v1/templates/{id}.
func (s *FunnelServer) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.store.GetTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// handleGetTemplateGraph handles GET /v1/templates/{id}/graph.
func (s *FunnelServer) handleGetTemplateGraph(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetTemplateGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handlePutTemplateGraph handles PUT /v1/templates/{id}/graph.
func (s *FunnelServer) handlePutTemplateGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := r.PathValue("id")
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		writeStoreError(w, err)
		return
	}
	doc, g, ok := s.decodeGraph(w, r, templateID)
	if !ok {
		return
	}
	if err := s.store.SaveTemplateGraph(ctx, templateID, doc); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  g.Version,
		"nodes":    len(g.Nodes),
		"edges":    len(g.Edges),
		"warnings": g.Warnings,
	})
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/groblegark/funnel/internal/model"
)

func TestCreateCampaignSendsTokenAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/campaigns" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("authorization = %q", got)
		}
		var c model.Campaign
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		c.ID = "cp-abc123"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(&c)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sekrit")
	created, err := c.CreateCampaign(context.Background(), &model.Campaign{Name: "Denver Dinner"})
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	if created.ID != "cp-abc123" || created.Name != "Denver Dinner" {
		t.Errorf("created = %+v", created)
	}
}

func TestErrorResponsesBecomeAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.GetContact(context.Background(), "ct-missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "not found" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestResumeContactPostsNodeKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/contacts/ct-1/resume" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["node_key"] != "followup" {
			t.Errorf("node_key = %q", body["node_key"])
		}
		_ = json.NewEncoder(w).Encode(&model.Contact{ID: "ct-1", CurrentNodeKey: "followup"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	contact, err := c.ResumeContact(context.Background(), "ct-1", "followup")
	if err != nil {
		t.Fatalf("ResumeContact: %v", err)
	}
	if contact.CurrentNodeKey != "followup" {
		t.Errorf("contact = %+v", contact)
	}
}

func TestListUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"campaigns": []*model.Campaign{{ID: "cp-1"}, {ID: "cp-2"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	campaigns, err := c.ListCampaigns(context.Background())
	if err != nil {
		t.Fatalf("ListCampaigns: %v", err)
	}
	if len(campaigns) != 2 {
		t.Errorf("len = %d, want 2", len(campaigns))
	}
}

func TestBulkCreateContacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/campaigns/cp-1/contacts/bulk" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(&BulkCreateResponse{
			Created: []*model.Contact{{ID: "ct-1"}},
			Failed:  []BulkRowError{{Index: 1, Error: "name: is required"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	resp, err := c.BulkCreateContacts(context.Background(), "cp-1", []model.Contact{{Name: "Jane"}, {}})
	if err != nil {
		t.Fatalf("BulkCreateContacts: %v", err)
	}
	if len(resp.Created) != 1 || len(resp.Failed) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

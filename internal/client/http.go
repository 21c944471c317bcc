package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/groblegark/funnel/internal/model"
)

// HTTPClient implements FunnelClient using the funnel HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Campaigns ---

func (c *HTTPClient) CreateCampaign(ctx context.Context, campaign *model.Campaign) (*model.Campaign, error) {
	var created model.Campaign
	if err := c.doJSON(ctx, http.MethodPost, "/v1/campaigns", campaign, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *HTTPClient) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := c.doJSON(ctx, http.MethodGet, "/v1/campaigns/"+url.PathEscape(id), nil, &campaign); err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (c *HTTPClient) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	var resp struct {
		Campaigns []*model.Campaign `json:"campaigns"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/campaigns", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Campaigns, nil
}

func (c *HTTPClient) UpdateCampaign(ctx context.Context, id string, patch map[string]any) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/campaigns/"+url.PathEscape(id), patch, &campaign); err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (c *HTTPClient) GetGraph(ctx context.Context, campaignID string) (model.GraphDoc, error) {
	var doc model.GraphDoc
	err := c.doJSON(ctx, http.MethodGet, "/v1/campaigns/"+url.PathEscape(campaignID)+"/graph", nil, &doc)
	return doc, err
}

func (c *HTTPClient) PutGraph(ctx context.Context, campaignID string, doc model.GraphDoc) (*PutGraphResponse, error) {
	var resp PutGraphResponse
	if err := c.doJSON(ctx, http.MethodPut, "/v1/campaigns/"+url.PathEscape(campaignID)+"/graph", doc, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error) {
	var stats CampaignStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/campaigns/"+url.PathEscape(campaignID)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// --- Contacts ---

func (c *HTTPClient) CreateContact(ctx context.Context, campaignID string, contact *model.Contact, enroll bool) (*model.Contact, error) {
	path := "/v1/campaigns/" + url.PathEscape(campaignID) + "/contacts"
	if enroll {
		path += "?enroll=true"
	}
	var created model.Contact
	if err := c.doJSON(ctx, http.MethodPost, path, contact, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *HTTPClient) BulkCreateContacts(ctx context.Context, campaignID string, contacts []model.Contact) (*BulkCreateResponse, error) {
	body := map[string]any{"contacts": contacts}
	var resp BulkCreateResponse
	path := "/v1/campaigns/" + url.PathEscape(campaignID) + "/contacts/bulk"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListContacts(ctx context.Context, campaignID string) ([]*model.Contact, error) {
	var resp struct {
		Contacts []*model.Contact `json:"contacts"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/campaigns/"+url.PathEscape(campaignID)+"/contacts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

func (c *HTTPClient) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	if err := c.doJSON(ctx, http.MethodGet, "/v1/contacts/"+url.PathEscape(id), nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *HTTPClient) UpdateContact(ctx context.Context, id string, patch map[string]any) (*model.Contact, error) {
	var contact model.Contact
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/contacts/"+url.PathEscape(id), patch, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *HTTPClient) DeleteContact(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/contacts/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) EnrollContact(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contacts/"+url.PathEscape(id)+"/enroll", nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *HTTPClient) ResumeContact(ctx context.Context, id, nodeKey string) (*model.Contact, error) {
	body := map[string]string{"node_key": nodeKey}
	var contact model.Contact
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contacts/"+url.PathEscape(id)+"/resume", body, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *HTTPClient) CancelContact(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contacts/"+url.PathEscape(id)+"/cancel", nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *HTTPClient) RecordContactEvent(ctx context.Context, id, name string, status model.Status) (*model.Contact, error) {
	body := map[string]any{"name": name}
	if status != "" {
		body["status"] = status
	}
	var contact model.Contact
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contacts/"+url.PathEscape(id)+"/events", body, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// --- Messaging ---

func (c *HTTPClient) SendMessage(ctx context.Context, contactID string, req *SendRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contacts/"+url.PathEscape(contactID)+"/send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	var resp struct {
		Conversations []*model.Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *HTTPClient) GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	var resp struct {
		Messages []*model.Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *HTTPClient) RecentMessages(ctx context.Context, limit int) ([]*model.Message, error) {
	path := "/v1/messages/recent"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Messages []*model.Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

var _ FunnelClient = (*HTTPClient)(nil)

// Package memory provides an in-memory store.Store used by tests and by
// ephemeral single-process deployments.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store"
)

// Store is an in-memory implementation of store.Store. All methods are safe
// for concurrent use.
type Store struct {
	mu sync.RWMutex

	campaigns        map[string]*model.Campaign
	templates        map[string]*model.Template
	contentTemplates map[string]*model.ContentTemplate
	graphs           map[string]model.GraphDoc // key: kind + "/" + ownerID
	contacts         map[string]*model.Contact
	conversations    map[string]*model.Conversation
	messages         map[string][]*model.Message // key: conversation ID
	events           map[string][]*model.ContactEvent
	nextEventID      int64
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		campaigns:        make(map[string]*model.Campaign),
		templates:        make(map[string]*model.Template),
		contentTemplates: make(map[string]*model.ContentTemplate),
		graphs:           make(map[string]model.GraphDoc),
		contacts:         make(map[string]*model.Contact),
		conversations:    make(map[string]*model.Conversation),
		messages:         make(map[string][]*model.Message),
		events:           make(map[string][]*model.ContactEvent),
	}
}

func (s *Store) CreateCampaign(_ context.Context, c *model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *Store) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListCampaigns(_ context.Context) ([]*model.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateCampaign(_ context.Context, c *model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[c.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *Store) SaveTemplateGraph(_ context.Context, templateID string, doc model.GraphDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs["template/"+templateID] = doc
	return nil
}

func (s *Store) GetTemplateGraph(_ context.Context, templateID string) (model.GraphDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphs["template/"+templateID], nil
}

func (s *Store) SaveCampaignGraph(_ context.Context, campaignID string, doc model.GraphDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs["campaign/"+campaignID] = doc
	return nil
}

func (s *Store) GetCampaignGraph(_ context.Context, campaignID string) (model.GraphDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphs["campaign/"+campaignID], nil
}

func (s *Store) CreateTemplate(_ context.Context, t *model.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTemplates(_ context.Context) ([]*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// PutContentTemplate seeds a named content template.
func (s *Store) PutContentTemplate(t *model.ContentTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.contentTemplates[t.Name] = &cp
}

func (s *Store) GetContentTemplate(_ context.Context, name string) (*model.ContentTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.contentTemplates[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (s *Store) CreateContact(_ context.Context, c *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contacts[c.ID] = &cp
	return nil
}

func (s *Store) GetContact(_ context.Context, id string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListContacts(_ context.Context, campaignID string) ([]*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Contact
	for _, c := range s.contacts {
		if c.CampaignID == campaignID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateContact(_ context.Context, c *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.contacts[c.ID]
	if !ok {
		return sql.ErrNoRows
	}
	cp := *c
	// Preserve engine-owned cursor fields.
	cp.CurrentNodeKey = cur.CurrentNodeKey
	cp.EnteredAt = cur.EnteredAt
	cp.Automation = cur.Automation
	cp.Intercepted = cur.Intercepted
	s.contacts[c.ID] = &cp
	return nil
}

func (s *Store) DeleteContact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.contacts, id)
	return nil
}

func (s *Store) FindContactByPhoneDigits(_ context.Context, digits string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.Contact
	for _, c := range s.contacts {
		if c.Phone == "" || !strings.Contains(digitsOf(c.Phone), digits) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	cp := *best
	return &cp, nil
}

func (s *Store) SetIntercepted(_ context.Context, contactID string, intercepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Intercepted = intercepted
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdateCursor(_ context.Context, contactID, nodeKey string, enteredAt time.Time, state model.AutomationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return sql.ErrNoRows
	}
	c.CurrentNodeKey = nodeKey
	t := enteredAt
	c.EnteredAt = &t
	c.Automation = state
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) EnsureConversation(_ context.Context, conv *model.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ContactID == conv.ContactID && c.Channel == conv.Channel {
			return c.ID, nil
		}
	}
	cp := model.Conversation{ID: conv.ID, ContactID: conv.ContactID, Channel: conv.Channel, CreatedAt: conv.CreatedAt}
	s.conversations[conv.ID] = &cp
	return conv.ID, nil
}

func (s *Store) ListConversations(_ context.Context) ([]*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		cp := *c
		cp.Messages = append([]*model.Message(nil), s.messages[c.ID]...)
		if contact, ok := s.contacts[c.ContactID]; ok {
			cc := *contact
			cp.Contact = &cc
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AddMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return sql.ErrNoRows
	}
	cp := *m
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &cp)
	return nil
}

func (s *Store) GetMessages(_ context.Context, conversationID string) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Message(nil), s.messages[conversationID]...), nil
}

func (s *Store) ListRecentMessages(_ context.Context, limit int) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*model.Message
	for _, msgs := range s.messages {
		all = append(all, msgs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) RecordContactEvent(_ context.Context, ev *model.ContactEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	ev.ID = s.nextEventID
	cp := *ev
	s.events[ev.ContactID] = append(s.events[ev.ContactID], &cp)
	return nil
}

func (s *Store) ListContactEvents(_ context.Context, contactID string, since time.Time) ([]*model.ContactEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ContactEvent
	for _, ev := range s.events[contactID] {
		if !ev.CreatedAt.Before(since) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CountContactsByStatus(_ context.Context, campaignID string) (map[model.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.Status]int)
	for _, c := range s.contacts {
		if c.CampaignID == campaignID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

func (s *Store) Close() error { return nil }

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

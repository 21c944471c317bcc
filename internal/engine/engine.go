// Package engine advances enrolled contacts through their campaign's funnel
// graph: it evaluates edge conditions, fires send-node dispatches, and
// schedules future evaluations on a time-ordered due queue.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/events"
	"github.com/groblegark/funnel/internal/graph"
	"github.com/groblegark/funnel/internal/ledger"
	"github.com/groblegark/funnel/internal/model"
	"github.com/groblegark/funnel/internal/store"
)

// MaxTransitions caps how many edges a single evaluation pass may follow.
// Graphs may contain cycles; a contact that hits the cap is halted for
// manual review rather than looping forever.
const MaxTransitions = 50

// ErrCycleLimitExceeded is recorded when a contact hits MaxTransitions.
var ErrCycleLimitExceeded = errors.New("cycle limit exceeded")

const defaultWorkers = 4

// Engine drives contact automation. Per-contact locks serialize evaluation,
// so two workers never advance the same contact concurrently.
type Engine struct {
	store      store.Store
	dispatcher *dispatch.Dispatcher
	ledger     *ledger.Ledger
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
	workers    int
	httpClient *http.Client

	mu    sync.Mutex
	queue *dueQueue

	graphMu sync.Mutex
	graphs  map[string]*graph.Graph

	locks sync.Map // contact ID -> *sync.Mutex

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the evaluation worker pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the engine's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. Call Start to begin processing the due queue.
func New(st store.Store, d *dispatch.Dispatcher, l *ledger.Ledger, pub events.Publisher, opts ...Option) *Engine {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	e := &Engine{
		store:      st,
		dispatcher: d,
		ledger:     l,
		publisher:  pub,
		logger:     slog.Default(),
		now:        time.Now,
		workers:    defaultWorkers,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      newDueQueue(),
		graphs:     make(map[string]*graph.Graph),
		wakeCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the scheduler and worker pool. They run until Stop is
// called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	jobs := make(chan string)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(jobs)
		e.runScheduler(ctx, jobs)
	}()

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for contactID := range jobs {
				e.process(ctx, contactID)
			}
		}()
	}
}

// Stop shuts down the scheduler and waits for in-flight evaluations.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Engine) runScheduler(ctx context.Context, jobs chan<- string) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		e.mu.Lock()
		wait := time.Hour
		if next, ok := e.queue.nextAt(); ok {
			wait = time.Until(next)
			if wait < 0 {
				wait = 0
			}
		}
		e.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-e.wakeCh:
		case <-timer.C:
		}

		e.mu.Lock()
		due := e.queue.popDue(e.now())
		e.mu.Unlock()
		for _, contactID := range due {
			select {
			case jobs <- contactID:
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			}
		}
	}
}

// schedule enqueues the contact for evaluation no later than at.
func (e *Engine) schedule(contactID string, at time.Time) {
	e.mu.Lock()
	e.queue.schedule(contactID, at)
	e.mu.Unlock()
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// Wake queues the contact for immediate evaluation.
func (e *Engine) Wake(contactID string) {
	e.schedule(contactID, e.now())
}

// NotifyEvent records a named event for the contact and wakes it so `on:`
// edges can fire.
func (e *Engine) NotifyEvent(ctx context.Context, contactID, name string) error {
	ev := &model.ContactEvent{ContactID: contactID, Name: name, CreatedAt: e.now().UTC()}
	if err := e.store.RecordContactEvent(ctx, ev); err != nil {
		return fmt.Errorf("record contact event: %w", err)
	}
	e.Wake(contactID)
	return nil
}

// InvalidateGraph drops the cached snapshot for a campaign. The next
// evaluation reloads from the store.
func (e *Engine) InvalidateGraph(campaignID string) {
	e.graphMu.Lock()
	delete(e.graphs, campaignID)
	e.graphMu.Unlock()
}

func (e *Engine) campaignGraph(ctx context.Context, campaignID string) (*graph.Graph, error) {
	e.graphMu.Lock()
	g, ok := e.graphs[campaignID]
	e.graphMu.Unlock()
	if ok {
		return g, nil
	}

	doc, err := e.store.GetCampaignGraph(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign graph: %w", err)
	}
	g, err = graph.Load(campaignID, doc)
	if err != nil {
		return nil, fmt.Errorf("compile campaign graph: %w", err)
	}
	for _, w := range g.Warnings {
		e.logger.Warn("graph warning", "campaign", campaignID, "warning", w)
	}

	e.graphMu.Lock()
	e.graphs[campaignID] = g
	e.graphMu.Unlock()
	return g, nil
}

func (e *Engine) contactLock(contactID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(contactID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Enroll places the contact at the campaign graph's entry node and runs the
// first evaluation pass immediately.
func (e *Engine) Enroll(ctx context.Context, contactID string) error {
	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	contact, err := e.store.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	g, err := e.campaignGraph(ctx, contact.CampaignID)
	if err != nil {
		return err
	}
	entry := g.Entry()
	if entry == nil {
		return fmt.Errorf("campaign %s has an empty graph", contact.CampaignID)
	}

	now := e.now().UTC()
	if err := e.store.UpdateCursor(ctx, contactID, entry.Key, now, model.AutomationActive); err != nil {
		return fmt.Errorf("set entry cursor: %w", err)
	}
	contact.CurrentNodeKey = entry.Key
	contact.EnteredAt = &now
	contact.Automation = model.AutomationActive

	e.publish(ctx, events.TopicContactEnrolled, events.ContactEnrolled{
		ContactID: contactID, CampaignID: contact.CampaignID, NodeKey: entry.Key,
	})
	e.enterEffects(ctx, g, contact, entry)

	return e.advance(ctx, g, contact)
}

// Resume moves the contact to the given node, clears interception, and
// re-activates automation from there.
func (e *Engine) Resume(ctx context.Context, contactID, nodeKey string) error {
	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	contact, err := e.store.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	g, err := e.campaignGraph(ctx, contact.CampaignID)
	if err != nil {
		return err
	}
	node, ok := g.NodeByKey(nodeKey)
	if !ok {
		return fmt.Errorf("campaign %s has no node %q", contact.CampaignID, nodeKey)
	}

	if contact.Intercepted {
		if err := e.store.SetIntercepted(ctx, contactID, false); err != nil {
			return fmt.Errorf("clear interception: %w", err)
		}
		contact.Intercepted = false
	}

	now := e.now().UTC()
	if err := e.store.UpdateCursor(ctx, contactID, node.Key, now, model.AutomationActive); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	contact.CurrentNodeKey = node.Key
	contact.EnteredAt = &now
	contact.Automation = model.AutomationActive

	e.publish(ctx, events.TopicContactResumed, events.ContactResumed{ContactID: contactID, NodeKey: node.Key})
	e.enterEffects(ctx, g, contact, node)

	return e.advance(ctx, g, contact)
}

// Cancel stops automation for the contact and clears any queued evaluation.
func (e *Engine) Cancel(ctx context.Context, contactID string) error {
	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	e.mu.Lock()
	e.queue.remove(contactID)
	e.mu.Unlock()

	contact, err := e.store.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	now := e.now().UTC()
	if err := e.store.UpdateCursor(ctx, contactID, contact.CurrentNodeKey, now, model.AutomationHalted); err != nil {
		return fmt.Errorf("halt automation: %w", err)
	}
	e.publish(ctx, events.TopicContactHalted, events.ContactHalted{
		ContactID: contactID, NodeKey: contact.CurrentNodeKey, Reason: "cancelled",
	})
	return nil
}

// Intercept pauses the contact's automation. Taking the contact lock here
// serializes the flag write against evaluation, so a pass in flight observes
// it before its next transition.
func (e *Engine) Intercept(ctx context.Context, contactID string) error {
	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.store.SetIntercepted(ctx, contactID, true); err != nil {
		return fmt.Errorf("set interception: %w", err)
	}
	return nil
}

// process is the worker entry point for a queued contact.
func (e *Engine) process(ctx context.Context, contactID string) {
	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	contact, err := e.store.GetContact(ctx, contactID)
	if err != nil {
		e.logger.Warn("loading contact for evaluation", "contact", contactID, "error", err)
		return
	}
	if contact.Intercepted || contact.Automation != model.AutomationActive {
		return
	}
	g, err := e.campaignGraph(ctx, contact.CampaignID)
	if err != nil {
		e.logger.Warn("loading graph for evaluation", "contact", contactID, "error", err)
		return
	}
	if err := e.advance(ctx, g, contact); err != nil {
		e.logger.Warn("advancing contact", "contact", contactID, "error", err)
	}
}

// advance follows eligible edges until the contact blocks, completes, or
// hits the transition cap. The caller must hold the contact's lock.
func (e *Engine) advance(ctx context.Context, g *graph.Graph, contact *model.Contact) error {
	campaign, err := e.store.GetCampaign(ctx, contact.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}

	for steps := 0; steps < MaxTransitions; steps++ {
		// Interception and cancellation can land between transitions (an
		// inbound reply mid-pass, an operator cancel during a released
		// send). Re-read the flags before following another edge.
		if steps > 0 {
			fresh, err := e.store.GetContact(ctx, contact.ID)
			if err != nil {
				return fmt.Errorf("reload contact: %w", err)
			}
			if fresh.Intercepted || fresh.Automation != model.AutomationActive {
				return nil
			}
			contact = fresh
		}

		node, ok := g.NodeByKey(contact.CurrentNodeKey)
		if !ok {
			// Graph was rewritten under the contact; stall until an
			// operator resumes it onto a live node.
			e.logger.Warn("contact cursor points at removed node",
				"contact", contact.ID, "node", contact.CurrentNodeKey)
			return nil
		}

		if node.Type.IsTerminal() {
			return e.complete(ctx, contact, node)
		}

		if node.Type.IsSend() {
			enteredAt := contact.CreatedAt
			if contact.EnteredAt != nil {
				enteredAt = *contact.EnteredAt
			}
			due := sendDue(node, enteredAt, campaignLocation(campaign))
			now := e.now()
			if now.Before(due) {
				e.schedule(contact.ID, due)
				return nil
			}
			if !e.sendRecorded(ctx, contact, node, enteredAt) {
				e.performSend(ctx, campaign, contact, node)
				// performSend drops the contact lock around the provider
				// call; anything may have happened meanwhile. Re-read the
				// cursor before following edges out of this node.
				fresh, err := e.store.GetContact(ctx, contact.ID)
				if err != nil {
					return fmt.Errorf("reload contact: %w", err)
				}
				if fresh.Intercepted || fresh.Automation != model.AutomationActive ||
					fresh.CurrentNodeKey != node.Key {
					return nil
				}
				contact = fresh
			}
		}

		edge, due := e.nextEdge(ctx, g, node, contact, campaign, e.now())
		if edge == nil {
			if !due.IsZero() {
				e.schedule(contact.ID, due)
			}
			return nil
		}

		target := g.NodeAt(edge.To)
		if err := e.transition(ctx, g, contact, node, target); err != nil {
			return err
		}
	}

	// Transition cap reached: halt for manual review, status untouched.
	now := e.now().UTC()
	if err := e.store.UpdateCursor(ctx, contact.ID, contact.CurrentNodeKey, now, model.AutomationHalted); err != nil {
		return fmt.Errorf("halt after cycle limit: %w", err)
	}
	e.publish(ctx, events.TopicContactHalted, events.ContactHalted{
		ContactID: contact.ID, NodeKey: contact.CurrentNodeKey, Reason: ErrCycleLimitExceeded.Error(),
	})
	e.logger.Warn("contact halted", "contact", contact.ID,
		"node", contact.CurrentNodeKey, "reason", ErrCycleLimitExceeded)
	return ErrCycleLimitExceeded
}

func (e *Engine) transition(ctx context.Context, g *graph.Graph, contact *model.Contact, from, to *graph.Node) error {
	now := e.now().UTC()
	if err := e.store.UpdateCursor(ctx, contact.ID, to.Key, now, model.AutomationActive); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	contact.CurrentNodeKey = to.Key
	contact.EnteredAt = &now

	e.publish(ctx, events.TopicContactAdvanced, events.ContactAdvanced{
		ContactID: contact.ID, CampaignID: contact.CampaignID, FromKey: from.Key, ToKey: to.Key,
	})
	e.enterEffects(ctx, g, contact, to)
	return nil
}

func (e *Engine) complete(ctx context.Context, contact *model.Contact, node *graph.Node) error {
	now := e.now().UTC()
	if err := e.store.UpdateCursor(ctx, contact.ID, node.Key, now, model.AutomationCompleted); err != nil {
		return fmt.Errorf("complete automation: %w", err)
	}
	contact.Automation = model.AutomationCompleted
	e.publish(ctx, events.TopicContactCompleted, events.ContactCompleted{
		ContactID: contact.ID, NodeKey: node.Key,
	})
	return nil
}

// enterEffects applies a node's one-shot side effects when a contact lands
// on it. Send-node dispatch is not handled here; it happens in the advance
// loop so scheduled sends can wait without blocking the transition.
func (e *Engine) enterEffects(ctx context.Context, g *graph.Graph, contact *model.Contact, node *graph.Node) {
	switch node.Type {
	case model.NodeStage:
		contact.StageKey = node.Key
		contact.UpdatedAt = e.now().UTC()
		if err := e.store.UpdateContact(ctx, contact); err != nil {
			e.logger.Warn("updating contact stage", "contact", contact.ID, "error", err)
		}
	case model.NodeTask:
		if err := e.NotifyEvent(ctx, contact.ID, "task_created"); err != nil {
			e.logger.Warn("recording task event", "contact", contact.ID, "error", err)
		}
	case model.NodeESign:
		if err := e.NotifyEvent(ctx, contact.ID, "esign_requested"); err != nil {
			e.logger.Warn("recording esign event", "contact", contact.ID, "error", err)
		}
	case model.NodeWebRequest:
		e.fireWebRequest(ctx, contact, node)
	}
}

// sendDue returns the instant a send node's dispatch becomes due. Without a
// schedule the send fires on entry.
func sendDue(node *graph.Node, enteredAt time.Time, loc *time.Location) time.Time {
	if node.Send == nil || node.Send.Schedule == nil {
		return enteredAt
	}
	sched := node.Send.Schedule
	due := enteredAt
	if sched.After != "" {
		if d, err := graph.ParseDuration(sched.After); err == nil {
			due = due.Add(d)
		}
	}
	if sched.AtLocal != "" {
		if hour, minute, err := graph.ParseClock(sched.AtLocal); err == nil {
			due = graph.NextLocal(due, hour, minute, loc)
		}
	}
	return due
}

// sendRecorded reports whether the send node already dispatched during this
// visit. The marker is a contact event, so re-entering the node via a cycle
// sends again while a timer wake does not.
func (e *Engine) sendRecorded(ctx context.Context, contact *model.Contact, node *graph.Node, enteredAt time.Time) bool {
	return e.eventsSince(ctx, contact.ID, enteredAt)["sent:"+node.Key]
}

// performSend resolves content, dispatches through the provider chain, and
// appends the attempt to the ledger. Failures never stop advancement.
func (e *Engine) performSend(ctx context.Context, campaign *model.Campaign, contact *model.Contact, node *graph.Node) {
	channel := node.Type.Channel()
	content := e.resolveContent(ctx, node)

	content.Subject = RenderTags(content.Subject, contact, campaign)
	content.Body = RenderTags(content.Body, contact, campaign)

	dest := contact.Phone
	if channel == model.ChannelEmail {
		dest = contact.Email
	}

	// A provider chain can block for seconds per entry. Release the contact
	// lock for the network wait so Enroll, Resume, and Cancel stay
	// responsive; the caller re-validates the cursor once we return.
	mu := e.contactLock(contact.ID)
	mu.Unlock()
	res := e.dispatcher.Send(ctx, channel, dest, content, dispatch.ContactRef{
		ContactID:  contact.ID,
		CampaignID: campaign.ID,
		CallerID:   campaign.OwnerPhone,
	})
	mu.Lock()

	text := content.Body
	if channel == model.ChannelVoicemail && text == "" {
		text = content.AudioURL
	}
	if _, err := e.ledger.RecordOutbound(ctx, contact.ID, channel, text, res); err != nil {
		e.logger.Warn("recording outbound message", "contact", contact.ID, "error", err)
	}

	ev := &model.ContactEvent{ContactID: contact.ID, Name: "sent:" + node.Key, CreatedAt: e.now().UTC()}
	if err := e.store.RecordContactEvent(ctx, ev); err != nil {
		e.logger.Warn("recording send marker", "contact", contact.ID, "error", err)
	}

	e.logger.Info("dispatched send node",
		"contact", contact.ID, "node", node.Key, "channel", channel,
		"provider", res.Provider, "delivered", res.Delivered)
}

// resolveContent returns the node's outbound content, preferring a named
// content template over inline copy.
func (e *Engine) resolveContent(ctx context.Context, node *graph.Node) dispatch.Content {
	var content dispatch.Content
	if node.Send == nil {
		return content
	}
	if node.Send.Template != "" {
		tpl, err := e.store.GetContentTemplate(ctx, node.Send.Template)
		if err != nil {
			e.logger.Warn("loading content template", "template", node.Send.Template, "error", err)
		} else {
			return dispatch.Content{Subject: tpl.Subject, Body: tpl.Body, AudioURL: tpl.AudioURL}
		}
	}
	if node.Send.Content != nil {
		content = dispatch.Content{
			Subject:  node.Send.Content.Subject,
			Body:     node.Send.Content.Body,
			AudioURL: node.Send.Content.AudioURL,
		}
	}
	return content
}

// fireWebRequest performs the node's HTTP call in the background; the
// contact advances regardless of the response.
func (e *Engine) fireWebRequest(ctx context.Context, contact *model.Contact, node *graph.Node) {
	cfg := node.WebRequest
	if cfg == nil || cfg.URL == "" {
		return
	}
	campaign, err := e.store.GetCampaign(ctx, contact.CampaignID)
	if err != nil {
		e.logger.Warn("loading campaign for web request", "contact", contact.ID, "error", err)
		campaign = nil
	}
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	body := RenderTags(cfg.Body, contact, campaign)

	go func() {
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, method, cfg.URL, bytes.NewBufferString(body))
		if err != nil {
			e.logger.Warn("building web request", "node", node.Key, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			e.logger.Warn("web request failed", "node", node.Key, "url", cfg.URL, "error", err)
			return
		}
		resp.Body.Close()
		e.logger.Info("web request sent", "node", node.Key, "url", cfg.URL, "status", resp.StatusCode)
	}()
}

func (e *Engine) publish(ctx context.Context, topic string, event any) {
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		e.logger.Warn("publishing event", "topic", topic, "error", err)
	}
}

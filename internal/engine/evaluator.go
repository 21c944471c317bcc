package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/groblegark/funnel/internal/expr"
	"github.com/groblegark/funnel/internal/graph"
	"github.com/groblegark/funnel/internal/model"
)

// nextEdge scans the node's outgoing edges in evaluation order and returns
// the first eligible one. When no edge is eligible yet, the second return
// value carries the earliest future instant at which a time-gated edge could
// become eligible (zero if the node only waits on events or labels).
func (e *Engine) nextEdge(ctx context.Context, g *graph.Graph, node *graph.Node, contact *model.Contact, campaign *model.Campaign, now time.Time) (*graph.Edge, time.Time) {
	enteredAt := contact.CreatedAt
	if contact.EnteredAt != nil {
		enteredAt = *contact.EnteredAt
	}
	loc := campaignLocation(campaign)

	var (
		label       string
		labelDone   bool
		events      map[string]bool
		eventsDone  bool
		earliestDue time.Time
	)

	noteDue := func(at time.Time) {
		if earliestDue.IsZero() || at.Before(earliestDue) {
			earliestDue = at
		}
	}

	edges := g.Outgoing(node.Key)
	for i := range edges {
		edge := &edges[i]
		cond := edge.Cond

		switch {
		case cond.IsDefault():
			return edge, time.Time{}

		case cond.Label != "":
			if !labelDone {
				label = e.decisionLabel(node, contact, campaign)
				labelDone = true
			}
			if cond.Label == label {
				return edge, time.Time{}
			}

		case cond.After != "":
			d, err := graph.ParseDuration(cond.After)
			if err != nil {
				continue // validated at load; unreachable for stored graphs
			}
			due := enteredAt.Add(d)
			if !now.Before(due) {
				return edge, time.Time{}
			}
			noteDue(due)

		case cond.AtLocal != "":
			hour, minute, err := graph.ParseClock(cond.AtLocal)
			if err != nil {
				continue
			}
			due := graph.NextLocal(enteredAt, hour, minute, loc)
			if !now.Before(due) {
				return edge, time.Time{}
			}
			noteDue(due)

		case cond.On != "":
			if !eventsDone {
				events = e.eventsSince(ctx, contact.ID, enteredAt)
				eventsDone = true
			}
			if events[cond.On] {
				return edge, time.Time{}
			}
		}
	}
	return nil, earliestDue
}

// decisionLabel runs the node's rules in declaration order and returns the
// label of the first rule that evaluates true. Rules that fail to evaluate
// are skipped, so a bad reference degrades to the default edge instead of
// wedging the contact.
func (e *Engine) decisionLabel(node *graph.Node, contact *model.Contact, campaign *model.Campaign) string {
	if node.Decision == nil {
		return ""
	}
	scope := buildScope(contact, campaign)
	for i, rule := range node.Rules {
		ok, err := rule.Eval(scope)
		if err != nil {
			e.logger.Warn("decision rule evaluation failed",
				"node", node.Key, "rule", node.Decision.Rules[i].Label, "error", err)
			continue
		}
		if ok {
			return node.Decision.Rules[i].Label
		}
	}
	return ""
}

// eventsSince returns the set of event names recorded for the contact since
// the given time. Store errors degrade to an empty set.
func (e *Engine) eventsSince(ctx context.Context, contactID string, since time.Time) map[string]bool {
	evs, err := e.store.ListContactEvents(ctx, contactID, since)
	if err != nil {
		e.logger.Warn("listing contact events", "contact", contactID, "error", err)
		return nil
	}
	names := make(map[string]bool, len(evs))
	for _, ev := range evs {
		names[ev.Name] = true
	}
	return names
}

// buildScope exposes contact and campaign merge fields to rule expressions,
// plus the contact's free-form attributes so rules can reference imported
// columns like contact.age.
func buildScope(contact *model.Contact, campaign *model.Campaign) expr.Scope {
	scope := expr.Scope{
		Contact:  make(map[string]cty.Value),
		Campaign: make(map[string]cty.Value),
	}
	if contact != nil {
		for k, v := range contact.MergeFields() {
			scope.Contact[k] = expr.StringVal(v)
		}
		scope.Contact["intercepted"] = expr.BoolVal(contact.Intercepted)
		for k, v := range decodeAttributes(contact.Attributes) {
			scope.Contact[k] = v
		}
	}
	if campaign != nil {
		for k, v := range campaign.MergeFields() {
			scope.Campaign[k] = expr.StringVal(v)
		}
	}
	return scope
}

// decodeAttributes maps the contact's attributes JSON object into cty values.
// Non-scalar values are ignored.
func decodeAttributes(raw []byte) map[string]cty.Value {
	if len(raw) == 0 {
		return nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil
	}
	out := make(map[string]cty.Value, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out[k] = expr.StringVal(val)
		case float64:
			out[k] = expr.NumberVal(val)
		case bool:
			out[k] = expr.BoolVal(val)
		}
	}
	return out
}

func campaignLocation(campaign *model.Campaign) *time.Location {
	if campaign == nil || campaign.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(campaign.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Package graph compiles funnel graph documents into immutable, validated
// snapshots the engine can evaluate without further decoding.
package graph

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/groblegark/funnel/internal/expr"
	"github.com/groblegark/funnel/internal/model"
)

// Node is a compiled graph node. Exactly one of Send or Decision is non-nil
// for node types that carry config.
type Node struct {
	Key        string
	Type       model.NodeType
	Name       string
	Send       *model.SendConfig
	Decision   *model.DecisionConfig
	Rules      []*expr.Rule // compiled decision rules, parallel to Decision.Rules
	WebRequest *model.WebRequestConfig
	Pos        *model.Position
}

// Edge is a compiled directed transition, addressed by node index.
type Edge struct {
	From int
	To   int
	Cond model.Condition
}

// Graph is an immutable snapshot of a campaign's funnel for one version.
// The authoring UI replaces the whole snapshot on save; in-flight
// evaluations keep working against the version they loaded.
type Graph struct {
	Version    string
	CampaignID string
	Nodes      []Node
	Edges      []Edge

	byKey map[string]int
	// out holds edge indices per node, declaration order preserved except
	// that default (empty-condition) edges sort last so they act as the
	// fallback during eligibility scans.
	out   [][]int
	entry int

	Warnings []string
}

// Load compiles and validates a graph document. It returns a
// *model.ValidationError when node keys collide, an edge references a
// missing node, or per-type config is malformed. Cycles are legal; the
// engine's transition cap guards against runaway loops.
func Load(campaignID string, doc model.GraphDoc) (*Graph, error) {
	var ve model.ValidationError

	g := &Graph{
		Version:    uuid.NewString(),
		CampaignID: campaignID,
		byKey:      make(map[string]int, len(doc.Nodes)),
	}

	for i, spec := range doc.Nodes {
		if spec.ID == "" {
			ve.Add("nodes", "node %d has no id", i)
			continue
		}
		if _, dup := g.byKey[spec.ID]; dup {
			ve.Add("nodes", "duplicate node key %q", spec.ID)
			continue
		}
		if !spec.Type.IsValid() {
			ve.Add("nodes", "node %q has unknown type %q", spec.ID, spec.Type)
			continue
		}
		node := Node{Key: spec.ID, Type: spec.Type, Name: spec.Name, Pos: spec.Pos}
		decodeConfig(&node, spec.Config, &ve)
		g.byKey[spec.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, node)
	}

	incoming := make([]int, len(g.Nodes))
	g.out = make([][]int, len(g.Nodes))
	for i, spec := range doc.Edges {
		from, okFrom := g.byKey[spec.From]
		to, okTo := g.byKey[spec.To]
		if !okFrom {
			ve.Add("edges", "edge %d references unknown node %q", i, spec.From)
		}
		if !okTo {
			ve.Add("edges", "edge %d references unknown node %q", i, spec.To)
		}
		if !okFrom || !okTo {
			continue
		}
		cond := model.Condition{}
		if spec.Condition != nil {
			cond = *spec.Condition
		}
		validateCondition(i, cond, &ve)
		g.out[from] = append(g.out[from], len(g.Edges))
		g.Edges = append(g.Edges, Edge{From: from, To: to, Cond: cond})
		incoming[to]++
	}

	if ve.HasErrors() {
		return nil, &ve
	}

	// Default edges sort last per node; the stable sort keeps declaration
	// order inside each partition.
	for i := range g.out {
		sort.SliceStable(g.out[i], func(a, b int) bool {
			da := g.Edges[g.out[i][a]].Cond.IsDefault()
			db := g.Edges[g.out[i][b]].Cond.IsDefault()
			return !da && db
		})
	}

	// Entry node: no incoming edges. Multiple candidates is a load-time
	// warning, not an error; the first declared wins.
	g.entry = -1
	for i := range g.Nodes {
		if incoming[i] == 0 {
			if g.entry == -1 {
				g.entry = i
			} else {
				g.Warnings = append(g.Warnings,
					"multiple entry candidates: "+g.Nodes[g.entry].Key+" and "+g.Nodes[i].Key)
			}
		}
	}
	if len(g.Nodes) > 0 && g.entry == -1 {
		g.Warnings = append(g.Warnings, "no entry node: every node has incoming edges")
		g.entry = 0
	}

	return g, nil
}

func decodeConfig(node *Node, raw json.RawMessage, ve *model.ValidationError) {
	switch {
	case node.Type.IsSend():
		cfg := &model.SendConfig{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, cfg); err != nil {
				ve.Add("nodes", "node %q: malformed send config: %v", node.Key, err)
				return
			}
		}
		if cfg.Schedule != nil {
			if cfg.Schedule.After != "" {
				if _, err := ParseDuration(cfg.Schedule.After); err != nil {
					ve.Add("nodes", "node %q: schedule.after: %v", node.Key, err)
				}
			}
			if cfg.Schedule.AtLocal != "" {
				if _, _, err := ParseClock(cfg.Schedule.AtLocal); err != nil {
					ve.Add("nodes", "node %q: schedule.at_local: %v", node.Key, err)
				}
			}
		}
		node.Send = cfg
	case node.Type == model.NodeDecision:
		cfg := &model.DecisionConfig{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, cfg); err != nil {
				ve.Add("nodes", "node %q: malformed decision config: %v", node.Key, err)
				return
			}
		}
		for _, rule := range cfg.Rules {
			if rule.Label == "" {
				ve.Add("nodes", "node %q: decision rule with empty label", node.Key)
				continue
			}
			compiled, err := expr.Parse(rule.Expr)
			if err != nil {
				ve.Add("nodes", "node %q: rule %q: %v", node.Key, rule.Label, err)
				continue
			}
			node.Rules = append(node.Rules, compiled)
		}
		node.Decision = cfg
	case node.Type == model.NodeWebRequest:
		cfg := &model.WebRequestConfig{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, cfg); err != nil {
				ve.Add("nodes", "node %q: malformed web_request config: %v", node.Key, err)
				return
			}
		}
		if cfg.URL == "" {
			ve.Add("nodes", "node %q: web_request requires a url", node.Key)
			return
		}
		node.WebRequest = cfg
	}
}

func validateCondition(i int, cond model.Condition, ve *model.ValidationError) {
	// The evaluator treats predicates as mutually exclusive; a condition
	// combining them would silently drop all but one, so reject it here.
	set := 0
	for _, v := range []string{cond.Label, cond.After, cond.AtLocal, cond.On} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		ve.Add("edges", "edge %d: condition sets more than one of label, after, at_local, on", i)
		return
	}
	if cond.After != "" {
		if _, err := ParseDuration(cond.After); err != nil {
			ve.Add("edges", "edge %d: after: %v", i, err)
		}
	}
	if cond.AtLocal != "" {
		if _, _, err := ParseClock(cond.AtLocal); err != nil {
			ve.Add("edges", "edge %d: at_local: %v", i, err)
		}
	}
}

// NodeByKey returns the node with the given key.
func (g *Graph) NodeByKey(key string) (*Node, bool) {
	i, ok := g.byKey[key]
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// Entry returns the graph's entry node, or nil for an empty graph.
func (g *Graph) Entry() *Node {
	if g.entry < 0 || g.entry >= len(g.Nodes) {
		return nil
	}
	return &g.Nodes[g.entry]
}

// Outgoing returns the edges leaving the node with the given key, in
// evaluation order (declaration order, defaults last).
func (g *Graph) Outgoing(key string) []Edge {
	i, ok := g.byKey[key]
	if !ok {
		return nil
	}
	edges := make([]Edge, 0, len(g.out[i]))
	for _, ei := range g.out[i] {
		edges = append(edges, g.Edges[ei])
	}
	return edges
}

// NodeAt returns the node at the given index.
func (g *Graph) NodeAt(i int) *Node {
	return &g.Nodes[i]
}

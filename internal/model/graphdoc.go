package model

import "encoding/json"

// NodeType categorizes a funnel graph node.
type NodeType string

const (
	NodeEmailSend     NodeType = "email_send"
	NodeSMSSend       NodeType = "sms_send"
	NodeVoicemailDrop NodeType = "voicemail_drop"
	NodeWait          NodeType = "wait"
	NodeDecision      NodeType = "decision"
	NodeTask          NodeType = "task"
	NodeWebRequest    NodeType = "web_request"
	NodeESign         NodeType = "esign"
	NodeGoal          NodeType = "goal"
	NodeExit          NodeType = "exit"
	NodeStage         NodeType = "stage"
)

// String returns the string representation of the node type.
func (t NodeType) String() string {
	return string(t)
}

// IsValid checks whether the node type is a known value.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeEmailSend, NodeSMSSend, NodeVoicemailDrop, NodeWait, NodeDecision,
		NodeTask, NodeWebRequest, NodeESign, NodeGoal, NodeExit, NodeStage:
		return true
	}
	return false
}

// IsSend reports whether the node type dispatches through a channel provider.
func (t NodeType) IsSend() bool {
	return t == NodeEmailSend || t == NodeSMSSend || t == NodeVoicemailDrop
}

// IsTerminal reports whether reaching the node completes automation.
func (t NodeType) IsTerminal() bool {
	return t == NodeGoal || t == NodeExit
}

// Channel returns the dispatch channel for a send node type.
func (t NodeType) Channel() Channel {
	switch t {
	case NodeEmailSend:
		return ChannelEmail
	case NodeSMSSend:
		return ChannelSMS
	case NodeVoicemailDrop:
		return ChannelVoicemail
	}
	return ""
}

// GraphDoc is the wire shape of a funnel graph as the authoring UI
// saves and loads it.
type GraphDoc struct {
	Nodes []NodeSpec `json:"nodes"`
	Edges []EdgeSpec `json:"edges"`
}

// NodeSpec is one node as declared in a graph document. Config is decoded
// into a type-specific variant at graph load time.
type NodeSpec struct {
	ID     string          `json:"id"`
	Type   NodeType        `json:"type"`
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config,omitempty"`
	Pos    *Position       `json:"pos,omitempty"`
}

// EdgeSpec is one directed transition as declared in a graph document.
type EdgeSpec struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Condition *Condition `json:"condition,omitempty"`
}

// Condition gates an edge. At most one of the predicate fields is set; a
// condition with no fields (or a nil Condition) is the always-true default.
type Condition struct {
	Label   string `json:"label,omitempty"`    // decision-rule label reference
	After   string `json:"after,omitempty"`    // ISO-8601 duration, e.g. "PT10M", "P1D"
	AtLocal string `json:"at_local,omitempty"` // wall-clock "HH:MM" in the campaign timezone
	On      string `json:"on,omitempty"`       // event name, e.g. "rsvp_received"
}

// IsDefault reports whether the condition is the always-true fallback.
func (c *Condition) IsDefault() bool {
	return c == nil || (c.Label == "" && c.After == "" && c.AtLocal == "" && c.On == "")
}

// Position is a node's location on the authoring canvas. The engine ignores
// it but round-trips it for the UI.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SendSchedule delays a send node's content-specific timing.
type SendSchedule struct {
	After   string `json:"after,omitempty"`
	AtLocal string `json:"at_local,omitempty"`
}

// SendContent is inline content for a send node.
type SendContent struct {
	Subject  string `json:"subject,omitempty"`
	Body     string `json:"body,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// SendConfig is the config variant for email_send, sms_send and
// voicemail_drop nodes: either a template reference or inline content.
type SendConfig struct {
	Template string        `json:"template,omitempty"`
	Content  *SendContent  `json:"content,omitempty"`
	Schedule *SendSchedule `json:"schedule,omitempty"`
}

// WebRequestConfig is the config variant for web_request nodes. Body is
// rendered with merge tags before sending.
type WebRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"` // default POST
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// DecisionRule is one ordered rule in a decision node. Expr is a boolean
// expression over contact.* and campaign.* fields.
type DecisionRule struct {
	Label string `json:"label"`
	Expr  string `json:"expr"`
}

// DecisionConfig is the config variant for decision nodes.
type DecisionConfig struct {
	Rules []DecisionRule `json:"rules"`
}

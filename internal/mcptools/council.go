package mcptools

import "time"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// DispatchInput is the input for the council_dispatch MCP tool.
type DispatchInput struct {
	SessionID string `json:"sessionId" jsonschema:"the deliberation session to run a fan-out round for"`
}

// DispatchOutput is the result of the council_dispatch MCP tool.
type DispatchOutput struct {
	Dispatched    int    `json:"dispatched"`
	Skipped       bool   `json:"skipped,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Synthesized   bool   `json:"synthesized,omitempty"`
	SynthesisNote string `json:"synthesisNote,omitempty"`
}

// StatusInput is the input for the council_status MCP tool.
type StatusInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter by session status: running, decided, cancelled, timeout"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of sessions (default: all)"`
}

// StatusOutput is the result of the council_status MCP tool.
type StatusOutput struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

// SessionSummary is one session row in a council_status result.
type SessionSummary struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ShowInput is the input for the council_show MCP tool.
type ShowInput struct {
	SessionID string `json:"sessionId" jsonschema:"the session to show, including members and audit log"`
}

// ShowOutput is the result of the council_show MCP tool.
type ShowOutput struct {
	Session *SessionDetail `json:"session"`
}

// SessionDetail is the full session view returned by council_show.
type SessionDetail struct {
	SessionSummary
	Objective  string        `json:"objective,omitempty"`
	VotedCount int           `json:"votedCount"`
	Members    []MemberView  `json:"members"`
	Messages   []MessageView `json:"messages"`
	Decision   *DecisionView `json:"decision,omitempty"`
}

// MemberView is one panel member in a council_show result.
type MemberView struct {
	ID         string   `json:"id"`
	AgentID    string   `json:"agentId"`
	Role       string   `json:"role"`
	Weight     float64  `json:"weight"`
	Vote       string   `json:"vote,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// MessageView is one audit log entry in a council_show result.
type MessageView struct {
	TurnNo    int            `json:"turnNo"`
	SpeakerID string         `json:"speakerId"`
	Type      string         `json:"messageType"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DecisionView is the final decision in a council_show result.
type DecisionView struct {
	Outcome          string             `json:"outcome"`
	Summary          string             `json:"summary,omitempty"`
	Confidence       float64            `json:"confidence"`
	Rationale        string             `json:"rationale,omitempty"`
	ConsensusWarning string             `json:"consensusWarning,omitempty"`
	WeightedTally    map[string]float64 `json:"weightedTally"`
	SchemaGaps       []string           `json:"schemaGaps,omitempty"`
}

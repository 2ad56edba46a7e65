package council

import (
	"crypto/rand"
	"fmt"
	"time"
)

// --- Enums ---

// Mode selects how a session's votes are aggregated into a decision.
type Mode string

const (
	ModeMajority    Mode = "majority"
	ModeWeighted    Mode = "weighted"
	ModeDebateJudge Mode = "debate_judge"
)

// Valid reports whether m is one of the declared deliberation modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeMajority, ModeWeighted, ModeDebateJudge:
		return true
	}
	return false
}

// SessionStatus represents the lifecycle state of a deliberation session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusDecided   SessionStatus = "decided"
	StatusCancelled SessionStatus = "cancelled"
	StatusTimeout   SessionStatus = "timeout"
)

// IsTerminal returns true if the session status is a final state.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusDecided, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Vote is one of the four vote categories a member can cast.
type Vote string

const (
	VoteApprove Vote = "approve"
	VoteReject  Vote = "reject"
	VoteAbstain Vote = "abstain"
	VoteAmend   Vote = "amend"
)

// Votes lists the four categories in tally order.
var Votes = []Vote{VoteApprove, VoteReject, VoteAbstain, VoteAmend}

// MessageType classifies audit log entries.
type MessageType string

const (
	MessageFanoutDispatch    MessageType = "fanout_dispatch"
	MessageVoteSubmitted     MessageType = "vote_submitted"
	MessageVoteError         MessageType = "vote_error"
	MessageSynthesisDispatch MessageType = "synthesis_dispatch"
	MessageSynthesisComplete MessageType = "synthesis_complete"
	MessageSynthesisError    MessageType = "synthesis_error"
)

// --- Core types ---

// Session is one deliberation instance over a topic with a fixed member panel.
type Session struct {
	ID            string        `json:"id"`
	Topic         string        `json:"topic"`
	Objective     string        `json:"objective,omitempty"`
	Mode          Mode          `json:"mode"`
	Status        SessionStatus `json:"status"`
	CreatedBy     string        `json:"createdBy"`
	CreatedAt     time.Time     `json:"createdAt"`
	DecidedAt     *time.Time    `json:"decidedAt,omitempty"`
	FinalDecision *Decision     `json:"finalDecision,omitempty"`
	Confidence    float64       `json:"confidence,omitempty"`
	Rationale     string        `json:"rationale,omitempty"`
	Members       []Member      `json:"members,omitempty"`
	Messages      []Message     `json:"messages,omitempty"`
}

// VotedCount returns the number of members that have cast a vote.
func (s *Session) VotedCount() int {
	n := 0
	for _, m := range s.Members {
		if m.Vote != nil {
			n++
		}
	}
	return n
}

// PendingMembers returns the members that have not yet voted.
func (s *Session) PendingMembers() []Member {
	var pending []Member
	for _, m := range s.Members {
		if m.Vote == nil {
			pending = append(pending, m)
		}
	}
	return pending
}

// Member is a voting participant with a role and a numeric weight.
type Member struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	AgentID     string     `json:"agentId"`
	Role        string     `json:"role,omitempty"`
	Weight      float64    `json:"weight"`
	Stance      string     `json:"stance,omitempty"`
	Vote        *Vote      `json:"vote,omitempty"`
	VoteScore   *float64   `json:"voteScore,omitempty"`
	Reasoning   string     `json:"reasoning,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// Message is one append-only audit log entry. Entries are never mutated or
// deleted; ordering key is (TurnNo, CreatedAt).
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	TurnNo    int            `json:"turnNo"`
	SpeakerID string         `json:"speakerId"`
	Type      MessageType    `json:"messageType"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// VotePayload is the canonical shape of a validated member response. It is
// serialized into Member.Reasoning when the vote is persisted.
type VotePayload struct {
	Vote                    Vote           `json:"vote"`
	Confidence              float64        `json:"confidence"`
	Analysis                string         `json:"analysis,omitempty"`
	Reasoning               string         `json:"reasoning,omitempty"`
	Justification           string         `json:"justification"`
	Evidence                []string       `json:"evidence,omitempty"`
	CounterargumentRejected string         `json:"counterargument_rejected,omitempty"`
	RoleOutput              map[string]any `json:"role_output,omitempty"`
	RoleValidation          RoleValidation `json:"role_validation"`
	Contrarian              bool           `json:"contrarian"`
}

// RoleValidation reports which required role-output fields a response failed
// to supply. Gaps never block the vote.
type RoleValidation struct {
	MissingFields []string `json:"missing_fields"`
}

// Decision is the structured outcome of a completed synthesis.
type Decision struct {
	Outcome          Vote             `json:"outcome"`
	Summary          string           `json:"summary,omitempty"`
	ConsensusWarning string           `json:"consensus_warning,omitempty"`
	WeightedTally    map[Vote]float64 `json:"weighted_tally"`
	SchemaGaps       []string         `json:"schema_gaps,omitempty"`
	Provider         string           `json:"provider,omitempty"`
	Model            string           `json:"model,omitempty"`
}

// NewID generates a UUID v4 string using crypto/rand.
func NewID() string {
	var uuid [16]byte
	_, _ = rand.Read(uuid[:])
	// Set version 4 (bits 12-15 of time_hi_and_version).
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	// Set variant bits (bits 6-7 of clock_seq_hi_and_reserved).
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16])
}

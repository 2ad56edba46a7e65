// Package deliberate implements the council deliberation engine: the
// concurrent fan-out of a decision topic to a role-specialized member panel,
// vote validation under the evidence/confidence policy, and the weighted
// synthesis that produces a single decision once quorum is reached.
package deliberate

// SkipReason explains why a dispatch invocation was a defined no-op.
type SkipReason string

const (
	SkipSessionNotFound   SkipReason = "session_not_found"
	SkipSessionNotRunning SkipReason = "session_not_running"
	SkipNoPendingMembers  SkipReason = "no_pending_members"
)

// DispatchReport is the structured result of one coordinator invocation.
type DispatchReport struct {
	// Dispatched is the number of pending members this round attempted.
	Dispatched int

	// Skipped is true when a precondition made the invocation a no-op.
	Skipped bool

	// Reason is set when Skipped is true.
	Reason SkipReason

	// Synthesized is true when quorum was reached and synthesis produced a
	// final decision.
	Synthesized bool

	// SynthesisNote records why no decision was produced after quorum:
	// either the session mode has no synthesis path, or the synthesis
	// attempt failed (the audit log has the full error).
	SynthesisNote string
}

// ProgressStatus is the state of one member's dispatch within a round.
type ProgressStatus string

const (
	ProgressPending ProgressStatus = "pending"
	ProgressWorking ProgressStatus = "working"
	ProgressVoted   ProgressStatus = "voted"
	ProgressFailed  ProgressStatus = "failed"
)

// ProgressEvent is emitted to the caller during a fan-out round.
type ProgressEvent struct {
	SessionID string
	MemberID  string
	Status    ProgressStatus
	Message   string
}

// VoteSummary is one member's contribution to the synthesis prompt.
type VoteSummary struct {
	MemberID      string
	AgentID       string
	Role          string
	Weight        float64
	Vote          string
	Confidence    float64
	Justification string
	Contrarian    bool
	SchemaGaps    []string
}

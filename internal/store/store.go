// Package store persists council sessions, members, and audit messages.
// Implementations: SQLiteStore (production), MemStore (testing and demo).
// The deliberation engine only ever sees the Store interface.
package store

import (
	"context"
	"errors"
	"io"

	"github.com/dusk-indust/council/internal/council"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("store: session not found")

// ErrMemberNotFound is returned when a member ID has no row in the session.
var ErrMemberNotFound = errors.New("store: member not found")

// ErrAlreadyVoted is returned when SubmitVote targets a member whose vote is
// already set. Votes transition nil -> set exactly once; corrections are not
// accepted at this layer.
var ErrAlreadyVoted = errors.New("store: member has already voted")

// ListFilter restricts and bounds ListSessions results.
type ListFilter struct {
	// Status filters by session status when non-empty.
	Status council.SessionStatus

	// Limit bounds the result count. Zero or negative means no limit.
	Limit int
}

// Store is the session persistence interface consumed by the engine. All
// operations are keyed by session/member ID and safe to call repeatedly with
// the same arguments; the engine does not deduplicate at its own level.
type Store interface {
	io.Closer

	// CreateSession inserts a session together with its member panel.
	CreateSession(ctx context.Context, session council.Session) error

	// GetSession loads a session with its members (sorted by member ID) and
	// messages (ordered by turn number, then creation time). Returns
	// ErrSessionNotFound if the ID has no row.
	GetSession(ctx context.Context, id string) (*council.Session, error)

	// ListSessions returns sessions (without members or messages) in
	// creation order, oldest first.
	ListSessions(ctx context.Context, filter ListFilter) ([]council.Session, error)

	// SubmitVote records a member's vote, score, and serialized payload,
	// and stamps the response time. Returns ErrAlreadyVoted if the member
	// has a vote on record.
	SubmitVote(ctx context.Context, sessionID, memberID string, vote council.Vote, reasoningJSON string, confidence float64) error

	// AppendMessage appends one audit log entry. Messages are append-only.
	AppendMessage(ctx context.Context, msg council.Message) error

	// FinalizeDecision sets the structured decision, confidence, and
	// rationale, moves the session to decided, and stamps decidedAt.
	// Calling it again overwrites the decision fields.
	FinalizeDecision(ctx context.Context, sessionID string, decision council.Decision, confidence float64, rationale string) error
}

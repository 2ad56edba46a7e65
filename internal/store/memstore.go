package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dusk-indust/council/internal/council"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is a concurrency-safe in-memory Store. Sessions are kept in a map
// keyed by ID with a separate slice maintaining insertion order for
// deterministic listing. All reads return deep copies, so callers can mutate
// results without affecting the store.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*council.Session
	orderIDs []string // insertion-order session IDs

	now func() time.Time
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*council.Session),
		orderIDs: make([]string, 0),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close implements io.Closer; a MemStore holds no external resources.
func (s *MemStore) Close() error {
	return nil
}

// CreateSession stores a new session with its member panel. It returns an
// error if a session with the same ID already exists.
func (s *MemStore) CreateSession(_ context.Context, session council.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("store: session %q already exists", session.ID)
	}
	copied := deepCopySession(&session)
	s.sessions[session.ID] = copied
	s.orderIDs = append(s.orderIDs, session.ID)
	return nil
}

// GetSession returns a deep copy of the session with members sorted by ID
// and messages ordered by (turnNo, createdAt).
func (s *MemStore) GetSession(_ context.Context, id string) (*council.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := deepCopySession(sess)
	sortSession(out)
	return out, nil
}

// ListSessions returns sessions in insertion order, without members or
// messages.
func (s *MemStore) ListSessions(_ context.Context, filter ListFilter) ([]council.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []council.Session
	for _, id := range s.orderIDs {
		sess := s.sessions[id]
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		copied := deepCopySession(sess)
		copied.Members = nil
		copied.Messages = nil
		out = append(out, *copied)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// SubmitVote records a member's vote exactly once.
func (s *MemStore) SubmitVote(_ context.Context, sessionID, memberID string, vote council.Vote, reasoningJSON string, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for i := range sess.Members {
		m := &sess.Members[i]
		if m.ID != memberID {
			continue
		}
		if m.Vote != nil {
			return ErrAlreadyVoted
		}
		v := vote
		score := confidence
		respondedAt := s.now()
		m.Vote = &v
		m.VoteScore = &score
		m.Reasoning = reasoningJSON
		m.RespondedAt = &respondedAt
		return nil
	}
	return ErrMemberNotFound
}

// AppendMessage appends one audit message to the session.
func (s *MemStore) AppendMessage(_ context.Context, msg council.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[msg.SessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	sess.Messages = append(sess.Messages, deepCopyMessage(msg))
	return nil
}

// FinalizeDecision moves the session to decided and records the decision.
func (s *MemStore) FinalizeDecision(_ context.Context, sessionID string, decision council.Decision, confidence float64, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	decidedAt := s.now()
	copied := deepCopyDecision(decision)
	sess.FinalDecision = &copied
	sess.Confidence = confidence
	sess.Rationale = rationale
	sess.Status = council.StatusDecided
	sess.DecidedAt = &decidedAt
	return nil
}

// sortSession applies the canonical read ordering: members by ID, messages
// by (turnNo, createdAt).
func sortSession(sess *council.Session) {
	sort.Slice(sess.Members, func(i, j int) bool {
		return sess.Members[i].ID < sess.Members[j].ID
	})
	sort.Slice(sess.Messages, func(i, j int) bool {
		a, b := sess.Messages[i], sess.Messages[j]
		if a.TurnNo != b.TurnNo {
			return a.TurnNo < b.TurnNo
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// deepCopySession returns a new Session that is a deep copy of src.
func deepCopySession(src *council.Session) *council.Session {
	dst := *src

	if src.DecidedAt != nil {
		t := *src.DecidedAt
		dst.DecidedAt = &t
	}
	if src.FinalDecision != nil {
		d := deepCopyDecision(*src.FinalDecision)
		dst.FinalDecision = &d
	}
	if src.Members != nil {
		dst.Members = make([]council.Member, len(src.Members))
		for i, m := range src.Members {
			dst.Members[i] = deepCopyMember(m)
		}
	}
	if src.Messages != nil {
		dst.Messages = make([]council.Message, len(src.Messages))
		for i, m := range src.Messages {
			dst.Messages[i] = deepCopyMessage(m)
		}
	}
	return &dst
}

// deepCopyMember returns a deep copy of a Member.
func deepCopyMember(src council.Member) council.Member {
	dst := src
	if src.Vote != nil {
		v := *src.Vote
		dst.Vote = &v
	}
	if src.VoteScore != nil {
		score := *src.VoteScore
		dst.VoteScore = &score
	}
	if src.RespondedAt != nil {
		t := *src.RespondedAt
		dst.RespondedAt = &t
	}
	return dst
}

// deepCopyMessage returns a deep copy of a Message.
func deepCopyMessage(src council.Message) council.Message {
	dst := src
	if src.Metadata != nil {
		dst.Metadata = make(map[string]any, len(src.Metadata))
		for k, v := range src.Metadata {
			dst.Metadata[k] = v
		}
	}
	return dst
}

// deepCopyDecision returns a deep copy of a Decision.
func deepCopyDecision(src council.Decision) council.Decision {
	dst := src
	if src.WeightedTally != nil {
		dst.WeightedTally = make(map[council.Vote]float64, len(src.WeightedTally))
		for k, v := range src.WeightedTally {
			dst.WeightedTally[k] = v
		}
	}
	if src.SchemaGaps != nil {
		dst.SchemaGaps = make([]string, len(src.SchemaGaps))
		copy(dst.SchemaGaps, src.SchemaGaps)
	}
	return dst
}

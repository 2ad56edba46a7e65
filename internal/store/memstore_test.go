package store

import (
	"context"
	"testing"
	"time"

	"github.com/dusk-indust/council/internal/council"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSession returns a running weighted session with a three-member panel.
func testSession(id string) council.Session {
	return council.Session{
		ID:        id,
		Topic:     "adopt the new build pipeline",
		Objective: "decide before the next release",
		Mode:      council.ModeWeighted,
		Status:    council.StatusRunning,
		CreatedBy: "ops",
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Members: []council.Member{
			{ID: "m-1", SessionID: id, AgentID: "huragok-7", Weight: 2},
			{ID: "m-2", SessionID: id, AgentID: "oracle", Weight: 1.5},
			{ID: "m-3", SessionID: id, AgentID: "librarian", Weight: 1},
		},
	}
}

func TestMemStore_CreateAndGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "adopt the new build pipeline", got.Topic)
	require.Len(t, got.Members, 3)
	assert.Equal(t, "m-1", got.Members[0].ID)
	assert.Nil(t, got.Members[0].Vote)

	// Duplicate IDs are rejected.
	err = s.CreateSession(ctx, testSession("sess-1"))
	require.Error(t, err)
}

func TestMemStore_GetSessionNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemStore_GetReturnsCopies(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	first, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	first.Topic = "mutated"
	first.Members[0].AgentID = "mutated"

	second, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "adopt the new build pipeline", second.Topic)
	assert.Equal(t, "huragok-7", second.Members[0].AgentID)
}

func TestMemStore_SubmitVote(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	err := s.SubmitVote(ctx, "sess-1", "m-1", council.VoteApprove, `{"vote":"approve"}`, 0.8)
	require.NoError(t, err)

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got.Members[0].Vote)
	assert.Equal(t, council.VoteApprove, *got.Members[0].Vote)
	require.NotNil(t, got.Members[0].VoteScore)
	assert.Equal(t, 0.8, *got.Members[0].VoteScore)
	assert.NotNil(t, got.Members[0].RespondedAt)
	assert.Equal(t, 1, got.VotedCount())
	assert.Len(t, got.PendingMembers(), 2)
}

func TestMemStore_SubmitVoteRejectsRevote(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	require.NoError(t, s.SubmitVote(ctx, "sess-1", "m-1", council.VoteApprove, "{}", 0.8))
	err := s.SubmitVote(ctx, "sess-1", "m-1", council.VoteReject, "{}", 0.9)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	// The original vote stays on record.
	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, council.VoteApprove, *got.Members[0].Vote)
}

func TestMemStore_SubmitVoteUnknownMember(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	err := s.SubmitVote(ctx, "sess-1", "m-99", council.VoteApprove, "{}", 0.5)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestMemStore_AppendMessageOrdering(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	// Append out of order; reads must come back ordered by (turnNo, createdAt).
	base := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	for _, turn := range []int{3, 1, 2} {
		require.NoError(t, s.AppendMessage(ctx, council.Message{
			ID:        council.NewID(),
			SessionID: "sess-1",
			TurnNo:    turn,
			SpeakerID: "m-1",
			Type:      council.MessageFanoutDispatch,
			CreatedAt: base.Add(time.Duration(turn) * time.Second),
		}))
	}

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, 1, got.Messages[0].TurnNo)
	assert.Equal(t, 2, got.Messages[1].TurnNo)
	assert.Equal(t, 3, got.Messages[2].TurnNo)
}

func TestMemStore_FinalizeDecision(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	decision := council.Decision{
		Outcome: council.VoteApprove,
		Summary: "proceed",
		WeightedTally: map[council.Vote]float64{
			council.VoteApprove: 3.5,
			council.VoteReject:  1,
		},
	}
	require.NoError(t, s.FinalizeDecision(ctx, "sess-1", decision, 0.82, "panel leaned approve"))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusDecided, got.Status)
	assert.NotNil(t, got.DecidedAt)
	require.NotNil(t, got.FinalDecision)
	assert.Equal(t, council.VoteApprove, got.FinalDecision.Outcome)
	assert.Equal(t, 0.82, got.Confidence)
	assert.Equal(t, "panel leaned approve", got.Rationale)
}

func TestMemStore_ListSessions(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))
	require.NoError(t, s.CreateSession(ctx, testSession("sess-2")))
	require.NoError(t, s.CreateSession(ctx, testSession("sess-3")))
	require.NoError(t, s.FinalizeDecision(ctx, "sess-2", council.Decision{Outcome: council.VoteReject}, 0.5, ""))

	all, err := s.ListSessions(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "sess-1", all[0].ID)
	assert.Nil(t, all[0].Members, "listing omits members")

	running, err := s.ListSessions(ctx, ListFilter{Status: council.StatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 2)

	limited, err := s.ListSessions(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "sess-1", limited[0].ID)
}

package deliberate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/gateway"
	"github.com/dusk-indust/council/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway records every call and answers through a pluggable respond
// function, keyed off the request's idempotency key.
type stubGateway struct {
	mu      sync.Mutex
	calls   []gateway.CallRequest
	respond func(req gateway.CallRequest) (*gateway.CallResult, error)
}

func (g *stubGateway) Call(_ context.Context, req gateway.CallRequest) (*gateway.CallResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.respond(req)
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

const memberVoteText = `{
	"vote": "approve",
	"confidence": 0.7,
	"justification": "the rollout plan holds",
	"evidence": ["canary at 5%", "rollback rehearsed"]
}`

const synthesisText = `{
	"outcome": "approve",
	"confidence": 0.8,
	"summary": "the council approves the rollout",
	"rationale": "weighted approval dominates"
}`

// answerAll serves a valid member vote to every member and a valid synthesis
// to the synthesizer.
func answerAll(req gateway.CallRequest) (*gateway.CallResult, error) {
	if strings.HasSuffix(req.IdempotencyKey, ":"+synthesizerSpeaker) {
		return &gateway.CallResult{Text: synthesisText, Provider: "openai", Model: "o1"}, nil
	}
	return &gateway.CallResult{Text: memberVoteText, Provider: "openai", Model: "o1"}, nil
}

// engineSession seeds a running weighted session with a three-member panel.
func engineSession(t *testing.T, st store.Store, id string) {
	t.Helper()
	err := st.CreateSession(context.Background(), council.Session{
		ID:        id,
		Topic:     "adopt the new build pipeline",
		Mode:      council.ModeWeighted,
		Status:    council.StatusRunning,
		CreatedBy: "ops",
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Members: []council.Member{
			{ID: "m-1", SessionID: id, AgentID: "huragok-7", Weight: 2},
			{ID: "m-2", SessionID: id, AgentID: "oracle", Weight: 1.5},
			{ID: "m-3", SessionID: id, AgentID: "librarian", Weight: 1},
		},
	})
	require.NoError(t, err)
}

func messagesByType(msgs []council.Message, mt council.MessageType) []council.Message {
	var out []council.Message
	for _, m := range msgs {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

func TestDispatchPendingVotes_FullRound(t *testing.T) {
	st := store.NewMemStore()
	engineSession(t, st, "sess-1")
	gw := &stubGateway{respond: answerAll}

	var mu sync.Mutex
	var voted []string
	c := NewCoordinator(st, gw, func(ev ProgressEvent) {
		if ev.Status == ProgressVoted {
			mu.Lock()
			voted = append(voted, ev.MemberID)
			mu.Unlock()
		}
	})

	report, err := c.DispatchPendingVotes(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Dispatched)
	assert.False(t, report.Skipped)
	assert.True(t, report.Synthesized)
	assert.Empty(t, report.SynthesisNote)
	assert.Len(t, voted, 3)

	sess, err := st.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusDecided, sess.Status)
	require.NotNil(t, sess.FinalDecision)
	assert.Equal(t, council.VoteApprove, sess.FinalDecision.Outcome)
	assert.Equal(t, 0.8, sess.Confidence)
	assert.Equal(t, "weighted approval dominates", sess.Rationale)
	assert.NotNil(t, sess.DecidedAt)
	assert.Equal(t, 4.5, sess.FinalDecision.WeightedTally[council.VoteApprove])

	for _, m := range sess.Members {
		require.NotNil(t, m.Vote, m.ID)
		assert.Equal(t, council.VoteApprove, *m.Vote)
		require.NotNil(t, m.VoteScore)
		assert.Equal(t, 0.7, *m.VoteScore)
	}

	// One dispatch and one vote per member, then the synthesis pair.
	assert.Len(t, messagesByType(sess.Messages, council.MessageFanoutDispatch), 3)
	assert.Len(t, messagesByType(sess.Messages, council.MessageVoteSubmitted), 3)
	assert.Len(t, messagesByType(sess.Messages, council.MessageSynthesisDispatch), 1)
	assert.Len(t, messagesByType(sess.Messages, council.MessageSynthesisComplete), 1)
	assert.Empty(t, messagesByType(sess.Messages, council.MessageVoteError))

	// Turn numbers are unique and the log is returned in turn order.
	seen := make(map[int]bool)
	lastTurn := 0
	for _, msg := range sess.Messages {
		assert.False(t, seen[msg.TurnNo], "duplicate turn %d", msg.TurnNo)
		seen[msg.TurnNo] = true
		assert.GreaterOrEqual(t, msg.TurnNo, lastTurn)
		lastTurn = msg.TurnNo
	}
}

func TestDispatchPendingVotes_ContrarianAssignment(t *testing.T) {
	st := store.NewMemStore()
	engineSession(t, st, "sess-1")
	gw := &stubGateway{respond: answerAll}
	c := NewCoordinator(st, gw, nil)

	_, err := c.DispatchPendingVotes(context.Background(), "sess-1")
	require.NoError(t, err)

	sess, err := st.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)

	// hash("sess-1") % 3 lands on m-3 in round zero.
	var contrarians []string
	for _, m := range sess.Members {
		var payload council.VotePayload
		require.NoError(t, json.Unmarshal([]byte(m.Reasoning), &payload))
		if payload.Contrarian {
			contrarians = append(contrarians, m.ID)
		}
	}
	assert.Equal(t, []string{"m-3"}, contrarians)

	// The dispatch audit entries carry the same assignment.
	for _, msg := range messagesByType(sess.Messages, council.MessageFanoutDispatch) {
		want := msg.SpeakerID == "m-3"
		assert.Equal(t, want, msg.Metadata["contrarian"], msg.SpeakerID)
	}
}

func TestDispatchPendingVotes_FailureDoesNotAbortSiblings(t *testing.T) {
	st := store.NewMemStore()
	engineSession(t, st, "sess-1")
	gw := &stubGateway{respond: func(req gateway.CallRequest) (*gateway.CallResult, error) {
		if req.IdempotencyKey == "sess-1:m-2" {
			return nil, errors.New("provider unavailable")
		}
		return answerAll(req)
	}}
	c := NewCoordinator(st, gw, nil)

	report, err := c.DispatchPendingVotes(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Dispatched)
	assert.False(t, report.Synthesized)

	sess, err := st.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusRunning, sess.Status)
	assert.Equal(t, 2, sess.VotedCount())

	// The failed member gets exactly one terminal entry, a vote_error.
	voteErrors := messagesByType(sess.Messages, council.MessageVoteError)
	require.Len(t, voteErrors, 1)
	assert.Equal(t, "m-2", voteErrors[0].SpeakerID)
	assert.Equal(t, "transport", voteErrors[0].Metadata["category"])
	for _, msg := range messagesByType(sess.Messages, council.MessageVoteSubmitted) {
		assert.NotEqual(t, "m-2", msg.SpeakerID)
	}

	// No synthesis was attempted without quorum.
	assert.Empty(t, messagesByType(sess.Messages, council.MessageSynthesisDispatch))
}

func TestDispatchPendingVotes_ResumesOnlyPendingMembers(t *testing.T) {
	st := store.NewMemStore()
	engineSession(t, st, "sess-1")
	fail := true
	gw := &stubGateway{respond: func(req gateway.CallRequest) (*gateway.CallResult, error) {
		if fail && req.IdempotencyKey == "sess-1:m-2" {
			return nil, errors.New("provider unavailable")
		}
		return answerAll(req)
	}}
	c := NewCoordinator(st, gw, nil)
	ctx := context.Background()

	_, err := c.DispatchPendingVotes(ctx, "sess-1")
	require.NoError(t, err)

	fail = false
	before := gw.callCount()
	report, err := c.DispatchPendingVotes(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dispatched, "only the unvoted member is re-attempted")
	assert.True(t, report.Synthesized)
	// One member retry plus the synthesis call.
	assert.Equal(t, before+2, gw.callCount())

	sess, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusDecided, sess.Status)
}

func TestDispatchPendingVotes_SkipReasons(t *testing.T) {
	st := store.NewMemStore()
	gw := &stubGateway{respond: answerAll}
	c := NewCoordinator(st, gw, nil)
	ctx := context.Background()

	report, err := c.DispatchPendingVotes(ctx, "missing")
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, SkipSessionNotFound, report.Reason)

	engineSession(t, st, "sess-1")
	_, err = c.DispatchPendingVotes(ctx, "sess-1")
	require.NoError(t, err)

	// The session is decided now; a further dispatch is a defined no-op.
	report, err = c.DispatchPendingVotes(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, SkipSessionNotRunning, report.Reason)
	assert.Zero(t, report.Dispatched)
}

func TestDispatchPendingVotes_NoPendingMembers(t *testing.T) {
	st := store.NewMemStore()
	engineSession(t, st, "sess-1")
	ctx := context.Background()
	for _, id := range []string{"m-1", "m-2", "m-3"} {
		require.NoError(t, st.SubmitVote(ctx, "sess-1", id, council.VoteApprove, "{}", 0.5))
	}

	gw := &stubGateway{respond: answerAll}
	c := NewCoordinator(st, gw, nil)

	report, err := c.DispatchPendingVotes(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, SkipNoPendingMembers, report.Reason)
	assert.Zero(t, gw.callCount())
}

func TestDispatchPendingVotes_ValidationFailureCategories(t *testing.T) {
	st := store.NewMemStore()
	engineSession(t, st, "sess-1")
	gw := &stubGateway{respond: func(req gateway.CallRequest) (*gateway.CallResult, error) {
		switch req.IdempotencyKey {
		case "sess-1:m-1":
			return &gateway.CallResult{Text: "no json here"}, nil
		case "sess-1:m-2":
			return &gateway.CallResult{Text: `{"vote":"approve","confidence":0.9,"justification":"sure","evidence":["one"]}`}, nil
		}
		return answerAll(req)
	}}
	c := NewCoordinator(st, gw, nil)

	report, err := c.DispatchPendingVotes(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, report.Synthesized)

	sess, err := st.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.VotedCount())

	categories := map[string]any{}
	for _, msg := range messagesByType(sess.Messages, council.MessageVoteError) {
		categories[msg.SpeakerID] = msg.Metadata["category"]
	}
	assert.Equal(t, map[string]any{"m-1": "parse", "m-2": "policy"}, categories)
}

func TestDispatchPendingVotes_NonWeightedModeSkipsSynthesis(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, council.Session{
		ID:        "sess-maj",
		Topic:     "adopt the new build pipeline",
		Mode:      council.ModeMajority,
		Status:    council.StatusRunning,
		CreatedBy: "ops",
		CreatedAt: time.Now().UTC(),
		Members: []council.Member{
			{ID: "m-1", SessionID: "sess-maj", AgentID: "huragok-7", Weight: 1},
			{ID: "m-2", SessionID: "sess-maj", AgentID: "oracle", Weight: 1},
		},
	}))

	gw := &stubGateway{respond: answerAll}
	c := NewCoordinator(st, gw, nil)

	report, err := c.DispatchPendingVotes(ctx, "sess-maj")
	require.NoError(t, err)
	assert.False(t, report.Synthesized)
	assert.Contains(t, report.SynthesisNote, "no synthesis path")

	sess, err := st.GetSession(ctx, "sess-maj")
	require.NoError(t, err)
	assert.Equal(t, council.StatusRunning, sess.Status)
	assert.Equal(t, 2, sess.VotedCount())
	assert.Empty(t, messagesByType(sess.Messages, council.MessageSynthesisDispatch))
}

func TestDispatchPendingVotes_SynthesisFailureLeavesSessionRunning(t *testing.T) {
	st := store.NewMemStore()
	engineSession(t, st, "sess-1")
	gw := &stubGateway{respond: func(req gateway.CallRequest) (*gateway.CallResult, error) {
		if strings.HasSuffix(req.IdempotencyKey, ":"+synthesizerSpeaker) {
			return &gateway.CallResult{Text: "not a decision"}, nil
		}
		return answerAll(req)
	}}
	c := NewCoordinator(st, gw, nil)

	report, err := c.DispatchPendingVotes(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, report.Synthesized)
	assert.NotEmpty(t, report.SynthesisNote)

	sess, err := st.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusRunning, sess.Status)
	assert.Nil(t, sess.FinalDecision)

	synthErrors := messagesByType(sess.Messages, council.MessageSynthesisError)
	require.Len(t, synthErrors, 1)
	assert.Equal(t, "parse", synthErrors[0].Metadata["category"])
}

// faultyStore fails AppendMessage for one message type and delegates
// everything else.
type faultyStore struct {
	store.Store
	failType council.MessageType
}

func (f *faultyStore) AppendMessage(ctx context.Context, msg council.Message) error {
	if msg.Type == f.failType {
		return errors.New("disk full")
	}
	return f.Store.AppendMessage(ctx, msg)
}

func TestDispatchPendingVotes_VoteAuditAppendFailureSurfaces(t *testing.T) {
	mem := store.NewMemStore()
	engineSession(t, mem, "sess-1")
	st := &faultyStore{Store: mem, failType: council.MessageVoteSubmitted}
	gw := &stubGateway{respond: answerAll}

	var mu sync.Mutex
	var failures []string
	c := NewCoordinator(st, gw, func(ev ProgressEvent) {
		if ev.Status == ProgressFailed {
			mu.Lock()
			failures = append(failures, ev.Message)
			mu.Unlock()
		}
	})

	report, err := c.DispatchPendingVotes(context.Background(), "sess-1")
	require.NoError(t, err)

	// Every member's terminal append failed and each failure was surfaced.
	require.Len(t, failures, 3)
	for _, msg := range failures {
		assert.Contains(t, msg, "audit append failed")
	}

	// The votes themselves stand, so quorum held and synthesis ran.
	assert.True(t, report.Synthesized)
	sess, err := mem.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, sess.VotedCount())
	assert.Empty(t, messagesByType(sess.Messages, council.MessageVoteSubmitted))
}

func TestDispatchPendingVotes_SynthesisAuditAppendFailure(t *testing.T) {
	mem := store.NewMemStore()
	engineSession(t, mem, "sess-1")
	st := &faultyStore{Store: mem, failType: council.MessageSynthesisComplete}
	gw := &stubGateway{respond: answerAll}
	c := NewCoordinator(st, gw, nil)

	report, err := c.DispatchPendingVotes(context.Background(), "sess-1")
	require.NoError(t, err)

	// The decision landed even though its terminal entry did not; the
	// report says both.
	assert.True(t, report.Synthesized)
	assert.Contains(t, report.SynthesisNote, "synthesis_complete append failed")

	sess, err := mem.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusDecided, sess.Status)
	require.NotNil(t, sess.FinalDecision)
	assert.Empty(t, messagesByType(sess.Messages, council.MessageSynthesisComplete))
}

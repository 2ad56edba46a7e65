package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/deliberate"
	"github.com/dusk-indust/council/internal/roles"
	"github.com/dusk-indust/council/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CouncilService handles MCP tool calls for the council server mode. It
// wraps the deliberation coordinator and the session store.
type CouncilService struct {
	store store.Store
	coord *deliberate.Coordinator
}

// NewCouncilService creates a CouncilService with the given store and
// coordinator.
func NewCouncilService(st store.Store, coord *deliberate.Coordinator) *CouncilService {
	return &CouncilService{store: st, coord: coord}
}

// Dispatch runs one fan-out round for a session. Precondition failures
// (missing session, terminal session, nothing pending) come back as a
// structured skip rather than a tool error.
func (s *CouncilService) Dispatch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DispatchInput,
) (*mcp.CallToolResult, DispatchOutput, error) {
	if input.SessionID == "" {
		return nil, DispatchOutput{}, fmt.Errorf("sessionId is required")
	}

	report, err := s.coord.DispatchPendingVotes(ctx, input.SessionID)
	if err != nil {
		return nil, DispatchOutput{}, err
	}

	return nil, DispatchOutput{
		Dispatched:    report.Dispatched,
		Skipped:       report.Skipped,
		Reason:        string(report.Reason),
		Synthesized:   report.Synthesized,
		SynthesisNote: report.SynthesisNote,
	}, nil
}

// Status lists sessions, optionally filtered by status.
func (s *CouncilService) Status(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	filter := store.ListFilter{Limit: input.Limit}
	if input.Status != "" {
		status := council.SessionStatus(input.Status)
		switch status {
		case council.StatusRunning, council.StatusDecided, council.StatusCancelled, council.StatusTimeout:
			filter.Status = status
		default:
			return nil, StatusOutput{}, fmt.Errorf("unknown status filter: %s", input.Status)
		}
	}

	sessions, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:        sess.ID,
			Topic:     sess.Topic,
			Mode:      string(sess.Mode),
			Status:    string(sess.Status),
			CreatedAt: sess.CreatedAt,
		})
	}

	return nil, StatusOutput{Sessions: summaries, Total: len(summaries)}, nil
}

// Show returns one session in full: panel, votes, audit log, and the final
// decision when one exists.
func (s *CouncilService) Show(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ShowInput,
) (*mcp.CallToolResult, ShowOutput, error) {
	if input.SessionID == "" {
		return nil, ShowOutput{}, fmt.Errorf("sessionId is required")
	}

	sess, err := s.store.GetSession(ctx, input.SessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, ShowOutput{}, fmt.Errorf("session not found: %s", input.SessionID)
	}
	if err != nil {
		return nil, ShowOutput{}, fmt.Errorf("load session: %w", err)
	}

	return nil, ShowOutput{Session: sessionDetail(sess)}, nil
}

// sessionDetail maps a stored session onto the council_show response shape.
func sessionDetail(sess *council.Session) *SessionDetail {
	detail := &SessionDetail{
		SessionSummary: SessionSummary{
			ID:        sess.ID,
			Topic:     sess.Topic,
			Mode:      string(sess.Mode),
			Status:    string(sess.Status),
			CreatedAt: sess.CreatedAt,
		},
		Objective:  sess.Objective,
		VotedCount: sess.VotedCount(),
	}

	for _, m := range sess.Members {
		view := MemberView{
			ID:      m.ID,
			AgentID: m.AgentID,
			Role:    string(roles.Classify(m.AgentID, m.Role)),
			Weight:  m.Weight,
		}
		if m.Vote != nil {
			view.Vote = string(*m.Vote)
		}
		view.Confidence = m.VoteScore
		detail.Members = append(detail.Members, view)
	}

	for _, msg := range sess.Messages {
		detail.Messages = append(detail.Messages, MessageView{
			TurnNo:    msg.TurnNo,
			SpeakerID: msg.SpeakerID,
			Type:      string(msg.Type),
			Content:   msg.Content,
			Metadata:  msg.Metadata,
		})
	}

	if sess.FinalDecision != nil {
		tally := make(map[string]float64, len(sess.FinalDecision.WeightedTally))
		for vote, weight := range sess.FinalDecision.WeightedTally {
			tally[string(vote)] = weight
		}
		detail.Decision = &DecisionView{
			Outcome:          string(sess.FinalDecision.Outcome),
			Summary:          sess.FinalDecision.Summary,
			Confidence:       sess.Confidence,
			Rationale:        sess.Rationale,
			ConsensusWarning: sess.FinalDecision.ConsensusWarning,
			WeightedTally:    tally,
			SchemaGaps:       sess.FinalDecision.SchemaGaps,
		}
	}

	return detail
}

package deliberate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/gateway"
	"github.com/dusk-indust/council/internal/roles"
	"github.com/dusk-indust/council/internal/store"
	"golang.org/x/sync/errgroup"
)

// Coordinator orchestrates one deliberation round: it loads the pending
// members of a session, assigns the round's contrarian, dispatches every
// pending member concurrently through the gateway, records votes and audit
// messages, and hands off to synthesis once every member has voted.
type Coordinator struct {
	store      store.Store
	gateway    gateway.Gateway
	synth      *Synthesizer
	onProgress func(ProgressEvent)
}

// NewCoordinator creates a Coordinator over the given store and gateway.
// onProgress is called synchronously from each member's goroutine; it may be
// nil.
func NewCoordinator(st store.Store, gw gateway.Gateway, onProgress func(ProgressEvent)) *Coordinator {
	return &Coordinator{
		store:      st,
		gateway:    gw,
		synth:      NewSynthesizer(st, gw),
		onProgress: onProgress,
	}
}

// DispatchPendingVotes runs one fan-out round for the session. Precondition
// failures return a structured skip, never an error. Member-level failures
// (parse, policy, transport) are recorded as vote_error audit entries and
// never abort or delay sibling members; re-invoking the coordinator later
// re-attempts exactly the members that still lack a vote.
func (c *Coordinator) DispatchPendingVotes(ctx context.Context, sessionID string) (*DispatchReport, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return &DispatchReport{Skipped: true, Reason: SkipSessionNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deliberate: load session: %w", err)
	}
	if sess.Status != council.StatusRunning {
		return &DispatchReport{Skipped: true, Reason: SkipSessionNotRunning}, nil
	}

	pending := sess.PendingMembers()
	if len(pending) == 0 {
		return &DispatchReport{Skipped: true, Reason: SkipNoPendingMembers}, nil
	}

	// The contrarian is fixed once per round, before any dispatch message
	// is appended, so every member task sees the same assignment.
	contrarianID, err := SelectContrarian(sess.ID, sess.Members, countFanoutDispatches(sess.Messages))
	if err != nil {
		return nil, err
	}

	audit := newAuditLog(c.store, sess)

	// Member dispatches are independent network round-trips with no shared
	// mutable state; failures are captured per member, so no goroutine
	// returns an error and no sibling is ever canceled.
	var g errgroup.Group
	for _, member := range pending {
		c.emit(ProgressEvent{SessionID: sess.ID, MemberID: member.ID, Status: ProgressPending})
		g.Go(func() error {
			c.dispatchMember(ctx, sess, member, member.ID == contrarianID, audit)
			return nil
		})
	}
	_ = g.Wait()

	report := &DispatchReport{Dispatched: len(pending)}

	// Barrier: synthesis must not start until every member task has settled
	// and the re-read session shows a full vote set.
	after, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("deliberate: reload session: %w", err)
	}
	if after.VotedCount() != len(after.Members) {
		return report, nil
	}

	if after.Mode != council.ModeWeighted {
		report.SynthesisNote = fmt.Sprintf("mode %q has no synthesis path", after.Mode)
		return report, nil
	}

	decision, err := c.synth.Synthesize(ctx, after)
	if err != nil {
		// A nil decision means the attempt failed and was recorded as
		// synthesis_error; the session stays running and remains eligible
		// for a future attempt. A non-nil decision means the session is
		// decided but its synthesis_complete entry did not land.
		report.SynthesisNote = err.Error()
		report.Synthesized = decision != nil
		return report, nil
	}
	report.Synthesized = true
	return report, nil
}

// dispatchMember runs the full pipeline for one pending member: classify,
// build prompt, audit the dispatch, call the gateway, validate, then persist
// either the vote or a vote_error. Exactly one terminal audit message is
// appended per attempt.
func (c *Coordinator) dispatchMember(ctx context.Context, sess *council.Session, member council.Member, contrarian bool, audit *auditLog) {
	c.emit(ProgressEvent{SessionID: sess.ID, MemberID: member.ID, Status: ProgressWorking})

	role := roles.Classify(member.AgentID, member.Role)
	prompt := BuildMemberPrompt(sess, member, role, contrarian)
	idempotencyKey := sess.ID + ":" + member.ID

	if err := audit.append(ctx, member.ID, council.MessageFanoutDispatch, "vote request dispatched", map[string]any{
		"agent_id":        member.AgentID,
		"role":            string(role),
		"contrarian":      contrarian,
		"idempotency_key": idempotencyKey,
	}); err != nil {
		c.emit(ProgressEvent{SessionID: sess.ID, MemberID: member.ID, Status: ProgressFailed, Message: err.Error()})
		return
	}

	res, err := c.gateway.Call(ctx, gateway.CallRequest{
		SessionKey:     sess.ID,
		IdempotencyKey: idempotencyKey,
		Prompt:         prompt,
	})
	if err != nil {
		c.recordVoteError(ctx, audit, sess.ID, member.ID, "transport", err)
		return
	}

	payload, err := ValidateVote(res.Text, role, contrarian)
	if err != nil {
		c.recordVoteError(ctx, audit, sess.ID, member.ID, errorCategory(err), err)
		return
	}

	reasoning, err := json.Marshal(payload)
	if err != nil {
		c.recordVoteError(ctx, audit, sess.ID, member.ID, "encode", err)
		return
	}

	if err := c.store.SubmitVote(ctx, sess.ID, member.ID, payload.Vote, string(reasoning), payload.Confidence); err != nil {
		c.recordVoteError(ctx, audit, sess.ID, member.ID, "store", err)
		return
	}

	if err := audit.append(ctx, member.ID, council.MessageVoteSubmitted, string(payload.Vote), map[string]any{
		"confidence":  payload.Confidence,
		"contrarian":  contrarian,
		"schema_gaps": len(payload.RoleValidation.MissingFields),
	}); err != nil {
		// The vote is on record but its terminal audit entry is not; that
		// gap must not pass silently.
		c.emit(ProgressEvent{SessionID: sess.ID, MemberID: member.ID, Status: ProgressFailed,
			Message: fmt.Sprintf("vote recorded but audit append failed: %v", err)})
		return
	}
	c.emit(ProgressEvent{SessionID: sess.ID, MemberID: member.ID, Status: ProgressVoted, Message: string(payload.Vote)})
}

// recordVoteError appends the member's terminal vote_error entry. The vote is
// not persisted; the member stays pending for a later round. A failed append
// is surfaced on the progress event alongside the original cause.
func (c *Coordinator) recordVoteError(ctx context.Context, audit *auditLog, sessionID, memberID, category string, cause error) {
	msg := cause.Error()
	if err := audit.append(ctx, memberID, council.MessageVoteError, cause.Error(), map[string]any{
		"category": category,
	}); err != nil {
		msg = fmt.Sprintf("%s (audit append also failed: %v)", msg, err)
	}
	c.emit(ProgressEvent{SessionID: sessionID, MemberID: memberID, Status: ProgressFailed, Message: msg})
}

// errorCategory maps a validation failure to its audit category.
func errorCategory(err error) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	var policyErr *PolicyError
	if errors.As(err, &policyErr) {
		return "policy"
	}
	return "validation"
}

// emit sends a progress event if a callback is registered.
func (c *Coordinator) emit(ev ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(ev)
	}
}

package deliberate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/gateway"
	"github.com/dusk-indust/council/internal/roles"
	"github.com/dusk-indust/council/internal/store"
)

// synthesizerSpeaker is the speaker ID on synthesis audit messages.
const synthesizerSpeaker = "synthesizer"

// Synthesizer turns a full vote set into one final decision. It is invoked
// only when every member of the session has voted.
type Synthesizer struct {
	store   store.Store
	gateway gateway.Gateway
}

// NewSynthesizer creates a Synthesizer over the given store and gateway.
func NewSynthesizer(st store.Store, gw gateway.Gateway) *Synthesizer {
	return &Synthesizer{store: st, gateway: gw}
}

// WeightedTally sums member weights per vote category. Every category is
// present in the result, so the tally totals the panel's full weight.
func WeightedTally(members []council.Member) map[council.Vote]float64 {
	tally := make(map[council.Vote]float64, len(council.Votes))
	for _, v := range council.Votes {
		tally[v] = 0
	}
	for _, m := range members {
		if m.Vote != nil {
			tally[*m.Vote] += m.Weight
		}
	}
	return tally
}

// Unanimous reports whether all members cast the same vote. A unanimous
// panel is flagged suspicious and forces a consensus warning downstream.
func Unanimous(members []council.Member) bool {
	if len(members) == 0 {
		return false
	}
	distinct := make(map[council.Vote]bool)
	for _, m := range members {
		if m.Vote == nil {
			return false
		}
		distinct[*m.Vote] = true
	}
	return len(distinct) == 1
}

// Synthesize computes the weighted tally and suspicion flag, sends the
// synthesis request, validates the response, and finalizes the session. On
// any failure before finalization it appends a synthesis_error entry and
// leaves the session running so a later invocation can retry; all members
// still show their votes, so the quorum precondition keeps holding. When the
// decision is finalized but its terminal audit entry fails to land, both the
// decision and the error are returned.
func (s *Synthesizer) Synthesize(ctx context.Context, sess *council.Session) (*council.Decision, error) {
	audit := newAuditLog(s.store, sess)

	tally := WeightedTally(sess.Members)
	suspicious := Unanimous(sess.Members)
	summaries, gaps := summarizeVotes(sess.Members)
	prompt := BuildSynthesisPrompt(sess, summaries, suspicious)
	idempotencyKey := sess.ID + ":" + synthesizerSpeaker

	if err := audit.append(ctx, synthesizerSpeaker, council.MessageSynthesisDispatch, "synthesis request dispatched", map[string]any{
		"suspicious_consensus": suspicious,
		"schema_gaps":          len(gaps),
		"idempotency_key":      idempotencyKey,
	}); err != nil {
		return nil, fmt.Errorf("deliberate: audit synthesis dispatch: %w", err)
	}

	res, err := s.gateway.Call(ctx, gateway.CallRequest{
		SessionKey:     sess.ID,
		IdempotencyKey: idempotencyKey,
		Prompt:         prompt,
	})
	if err != nil {
		return nil, s.recordError(ctx, audit, "transport", err)
	}

	synth, err := ValidateSynthesis(res.Text, suspicious)
	if err != nil {
		return nil, s.recordError(ctx, audit, errorCategory(err), err)
	}

	decision := council.Decision{
		Outcome:          synth.Outcome,
		Summary:          synth.Summary,
		ConsensusWarning: synth.ConsensusWarning,
		WeightedTally:    tally,
		SchemaGaps:       gaps,
		Provider:         res.Provider,
		Model:            res.Model,
	}

	if err := s.store.FinalizeDecision(ctx, sess.ID, decision, synth.Confidence, synth.Rationale); err != nil {
		return nil, s.recordError(ctx, audit, "store", err)
	}

	if err := audit.append(ctx, synthesizerSpeaker, council.MessageSynthesisComplete, string(decision.Outcome), map[string]any{
		"confidence":        synth.Confidence,
		"consensus_warning": decision.ConsensusWarning != "",
	}); err != nil {
		// The session is decided; the caller gets both the decision and
		// the audit gap.
		return &decision, fmt.Errorf("deliberate: decision recorded but synthesis_complete append failed: %w", err)
	}

	return &decision, nil
}

// recordError appends the synthesis_error entry and passes the cause back to
// the caller. The session is left untouched.
func (s *Synthesizer) recordError(ctx context.Context, audit *auditLog, category string, cause error) error {
	_ = audit.append(ctx, synthesizerSpeaker, council.MessageSynthesisError, cause.Error(), map[string]any{
		"category": category,
	})
	return cause
}

// summarizeVotes builds the per-member synthesis input and the aggregated
// schema-gap list. Each member's serialized vote payload carries its own
// schema-gap report; payloads that fail to decode contribute an empty
// summary rather than an error, since the vote itself is already on record.
func summarizeVotes(members []council.Member) ([]VoteSummary, []string) {
	var summaries []VoteSummary
	var gaps []string

	for _, m := range members {
		summary := VoteSummary{
			MemberID: m.ID,
			AgentID:  m.AgentID,
			Role:     string(roles.Classify(m.AgentID, m.Role)),
			Weight:   m.Weight,
		}
		if m.Vote != nil {
			summary.Vote = string(*m.Vote)
		}
		if m.VoteScore != nil {
			summary.Confidence = *m.VoteScore
		}

		var payload council.VotePayload
		if m.Reasoning != "" && json.Unmarshal([]byte(m.Reasoning), &payload) == nil {
			summary.Justification = payload.Justification
			summary.Contrarian = payload.Contrarian
			summary.SchemaGaps = payload.RoleValidation.MissingFields
			for _, field := range payload.RoleValidation.MissingFields {
				gaps = append(gaps, m.ID+": "+field)
			}
		}

		summaries = append(summaries, summary)
	}
	return summaries, gaps
}

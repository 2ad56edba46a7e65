package deliberate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/roles"
)

// ParseError indicates the provider text was not recoverable JSON by any of
// the extraction strategies.
type ParseError struct {
	Detail string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("deliberate: parse error: %s", e.Detail)
}

// PolicyError indicates the response violated the justification/evidence
// policy. Policy violations are hard failures: the vote is not recorded.
type PolicyError struct {
	Rule   string
	Detail string
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("deliberate: policy violation (%s): %s", e.Rule, e.Detail)
}

// Policy rule identifiers carried on PolicyError.
const (
	RuleJustificationRequired   = "justification_required"
	RuleEvidenceMinTwo          = "evidence_min_2"
	RuleEvidenceMinThree        = "evidence_min_3"
	RuleCounterargumentRequired = "counterargument_required"
)

// extractObject recovers a JSON object from free-form provider text. The
// strategies run in order, each a fallback for the previous:
//
//  1. direct parse of the whole string
//  2. parse of the contents of a fenced code block, if present
//  3. parse of the substring between the first '{' and the last '}'
func extractObject(raw string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj, nil
	}

	if fenced, ok := fencedBlock(raw); ok {
		if err := json.Unmarshal([]byte(fenced), &obj); err == nil {
			return obj, nil
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err == nil {
			return obj, nil
		}
	}

	return nil, &ParseError{Detail: "no JSON object recoverable from response text"}
}

// fencedBlock returns the contents of the first ``` fenced code block,
// skipping the optional language tag on the opening fence line.
func fencedBlock(raw string) (string, bool) {
	open := strings.Index(raw, "```")
	if open == -1 {
		return "", false
	}
	afterFence := raw[open+3:]
	newline := strings.Index(afterFence, "\n")
	if newline == -1 {
		return "", false
	}
	body := afterFence[newline+1:]
	end := strings.Index(body, "```")
	if end == -1 {
		return "", false
	}
	return body[:end], true
}

// normalizeVote maps a raw vote value to one of the four categories. Any
// unrecognized or missing value normalizes to abstain; this is a policy
// default, not an error.
func normalizeVote(v any) council.Vote {
	s := strings.ToLower(strings.TrimSpace(asString(v)))
	switch council.Vote(s) {
	case council.VoteApprove, council.VoteReject, council.VoteAbstain, council.VoteAmend:
		return council.Vote(s)
	}
	return council.VoteAbstain
}

// clampConfidence coerces a raw confidence value into [0,1], defaulting to
// 0.5 when missing or non-numeric.
func clampConfidence(v any) float64 {
	f, ok := asFloat(v)
	if !ok {
		return 0.5
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// asString coerces a decoded JSON value to a string, returning "" for
// non-strings.
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asFloat coerces a decoded JSON value to a float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// stringList extracts the non-empty string entries from a decoded JSON array.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(asString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fieldPresent reports whether a role_output field carries a usable value.
// Blank strings, empty arrays, and empty objects count as missing.
func fieldPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// ValidateVote parses raw provider output into a canonical VotePayload and
// enforces the vote/confidence/evidence policy for one member. Role-schema
// completeness is checked softly: missing role_output fields are recorded on
// the payload but never reject the vote.
func ValidateVote(raw string, role roles.Key, contrarian bool) (*council.VotePayload, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, err
	}

	payload := &council.VotePayload{
		Vote:                    normalizeVote(obj["vote"]),
		Confidence:              clampConfidence(obj["confidence"]),
		Analysis:                asString(obj["analysis"]),
		Reasoning:               asString(obj["reasoning"]),
		Justification:           strings.TrimSpace(asString(obj["justification"])),
		Evidence:                stringList(obj["evidence"]),
		CounterargumentRejected: strings.TrimSpace(asString(obj["counterargument_rejected"])),
		Contrarian:              contrarian,
	}
	if ro, ok := obj["role_output"].(map[string]any); ok {
		payload.RoleOutput = ro
	}

	if payload.Justification == "" {
		return nil, &PolicyError{
			Rule:   RuleJustificationRequired,
			Detail: "a non-empty justification is always required",
		}
	}
	if payload.Confidence >= 0.8 && len(payload.Evidence) < 2 {
		return nil, &PolicyError{
			Rule:   RuleEvidenceMinTwo,
			Detail: fmt.Sprintf("confidence %.2f requires at least 2 evidence entries, got %d", payload.Confidence, len(payload.Evidence)),
		}
	}
	if payload.Confidence >= 0.9 {
		if len(payload.Evidence) < 3 {
			return nil, &PolicyError{
				Rule:   RuleEvidenceMinThree,
				Detail: fmt.Sprintf("confidence %.2f requires at least 3 evidence entries, got %d", payload.Confidence, len(payload.Evidence)),
			}
		}
		if payload.CounterargumentRejected == "" {
			return nil, &PolicyError{
				Rule:   RuleCounterargumentRequired,
				Detail: fmt.Sprintf("confidence %.2f requires a non-empty counterargument_rejected", payload.Confidence),
			}
		}
	}

	var missing []string
	for _, field := range roles.ContractFor(role).Required {
		if !fieldPresent(payload.RoleOutput[field]) {
			missing = append(missing, "role_output."+field)
		}
	}
	payload.RoleValidation = council.RoleValidation{MissingFields: missing}

	return payload, nil
}

// DefaultConsensusWarning is used when the panel was unanimous but the
// synthesizer did not supply its own warning text.
const DefaultConsensusWarning = "all members voted identically; the panel may share a blind spot"

// Synthesis is the validated output of the synthesizer call.
type Synthesis struct {
	Outcome          council.Vote
	Confidence       float64
	Summary          string
	Rationale        string
	ConsensusWarning string
}

// ValidateSynthesis parses and checks the synthesizer's own output. The
// outcome defaults to reject when invalid or missing (a conservative
// default), and a consensus warning is produced only when unanimity was
// flagged suspicious upstream.
func ValidateSynthesis(raw string, suspicious bool) (*Synthesis, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, err
	}

	outcome := council.VoteReject
	switch v := council.Vote(strings.ToLower(strings.TrimSpace(asString(obj["outcome"])))); v {
	case council.VoteApprove, council.VoteReject, council.VoteAmend:
		outcome = v
	}

	synth := &Synthesis{
		Outcome:    outcome,
		Confidence: clampConfidence(obj["confidence"]),
		Summary:    strings.TrimSpace(asString(obj["summary"])),
		Rationale:  strings.TrimSpace(asString(obj["rationale"])),
	}

	if suspicious {
		warning := strings.TrimSpace(asString(obj["consensus_warning"]))
		if warning == "" {
			warning = DefaultConsensusWarning
		}
		synth.ConsensusWarning = warning
	}

	return synth, nil
}

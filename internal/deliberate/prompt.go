package deliberate

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/roles"
)

// BuildMemberPrompt renders the structured-output request for one member.
// Pure function of its inputs; no I/O.
func BuildMemberPrompt(sess *council.Session, member council.Member, role roles.Key, contrarian bool) string {
	contract := roles.ContractFor(role)

	var sb strings.Builder
	sb.WriteString("You are a council member deliberating on a decision topic.\n\n")
	fmt.Fprintf(&sb, "Topic: %s\n", sess.Topic)
	if sess.Objective != "" {
		fmt.Fprintf(&sb, "Objective: %s\n", sess.Objective)
	}
	fmt.Fprintf(&sb, "Member: %s (role: %s, vote weight: %g)\n", member.AgentID, role, member.Weight)
	if member.Stance != "" {
		fmt.Fprintf(&sb, "Declared stance: %s\n", member.Stance)
	}

	if contrarian {
		sb.WriteString("\nCONTRARIAN ASSIGNMENT: for this round you must argue against the proposal. ")
		sb.WriteString("Steelman the strongest case for rejection, then vote on the merits of that case.\n")
	}

	sb.WriteString("\nMandatory checklist for your role:\n")
	for _, item := range contract.Checklist {
		fmt.Fprintf(&sb, "- %s\n", item)
	}

	sb.WriteString("\nEvidence policy:\n")
	sb.WriteString("- A non-empty justification is always required.\n")
	sb.WriteString("- confidence >= 0.8 requires at least 2 evidence entries.\n")
	sb.WriteString("- confidence >= 0.9 requires at least 3 evidence entries and a non-empty counterargument_rejected.\n")

	sb.WriteString("\nRespond with a single JSON object and nothing else:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"vote\": \"approve\" | \"reject\" | \"abstain\" | \"amend\",\n")
	sb.WriteString("  \"confidence\": <number between 0 and 1>,\n")
	sb.WriteString("  \"analysis\": \"<your analysis>\",\n")
	sb.WriteString("  \"reasoning\": \"<your reasoning>\",\n")
	sb.WriteString("  \"justification\": \"<why your vote is correct>\",\n")
	sb.WriteString("  \"evidence\": [\"<concrete evidence>\", ...],\n")
	sb.WriteString("  \"counterargument_rejected\": \"<strongest opposing argument and why it fails>\",\n")
	sb.WriteString("  \"role_output\": " + roleOutputSchema(contract) + "\n")
	sb.WriteString("}\n")

	return sb.String()
}

// roleOutputSchema renders the exact role_output JSON shape the model must
// satisfy, one required field per line.
func roleOutputSchema(contract roles.Contract) string {
	var sb strings.Builder
	sb.WriteString("{\n")
	for i, field := range contract.Required {
		fmt.Fprintf(&sb, "    %q: \"<required>\"", field)
		if i < len(contract.Required)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("  }")
	return sb.String()
}

// BuildSynthesisPrompt renders the aggregate request that asks the provider
// to synthesize all member votes into a single decision. When suspicious is
// true (unanimous panel), the consensus_warning output field is mandatory.
func BuildSynthesisPrompt(sess *council.Session, summaries []VoteSummary, suspicious bool) string {
	var sb strings.Builder
	sb.WriteString("You are the council synthesizer. Every member has voted; produce one decision.\n\n")
	fmt.Fprintf(&sb, "Topic: %s\n", sess.Topic)
	if sess.Objective != "" {
		fmt.Fprintf(&sb, "Objective: %s\n", sess.Objective)
	}

	sb.WriteString("\nMember votes:\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "- %s (%s, role %s, weight %g): vote=%s confidence=%.2f",
			s.MemberID, s.AgentID, s.Role, s.Weight, s.Vote, s.Confidence)
		if s.Contrarian {
			sb.WriteString(" [contrarian]")
		}
		sb.WriteString("\n")
		if s.Justification != "" {
			fmt.Fprintf(&sb, "  justification: %s\n", s.Justification)
		}
		if len(s.SchemaGaps) > 0 {
			fmt.Fprintf(&sb, "  schema gaps: %s\n", strings.Join(s.SchemaGaps, ", "))
		}
	}

	if suspicious {
		sb.WriteString("\nAll members voted identically. This unanimity is suspicious; ")
		sb.WriteString("a \"consensus_warning\" field is MANDATORY in your output, explaining ")
		sb.WriteString("what the panel may have collectively missed.\n")
	}

	sb.WriteString("\nWeigh each vote by the member's weight. Schema gaps reduce the ")
	sb.WriteString("reliability of that member's role analysis; say so when they matter.\n")

	sb.WriteString("\nRespond with a single JSON object and nothing else:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"outcome\": \"approve\" | \"reject\" | \"amend\",\n")
	sb.WriteString("  \"confidence\": <number between 0 and 1>,\n")
	sb.WriteString("  \"summary\": \"<one-paragraph decision summary>\",\n")
	sb.WriteString("  \"rationale\": \"<why this outcome follows from the votes>\"")
	if suspicious {
		sb.WriteString(",\n  \"consensus_warning\": \"<what unanimity may be hiding>\"\n")
	} else {
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")

	return sb.String()
}

package roles

// Contract carries the role-specific structured-output requirements embedded
// into member prompts and enforced (softly) by response validation.
type Contract struct {
	// Required lists the role_output fields the model must supply.
	// Missing fields are recorded as schema gaps, never rejected.
	Required []string

	// Checklist is the mandatory instruction block for the role. Each line
	// demands a concrete, falsifiable claim rather than vague language.
	Checklist []string
}

// contracts is the compile-time table of per-role output contracts.
var contracts = map[Key]Contract{
	Huragok: {
		Required: []string{
			"tech_risks",
			"latency_scale_concerns",
			"dependency_conflicts",
			"build_recommendation",
		},
		Checklist: []string{
			"Name the specific components, not layers, where this change lands.",
			"List every technical risk with the failure mode it causes.",
			"State latency and scale concerns with concrete numbers or thresholds.",
			"Identify dependency conflicts by package or service name.",
			"End with a single build/no-build recommendation.",
		},
	},
	Oracle: {
		Required: []string{
			"strategic_risks",
			"second_order_effects",
			"reversibility",
			"strategic_recommendation",
		},
		Checklist: []string{
			"Name exactly 3 specific risks; each must be falsifiable.",
			"Describe at least one second-order effect per risk.",
			"State whether the decision is reversible and what reversal costs.",
			"End with a single strategic recommendation.",
		},
	},
	Researcher: {
		Required: []string{
			"evidence_sources",
			"unknowns",
			"experiment_proposal",
			"research_recommendation",
		},
		Checklist: []string{
			"Cite concrete evidence sources; no appeals to general knowledge.",
			"List the unknowns that most change the outcome if resolved.",
			"Propose one experiment that would settle the largest unknown.",
			"End with a single research-backed recommendation.",
		},
	},
	Librarian: {
		Required: []string{
			"related_precedents",
			"documentation_gaps",
			"classification",
			"archive_recommendation",
		},
		Checklist: []string{
			"Name prior decisions or precedents this topic resembles.",
			"List documentation gaps that would block a future reader.",
			"Classify the decision by domain and blast radius.",
			"End with a single archival recommendation.",
		},
	},
	Generic: {
		Required: []string{
			"key_risks",
			"recommendation",
		},
		Checklist: []string{
			"List the key risks; each must be specific and falsifiable.",
			"End with a single recommendation.",
		},
	},
}

// ContractFor returns the output contract for a role archetype. Unknown keys
// fall back to the Generic contract.
func ContractFor(key Key) Contract {
	if c, ok := contracts[key]; ok {
		return c
	}
	return contracts[Generic]
}

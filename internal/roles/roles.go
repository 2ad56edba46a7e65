// Package roles maps council member identities to a fixed set of role
// archetypes and carries each archetype's structured-output contract.
package roles

import "strings"

// Key identifies a role archetype. The set is closed: every member resolves
// to exactly one Key, with Generic as the total fallback.
type Key string

const (
	Huragok    Key = "huragok"    // engineer archetype
	Oracle     Key = "oracle"     // strategist archetype
	Researcher Key = "researcher" // evidence-gathering archetype
	Librarian  Key = "librarian"  // precedent and documentation archetype
	Generic    Key = "generic"
)

// Keys lists every archetype in classification precedence order.
var Keys = []Key{Huragok, Oracle, Researcher, Librarian, Generic}

// aliases maps each archetype to the identity substrings that select it.
// Matching is case-insensitive substring containment.
var aliases = map[Key][]string{
	Huragok:    {"huragok", "engineer", "builder", "forge", "dev"},
	Oracle:     {"oracle", "strategist", "sage", "visionary"},
	Researcher: {"researcher", "research", "analyst", "scout"},
	Librarian:  {"librarian", "archivist", "curator", "docs"},
}

// Classify resolves a member's agent ID and optional role hint to a role
// archetype. The agent ID is checked first, then the role hint; anything
// unmatched falls back to Generic. Classify never fails.
func Classify(agentID, role string) Key {
	for _, candidate := range []string{agentID, role} {
		lower := strings.ToLower(candidate)
		if lower == "" {
			continue
		}
		for _, key := range Keys {
			for _, alias := range aliases[key] {
				if strings.Contains(lower, alias) {
					return key
				}
			}
		}
	}
	return Generic
}

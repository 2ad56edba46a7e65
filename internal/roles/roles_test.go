package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		agentID string
		role    string
		want    Key
	}{
		{name: "huragok by agent id", agentID: "huragok-7", want: Huragok},
		{name: "engineer alias", agentID: "lead-engineer", want: Huragok},
		{name: "oracle by agent id", agentID: "Oracle", want: Oracle},
		{name: "strategist alias case-insensitive", agentID: "STRATEGIST-2", want: Oracle},
		{name: "researcher", agentID: "field-researcher", want: Researcher},
		{name: "librarian", agentID: "the-librarian", want: Librarian},
		{name: "role hint used when agent id unmatched", agentID: "agent-42", role: "archivist", want: Librarian},
		{name: "agent id wins over role hint", agentID: "huragok-prime", role: "oracle", want: Huragok},
		{name: "unmatched falls back to generic", agentID: "agent-42", role: "observer", want: Generic},
		{name: "empty inputs", want: Generic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.agentID, tt.role))
		})
	}
}

func TestContractFor_EveryKeyHasContract(t *testing.T) {
	for _, key := range Keys {
		c := ContractFor(key)
		assert.NotEmpty(t, c.Required, "role %s must declare required fields", key)
		assert.NotEmpty(t, c.Checklist, "role %s must declare a checklist", key)
	}
}

func TestContractFor_UnknownKeyFallsBack(t *testing.T) {
	assert.Equal(t, ContractFor(Generic), ContractFor(Key("unmapped")))
}

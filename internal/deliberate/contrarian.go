package deliberate

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/dusk-indust/council/internal/council"
)

// sessionHash is the stable 32-bit FNV-1a hash used to seed contrarian
// rotation. The rotation order is part of the engine's observable behavior,
// so the hash must never change; fixed vectors are pinned in the tests.
func sessionHash(sessionID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return h.Sum32()
}

// countFanoutDispatches returns how many fanout_dispatch messages the session
// has recorded so far. The count divided by the panel size gives the current
// round index.
func countFanoutDispatches(messages []council.Message) int {
	n := 0
	for _, msg := range messages {
		if msg.Type == council.MessageFanoutDispatch {
			n++
		}
	}
	return n
}

// SelectContrarian deterministically picks the one member designated to argue
// against the proposal for the current round. Members are ordered by ID, the
// round index is priorFanoutDispatches / memberCount, and the pick is
// (sessionHash + round) mod memberCount — so the same session and round
// always yield the same contrarian, and across memberCount consecutive
// rounds every member serves exactly once before any repeats.
func SelectContrarian(sessionID string, members []council.Member, priorFanoutDispatches int) (string, error) {
	if len(members) == 0 {
		return "", fmt.Errorf("deliberate: session %s has no members", sessionID)
	}

	ordered := make([]council.Member, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})

	// The sum stays in uint32: converting the hash to int first would go
	// negative on 32-bit platforms.
	count := uint32(len(ordered))
	round := uint32(priorFanoutDispatches/len(ordered)) % count
	idx := (sessionHash(sessionID)%count + round) % count
	return ordered[idx].ID, nil
}

package deliberate

import (
	"context"
	"sync"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/store"
)

// auditLog appends turn-numbered messages to a session's append-only record.
// Turn numbers are allocated under a mutex so concurrent member tasks within
// one round get unique, monotonically increasing numbers; the counter is
// seeded from the highest turn already on record.
type auditLog struct {
	store     store.Store
	sessionID string

	mu       sync.Mutex
	nextTurn int
}

// newAuditLog seeds a turn allocator for the session from its loaded
// messages.
func newAuditLog(st store.Store, sess *council.Session) *auditLog {
	maxTurn := 0
	for _, msg := range sess.Messages {
		if msg.TurnNo > maxTurn {
			maxTurn = msg.TurnNo
		}
	}
	return &auditLog{
		store:     st,
		sessionID: sess.ID,
		nextTurn:  maxTurn + 1,
	}
}

// append writes one audit entry with the next turn number. A turn number is
// consumed even if the underlying write fails.
func (a *auditLog) append(ctx context.Context, speakerID string, msgType council.MessageType, content string, metadata map[string]any) error {
	a.mu.Lock()
	turn := a.nextTurn
	a.nextTurn++
	a.mu.Unlock()

	return a.store.AppendMessage(ctx, council.Message{
		ID:        council.NewID(),
		SessionID: a.sessionID,
		TurnNo:    turn,
		SpeakerID: speakerID,
		Type:      msgType,
		Content:   content,
		Metadata:  metadata,
	})
}

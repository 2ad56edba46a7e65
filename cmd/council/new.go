package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/store"
)

// memberFlags collects repeated -member values.
type memberFlags []string

func (m *memberFlags) String() string { return strings.Join(*m, ",") }

func (m *memberFlags) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func runNew(ctx context.Context, st store.Store, args []string) error {
	fs := flag.NewFlagSet("council new", flag.ContinueOnError)
	topic := fs.String("topic", "", "decision topic (required)")
	objective := fs.String("objective", "", "objective recorded on the session")
	mode := fs.String("mode", "weighted", "decision mode: majority, weighted, debate_judge")
	createdBy := fs.String("created-by", "cli", "creator recorded on the session")
	var members memberFlags
	fs.Var(&members, "member", "panel member as agent[:role[:weight[:stance]]]; repeatable")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *topic == "" {
		return fmt.Errorf("-topic is required")
	}
	m := council.Mode(*mode)
	if !m.Valid() {
		return fmt.Errorf("unknown mode: %s", *mode)
	}
	if len(members) == 0 {
		return fmt.Errorf("at least one -member is required")
	}

	sess := council.Session{
		ID:        council.NewID(),
		Topic:     *topic,
		Objective: *objective,
		Mode:      m,
		Status:    council.StatusRunning,
		CreatedBy: *createdBy,
		CreatedAt: time.Now().UTC(),
	}
	for _, spec := range members {
		member, err := parseMember(sess.ID, spec)
		if err != nil {
			return err
		}
		sess.Members = append(sess.Members, member)
	}

	if err := st.CreateSession(ctx, sess); err != nil {
		return err
	}

	fmt.Printf("session %s created with %d members\n", sess.ID, len(sess.Members))
	return nil
}

// parseMember parses one agent[:role[:weight[:stance]]] spec. Weight
// defaults to 1.
func parseMember(sessionID, spec string) (council.Member, error) {
	parts := strings.SplitN(spec, ":", 4)
	agent := strings.TrimSpace(parts[0])
	if agent == "" {
		return council.Member{}, fmt.Errorf("member spec %q has no agent id", spec)
	}

	member := council.Member{
		ID:        council.NewID(),
		SessionID: sessionID,
		AgentID:   agent,
		Weight:    1,
	}
	if len(parts) > 1 {
		member.Role = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || weight <= 0 {
			return council.Member{}, fmt.Errorf("member spec %q has invalid weight %q", spec, parts[2])
		}
		member.Weight = weight
	}
	if len(parts) > 3 {
		member.Stance = strings.TrimSpace(parts[3])
	}
	return member, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"unicode/utf8"

	"github.com/dusk-indust/council/internal/council"
	"github.com/dusk-indust/council/internal/roles"
	"github.com/dusk-indust/council/internal/store"
)

func runStatus(ctx context.Context, st store.Store, args []string) error {
	fs := flag.NewFlagSet("council status", flag.ContinueOnError)
	statusFilter := fs.String("status", "", "filter: running, decided, cancelled, timeout")
	limit := fs.Int("limit", 0, "maximum sessions to list (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return printSession(ctx, st, fs.Arg(0))
	}
	return printSessions(ctx, st, *statusFilter, *limit)
}

func printSessions(ctx context.Context, st store.Store, statusFilter string, limit int) error {
	filter := store.ListFilter{Limit: limit}
	if statusFilter != "" {
		status := council.SessionStatus(statusFilter)
		switch status {
		case council.StatusRunning, council.StatusDecided, council.StatusCancelled, council.StatusTimeout:
			filter.Status = status
		default:
			return fmt.Errorf("unknown status filter: %s", statusFilter)
		}
	}

	sessions, err := st.ListSessions(ctx, filter)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		fmt.Println("Run 'council new' to start a deliberation.")
		return nil
	}

	for _, sess := range sessions {
		fmt.Printf("%s  %-9s %-12s %s\n", sess.ID, sess.Status, sess.Mode, sess.Topic)
	}
	return nil
}

func printSession(ctx context.Context, st store.Store, id string) error {
	sess, err := st.GetSession(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Topic:   %s\n", sess.Topic)
	if sess.Objective != "" {
		fmt.Printf("Objective: %s\n", sess.Objective)
	}
	fmt.Printf("Mode:    %s\n", sess.Mode)
	fmt.Printf("Status:  %s\n", sess.Status)
	fmt.Printf("Votes:   %d/%d\n", sess.VotedCount(), len(sess.Members))

	fmt.Println("\nMembers:")
	for _, m := range sess.Members {
		role := roles.Classify(m.AgentID, m.Role)
		vote := "pending"
		if m.Vote != nil {
			vote = string(*m.Vote)
			if m.VoteScore != nil {
				vote = fmt.Sprintf("%s (%.2f)", vote, *m.VoteScore)
			}
		}
		fmt.Printf("  %-12s %-10s weight %-5g %s\n", m.AgentID, role, m.Weight, vote)
	}

	if sess.FinalDecision != nil {
		d := sess.FinalDecision
		fmt.Println("\nDecision:")
		fmt.Printf("  Outcome:    %s (confidence %.2f)\n", d.Outcome, sess.Confidence)
		if d.Summary != "" {
			fmt.Printf("  Summary:    %s\n", d.Summary)
		}
		if sess.Rationale != "" {
			fmt.Printf("  Rationale:  %s\n", sess.Rationale)
		}
		fmt.Print("  Tally:     ")
		for _, v := range council.Votes {
			fmt.Printf(" %s=%g", v, d.WeightedTally[v])
		}
		fmt.Println()
		if d.ConsensusWarning != "" {
			fmt.Printf("  Warning:    %s\n", d.ConsensusWarning)
		}
		for _, gap := range d.SchemaGaps {
			fmt.Printf("  Schema gap: %s\n", gap)
		}
	}

	if len(sess.Messages) > 0 {
		fmt.Println("\nAudit log:")
		for _, msg := range sess.Messages {
			fmt.Printf("  %3d %-12s %-18s %s\n", msg.TurnNo, msg.SpeakerID, msg.Type, truncate(msg.Content, 60))
		}
	}
	return nil
}

// truncate shortens s to at most n runes, never splitting a multi-byte
// character.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

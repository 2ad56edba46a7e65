package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dusk-indust/council/internal/deliberate"
	"github.com/dusk-indust/council/internal/gateway"
	"github.com/dusk-indust/council/internal/store"
)

func runDispatch(ctx context.Context, st store.Store, gw gateway.Gateway, args []string) error {
	fs := flag.NewFlagSet("council dispatch", flag.ContinueOnError)
	quiet := fs.Bool("quiet", false, "suppress per-member progress output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: council dispatch [-quiet] <session-id>")
	}

	var onProgress func(deliberate.ProgressEvent)
	if !*quiet {
		onProgress = func(ev deliberate.ProgressEvent) {
			if ev.Message != "" {
				fmt.Printf("  %-8s %s: %s\n", ev.Status, ev.MemberID, ev.Message)
				return
			}
			fmt.Printf("  %-8s %s\n", ev.Status, ev.MemberID)
		}
	}

	coord := deliberate.NewCoordinator(st, gw, onProgress)
	report, err := coord.DispatchPendingVotes(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	if report.Skipped {
		fmt.Printf("skipped: %s\n", report.Reason)
		return nil
	}

	fmt.Printf("dispatched %d members\n", report.Dispatched)
	switch {
	case report.Synthesized:
		fmt.Println("decision synthesized")
	case report.SynthesisNote != "":
		fmt.Printf("no decision: %s\n", report.SynthesisNote)
	default:
		fmt.Println("quorum not reached; re-run dispatch to retry pending members")
	}
	return nil
}

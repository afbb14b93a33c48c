package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/triage/internal/llm"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/respond"
	"github.com/example/triage/internal/retrieval"
	"github.com/example/triage/internal/triage"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Triage one question and print the routing decision",
	Long: `Runs a question through the full triage pipeline: retrieves similar
historical tickets, scores confidence, and routes to auto-respond or
escalation. Escalations land on the agent queue exactly as they would
through the server.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("respond", false, "draft the customer reply as well")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]
	respondFlag, _ := cmd.Flags().GetBool("respond")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ix, embedder, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}

	s, err := openStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	provider, err := createProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	tracker := &llm.UsageTracker{}

	orch := newOrchestrator(cfg, retrieval.NewEngine(embedder, ix), s, provider, tracker)
	rec, err := orch.Triage(ctx, question)
	if err != nil {
		return fmt.Errorf("triage failed: %w", err)
	}

	printDecision(rec)

	escalated := rec.Route == policy.RouteEscalate
	var reply *respond.Reply

	if !escalated && respondFlag {
		gen := newGenerator(cfg, provider, ix, tracker)
		if gen == nil {
			fmt.Fprintln(os.Stderr, "\nWarning: no llm provider configured; cannot draft a reply")
		} else if reply, err = gen.Generate(ctx, rec); err != nil {
			// Same degradation as the server: the record keeps its route,
			// but an undeliverable reply goes to an agent.
			fmt.Fprintf(os.Stderr, "\nWarning: drafting reply failed (%v); handing off to an agent\n", err)
			escalated = true
		}
	}

	if escalated {
		item, err := s.queue.Enqueue(ctx, rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not queue for agent review: %v\n", err)
		} else {
			fmt.Printf("\nQueued for agent review (id %s).\n", item.ID)
		}
		if _, err := s.dispatcher.Dispatch(ctx, notify.EscalationEvent(rec)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: escalation notification failed: %v\n", err)
		}
		if respondFlag && reply == nil {
			reply = respond.Handoff(rec.QueryID)
		}
	}

	if reply != nil {
		fmt.Printf("\nReply (%s):\n\n%s\n", reply.Band, reply.Text)
	}

	if usage := tracker.Snapshot(); verbose && usage.Requests > 0 {
		fmt.Fprintf(os.Stderr, "\nLLM usage: %d requests, %d input + %d output tokens, $%.4f\n",
			usage.Requests, usage.InputTokens, usage.OutputTokens, usage.CostUSD)
	}
	return nil
}

func printDecision(rec triage.DecisionRecord) {
	verdict := color.New(color.FgHiGreen, color.Bold).Sprint("AUTO-RESPOND")
	if rec.Route == policy.RouteEscalate {
		verdict = color.New(color.FgHiRed, color.Bold).Sprint("ESCALATE")
	}
	fmt.Printf("\n%s   confidence %.3f against threshold %.3f\n", verdict, rec.Confidence, rec.ThresholdUsed)
	fmt.Printf("Query %s\n", rec.QueryID)

	if len(rec.Signals) > 0 {
		names := make([]string, 0, len(rec.Signals))
		for name := range rec.Signals {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("\nSignals:")
		for _, name := range names {
			fmt.Printf("   %-16s %.3f\n", name, rec.Signals[name])
		}
	}

	if len(rec.Evidence) == 0 {
		fmt.Println("\nNo similar tickets found.")
		return
	}
	fmt.Println("\nEvidence:")
	for _, ev := range rec.Evidence {
		fmt.Printf("   %d. [%.1f%%] %s\n", ev.Rank, ev.Similarity*100, ev.TicketID)
	}
}

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/retrieval"
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Find historical tickets similar to a question",
	Long: `Embeds the question and prints the nearest historical tickets with
their similarity scores. Useful for checking what evidence a triage
decision would rest on.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ix, embedder, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	if ix.Count() == 0 {
		fmt.Println("The index is empty. Run `triage ingest` first.")
		return nil
	}

	engine := retrieval.NewEngine(embedder, ix)
	set, err := engine.Retrieve(ctx, question, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(set) == 0 {
		fmt.Println("No similar tickets found.")
		return nil
	}

	// Lookup failures degrade to scores-only output rather than hiding
	// the ranking.
	tickets, err := ix.Lookup(ctx, set.TicketIDs())
	if err != nil {
		tickets = nil
	}

	fmt.Printf("Found %d similar tickets:\n\n", len(set))
	for _, ev := range set {
		fmt.Printf("%d. [%.1f%%] %s%s\n", ev.Rank, ev.Similarity*100, ev.TicketID, ticketTag(tickets, ev.TicketID))
		if rec, ok := tickets[ev.TicketID]; ok && rec.Text != "" {
			fmt.Printf("   %s\n", truncate(strings.ReplaceAll(rec.Text, "\n", " "), 160))
		}
		fmt.Println()
	}
	return nil
}

// ticketTag renders the status and priority suffix for a result line.
func ticketTag(tickets map[string]index.TicketRecord, id string) string {
	rec, ok := tickets[id]
	if !ok {
		return ""
	}
	var parts []string
	if s := rec.Resolution[index.ResolutionStatus]; s != "" {
		parts = append(parts, s)
	}
	if p := rec.Resolution[index.ResolutionPriority]; p != "" {
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf(" (%s)", strings.Join(parts, ", "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

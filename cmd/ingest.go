package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/ingest"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Load historical tickets into the vector index",
	Long: `Parses Jira CSV exports (files or directories) and embeds their
resolved tickets into the vector index that backs retrieval.

Existing tickets with the same issue key are replaced, so re-running
ingest on a newer export updates the index in place.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Bool("rebuild", false, "start from an empty index instead of merging")
	ingestCmd.Flags().Bool("estimate", false, "preview the embedding cost without calling the API")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rebuild, _ := cmd.Flags().GetBool("rebuild")
	estimate, _ := cmd.Flags().GetBool("estimate")

	icfg := ingest.Config{
		BatchSize:   cfg.Ingest.BatchSize,
		Concurrency: cfg.Ingest.Concurrency,
		Include:     cfg.Ingest.Include,
		Exclude:     cfg.Ingest.Exclude,
	}

	// Estimating only parses the exports, so it needs no embedder and no
	// API key.
	if estimate {
		return runIngestEstimate(ctx, args, icfg, cfg.Embedding.Model)
	}

	ix, _, err := newIndex(cfg)
	if err != nil {
		return err
	}

	_, indexDir := dataPaths(cfg)
	if !rebuild {
		if err := ix.Load(ctx, indexDir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading existing index: %w\nUse --rebuild to discard it and start fresh", err)
		}
	}

	pipeline := ingest.NewPipeline(ix, icfg)
	pipeline.SetReporter(progress.NewReporter())

	res, err := pipeline.Run(ctx, args)
	if err != nil {
		return fmt.Errorf("ingesting tickets: %w", err)
	}

	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := ix.Persist(ctx, indexDir); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("   Files parsed:    %d\n", res.FilesParsed)
	fmt.Printf("   Tickets parsed:  %d\n", res.Parsed)
	fmt.Printf("   Tickets indexed: %d (%d replaced)\n", res.Indexed, res.Replaced)
	fmt.Printf("   Skipped:         %d\n", res.Skipped)
	fmt.Printf("   Index size:      %d tickets\n", ix.Count())
	fmt.Printf("   Duration:        %s\n", res.Duration.Round(time.Millisecond))
	printIngestErrors(res.Errors)

	// Record the refresh in the notification feed so agents see that new
	// evidence arrived. The feed is best-effort here: a closed database
	// must not fail an ingest that already persisted.
	s, err := openStack(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not record ingest notification: %v\n", err)
		return nil
	}
	defer s.Close()
	if _, err := s.dispatcher.Dispatch(ctx, notify.IngestEvent(res.Indexed, res.Replaced, res.Skipped)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ingest notification failed: %v\n", err)
	}
	return nil
}

func runIngestEstimate(ctx context.Context, paths []string, icfg ingest.Config, model string) error {
	tickets, res, err := ingest.Load(ctx, paths, icfg)
	if err != nil {
		return fmt.Errorf("loading tickets: %w", err)
	}

	est := ingest.EstimateEmbedding(tickets, model)

	fmt.Println("Embedding Cost Estimate")
	fmt.Println("=======================")
	fmt.Printf("   Files parsed:     %d\n", res.FilesParsed)
	fmt.Printf("   Tickets:          %d (%d skipped)\n", est.Tickets, res.Skipped)
	fmt.Printf("   Estimated tokens: %d\n", est.Tokens)
	fmt.Printf("   Estimated cost:   $%.4f (%s)\n", est.CostUSD, model)
	printIngestErrors(res.Errors)
	return nil
}

func printIngestErrors(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\nWarnings (%d):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "   - %v\n", e)
	}
}

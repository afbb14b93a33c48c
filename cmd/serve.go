package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/llm"
	"github.com/example/triage/internal/mcp"
	"github.com/example/triage/internal/retrieval"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol server on stdio, exposing ticket
search, triage, queue, and recalibration tools to AI agents.

Add to your MCP client configuration:
  {"command": "triage", "args": ["serve"]}`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ix, embedder, err := newIndex(cfg)
	if err != nil {
		return err
	}

	// Stdout carries the protocol, so diagnostics go to stderr. Like the
	// HTTP server, an empty index is survivable.
	_, indexDir := dataPaths(cfg)
	if err := ix.Load(ctx, indexDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: no ticket index at %s (%v)\n", indexDir, err)
		fmt.Fprintf(os.Stderr, "Search and triage tools will fail until `triage ingest` runs.\n")
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

	retriever := retrieval.NewEngine(embedder, ix)
	mcp.Version = Version
	srv := mcp.NewServer(mcp.Deps{
		Retriever:    retriever,
		Index:        ix,
		Orchestrator: newOrchestrator(cfg, retriever, s, provider, tracker),
		Generator:    newGenerator(cfg, provider, ix, tracker),
		Engine:       s.engine,
		Policies:     s.policies,
		Feedback:     newFeedbackService(s, cfg),
		Queue:        s.queue,
		Dispatcher:   s.dispatcher,
	})

	params := s.engine.Current()
	fmt.Fprintf(os.Stderr, "triage MCP server started on stdio (tickets=%d, policy=v%d)\n",
		ix.Count(), params.Version)

	return srv.Serve()
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/llm"
	"github.com/example/triage/internal/retrieval"
	"github.com/example/triage/internal/schedule"
	"github.com/example/triage/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the triage HTTP server",
	Long: `Starts the triage API: the decision endpoint, the agent queue and
labeling routes, recalibration and reporting, the notification feed,
and a WebSocket stream of live decisions.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}

	ix, embedder, err := newIndex(cfg)
	if err != nil {
		return err
	}

	// A missing snapshot is not fatal here: the server can come up empty
	// and serve queue and policy routes while ingest runs elsewhere.
	dbPath, indexDir := dataPaths(cfg)
	if err := ix.Load(context.Background(), indexDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: no ticket index at %s (%v)\n", indexDir, err)
		fmt.Fprintf(os.Stderr, "Triage decisions will fail until `triage ingest` runs.\n")
	}

	s, err := openStack(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	provider, err := createProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	tracker := &llm.UsageTracker{}

	svc := newFeedbackService(s, cfg)
	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, server.Deps{
		Orchestrator:  newOrchestrator(cfg, retrieval.NewEngine(embedder, ix), s, provider, tracker),
		Generator:     newGenerator(cfg, provider, ix, tracker),
		Index:         ix,
		Engine:        s.engine,
		Policies:      s.policies,
		Decisions:     s.decisions,
		Labels:        s.labels,
		Feedback:      svc,
		Queue:         s.queue,
		Notifications: s.notices,
		Dispatcher:    s.dispatcher,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Feedback.Schedule != "" {
		next, err := schedule.New().Start(ctx, cfg.Feedback.Schedule, schedule.Job{
			Name: "recalibrate",
			Run: func(ctx context.Context) error {
				_, err := svc.Run(ctx)
				return err
			},
		})
		if err != nil {
			return fmt.Errorf("starting recalibration schedule: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Recalibration scheduled (%q), next run %s\n",
			cfg.Feedback.Schedule, next.Format(time.RFC3339))
	}

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	params := s.engine.Current()
	fmt.Fprintf(os.Stderr, "triage server %s\n", Version)
	fmt.Fprintf(os.Stderr, "   Database: %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "   Tickets:  %d indexed\n", ix.Count())
	fmt.Fprintf(os.Stderr, "   Policy:   v%d, threshold %.3f\n", params.Version, params.Threshold)
	fmt.Fprintf(os.Stderr, "   Listen:   http://localhost:%d\n", cfg.Server.Port)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

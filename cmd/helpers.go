package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slack-go/slack"

	"github.com/example/triage/internal/agentqueue"
	"github.com/example/triage/internal/confidence"
	"github.com/example/triage/internal/config"
	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/decisionlog"
	"github.com/example/triage/internal/embeddings"
	"github.com/example/triage/internal/feedback"
	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/llm"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/respond"
	"github.com/example/triage/internal/triage"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `triage init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// dataPaths derives the storage layout under the configured data dir.
func dataPaths(cfg *config.Config) (dbPath, indexDir string) {
	return filepath.Join(cfg.Index.DataDir, "triage.db"), filepath.Join(cfg.Index.DataDir, "index")
}

// createEmbedder creates an embeddings.Embedder based on config.
func createEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		envVar := cfg.Embedding.KeyEnvVar()
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is required for OpenAI embeddings", envVar)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.Embedding.Model)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.Embedding.Model, 768, cfg.Embedding.Endpoint), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Embedding.Provider)
	}
}

// createProvider creates the completion backend, or nil when the config
// runs without one.
func createProvider(cfg *config.Config) (llm.Provider, error) {
	if cfg.LLM.Provider == "" {
		return nil, nil
	}
	return llm.NewProvider(string(cfg.LLM.Provider), cfg.LLM.Model, cfg.LLM.APIKeyEnv)
}

// newIndex creates an empty ticket index over the configured embedder.
func newIndex(cfg *config.Config) (*index.TicketIndex, embeddings.Embedder, error) {
	embedder, err := createEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	ix, err := index.NewTicketIndex(embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("creating index: %w", err)
	}
	return ix, embedder, nil
}

// openIndex creates the index and loads its snapshot, failing with a hint
// when no snapshot exists yet.
func openIndex(ctx context.Context, cfg *config.Config) (*index.TicketIndex, embeddings.Embedder, error) {
	ix, embedder, err := newIndex(cfg)
	if err != nil {
		return nil, nil, err
	}
	_, indexDir := dataPaths(cfg)
	if err := ix.Load(ctx, indexDir); err != nil {
		return nil, nil, fmt.Errorf("loading index from %s: %w\nRun `triage ingest` first to build the index", indexDir, err)
	}
	return ix, embedder, nil
}

// stack bundles the stores, policy engine, and notifier the commands share.
type stack struct {
	db         *db.DB
	decisions  *decisionlog.Store
	labels     *feedback.LabelStore
	policies   *policy.Store
	queue      *agentqueue.Store
	notices    *notify.Store
	engine     *policy.Engine
	dispatcher *notify.Dispatcher
}

// openStack opens the database and wires the stores. The policy engine is
// seeded from the latest stored version, or from the configured initial
// threshold on first run (persisted as version 1 so history starts there).
func openStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	dbPath, _ := dataPaths(cfg)
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &stack{
		db:        database,
		decisions: decisionlog.NewStore(database),
		labels:    feedback.NewLabelStore(database),
		policies:  policy.NewStore(database),
		queue:     agentqueue.NewStore(database),
		notices:   notify.NewStore(database),
	}

	params, ok, err := s.policies.Latest(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	if !ok {
		params = policy.Parameters{
			Threshold:         cfg.Policy.InitialThreshold,
			CalibrationWindow: cfg.Feedback.CalibrationWindow,
			Version:           1,
		}
		if err := s.policies.Save(ctx, params, nil); err != nil {
			database.Close()
			return nil, fmt.Errorf("seeding policy: %w", err)
		}
	}
	s.engine = policy.NewEngine(params)

	s.dispatcher = notify.NewDispatcher(s.notices, notify.DispatcherConfig{
		WebhookURL:   cfg.Notify.WebhookURL,
		SlackChannel: cfg.Notify.SlackChannel,
		MinSeverity:  notify.Severity(cfg.Notify.MinSeverity),
	})
	if cfg.Notify.SlackChannel != "" && cfg.Notify.SlackTokenEnv != "" {
		if token := os.Getenv(cfg.Notify.SlackTokenEnv); token != "" {
			s.dispatcher.SetSlack(slack.New(token))
		}
	}

	return s, nil
}

func (s *stack) Close() error {
	return s.db.Close()
}

// newFeedbackService wires the recalibration service over the stack.
func newFeedbackService(s *stack, cfg *config.Config) *feedback.Service {
	svc := feedback.NewService(s.decisions, s.labels, s.policies, s.engine, feedback.CalibrationConfig{
		TargetRejectionRate:   cfg.Feedback.TargetRejectionRate,
		TargetUnnecessaryRate: cfg.Feedback.TargetUnnecessaryRate,
		Gain:                  cfg.Feedback.Gain,
		MinThreshold:          cfg.Policy.MinThreshold,
		MaxThreshold:          cfg.Policy.MaxThreshold,
	})
	svc.SetNotifier(s.dispatcher)
	return svc
}

// newOrchestrator builds the decision pipeline around a retriever. The
// sentiment check only runs with a completion backend behind it.
func newOrchestrator(cfg *config.Config, retriever triage.Retriever, s *stack, provider llm.Provider, tracker *llm.UsageTracker) *triage.Orchestrator {
	model := confidence.NewModel(confidence.Weights{
		TopSimilarity: cfg.Confidence.Weights.TopSimilarity,
		Gap:           cfg.Confidence.Weights.Gap,
		Agreement:     cfg.Confidence.Weights.Agreement,
	}, cfg.Confidence.AgreementFloor)

	var sentiment triage.SentimentChecker
	if cfg.Triage.SentimentCheck && provider != nil {
		sentiment = respond.NewSentimentChecker(provider, cfg.LLM.Model, tracker)
	}

	return triage.NewOrchestrator(retriever, model, s.engine, s.decisions, sentiment, triage.Config{
		K:                    cfg.Retrieval.K,
		HumanRequestKeywords: cfg.Triage.HumanRequestKeywords,
		SentimentMargin:      cfg.Triage.SentimentMargin,
		SentimentPenalty:     cfg.Triage.SentimentPenalty,
	})
}

// newGenerator builds the reply drafter, or nil without a completion backend.
func newGenerator(cfg *config.Config, provider llm.Provider, ix *index.TicketIndex, tracker *llm.UsageTracker) *respond.Generator {
	if provider == nil {
		return nil
	}
	gen := respond.NewGenerator(provider, ix, cfg.LLM.Model, tracker)
	gen.SetSampling(cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	return gen
}

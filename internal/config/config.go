package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = ".triage.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TRIAGE_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables. Section names are single words, so
	// the first underscore separates section from key:
	// TRIAGE_SERVER_PORT -> server.port,
	// TRIAGE_POLICY_INITIAL_THRESHOLD -> policy.initial_threshold.
	if err := k.Load(env.Provider("TRIAGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TRIAGE_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validEmbeddingProviders is the set of backends that serve embeddings.
var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// validLLMProviders is the set of backends that serve completions.
var validLLMProviders = map[ProviderType]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
}

// validSeverities is the set of recognized notification floor values.
var validSeverities = map[string]bool{
	"":         true,
	"info":     true,
	"warning":  true,
	"critical": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if !validEmbeddingProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be one of openai, ollama", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}

	if c.LLM.Provider != "" {
		if !validLLMProviders[c.LLM.Provider] {
			return fmt.Errorf("invalid llm.provider %q: must be one of openai, anthropic, ollama", c.LLM.Provider)
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model is required when llm.provider is set")
		}
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be non-negative")
	}

	if c.Index.DataDir == "" {
		return fmt.Errorf("index.data_dir is required")
	}

	if c.Retrieval.K < 1 {
		return fmt.Errorf("retrieval.k must be positive")
	}

	w := c.Confidence.Weights
	if w.TopSimilarity < 0 || w.Gap < 0 || w.Agreement < 0 {
		return fmt.Errorf("confidence.weights must be non-negative")
	}
	if w.TopSimilarity+w.Gap+w.Agreement <= 0 {
		return fmt.Errorf("confidence.weights must not all be zero")
	}
	if c.Confidence.AgreementFloor < 0 || c.Confidence.AgreementFloor > 1 {
		return fmt.Errorf("confidence.agreement_floor must be within [0,1]")
	}

	p := c.Policy
	if p.MinThreshold < 0 || p.MaxThreshold > 1 {
		return fmt.Errorf("policy thresholds must be within [0,1]")
	}
	if p.MinThreshold > p.MaxThreshold {
		return fmt.Errorf("policy.min_threshold %.2f exceeds policy.max_threshold %.2f", p.MinThreshold, p.MaxThreshold)
	}
	if p.InitialThreshold < p.MinThreshold || p.InitialThreshold > p.MaxThreshold {
		return fmt.Errorf("policy.initial_threshold %.2f outside [%.2f, %.2f]", p.InitialThreshold, p.MinThreshold, p.MaxThreshold)
	}

	f := c.Feedback
	if f.CalibrationWindow < 1 {
		return fmt.Errorf("feedback.calibration_window must be positive")
	}
	if f.TargetRejectionRate < 0 || f.TargetRejectionRate > 1 {
		return fmt.Errorf("feedback.target_rejection_rate must be within [0,1]")
	}
	if f.TargetUnnecessaryRate < 0 || f.TargetUnnecessaryRate > 1 {
		return fmt.Errorf("feedback.target_unnecessary_rate must be within [0,1]")
	}
	if f.Gain < 0 {
		return fmt.Errorf("feedback.gain must be non-negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within [1,65535]")
	}

	if !validSeverities[c.Notify.MinSeverity] {
		return fmt.Errorf("invalid notify.min_severity %q: must be one of info, warning, critical", c.Notify.MinSeverity)
	}

	if c.Ingest.BatchSize < 0 {
		return fmt.Errorf("ingest.batch_size must be non-negative")
	}
	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("ingest.concurrency must be non-negative")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for the
// API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// KeyEnvVar returns the environment variable holding this backend's API
// key, honoring an api_key_env override.
func (e EmbeddingConfig) KeyEnvVar() string {
	if e.APIKeyEnv != "" {
		return e.APIKeyEnv
	}
	return APIKeyEnvVar(e.Provider)
}

// KeyEnvVar returns the environment variable holding this backend's API
// key, honoring an api_key_env override.
func (l LLMConfig) KeyEnvVar() string {
	if l.APIKeyEnv != "" {
		return l.APIKeyEnv
	}
	return APIKeyEnvVar(l.Provider)
}

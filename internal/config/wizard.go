package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// modelPresets are the default models per provider.
var modelPresets = map[ProviderType]struct {
	LLMModel       string
	EmbeddingModel string
}{
	ProviderOpenAI:    {LLMModel: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderAnthropic: {LLMModel: "claude-haiku-4-5-20251001", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama:    {LLMModel: "llama3", EmbeddingModel: "nomic-embed-text"},
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .triage.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to triage! Let's configure your support pipeline.")
	fmt.Println()

	// 1. Operating posture.
	posturePrompt := promptui.Select{
		Label: "Select escalation posture",
		Items: []string{
			"strict   - escalate readily (threshold 0.75)",
			"balanced - sensible default (threshold 0.60)",
			"lenient  - trust the model (threshold 0.45)",
		},
	}
	postureIdx, _, err := posturePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("posture selection: %w", err)
	}
	postures := []Preset{PresetStrict, PresetBalanced, PresetLenient}
	posture := postures[postureIdx]

	// 2. Completion provider for drafted replies.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider for drafted replies",
		Items: []string{"openai", "anthropic", "ollama", "none (triage only, no drafts)"},
	}
	providerIdx, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	var provider ProviderType
	if providerIdx < 3 {
		provider = ProviderType(providerStr)
	}

	// 3. Data directory.
	dataDirPrompt := promptui.Prompt{
		Label:   "Data directory for the index and decision log",
		Default: ".triage",
	}
	dataDir, err := dataDirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 4. Extra human-request keywords.
	keywordPrompt := promptui.Prompt{
		Label:   "Extra escalation keywords (comma-separated, leave blank for defaults)",
		Default: "",
	}
	keywordStr, err := keywordPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("escalation keywords: %w", err)
	}

	// 5. Slack channel for escalation alerts.
	slackPrompt := promptui.Prompt{
		Label:   "Slack channel for escalation alerts (leave blank to disable)",
		Default: "",
	}
	slackChannel, err := slackPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("slack channel: %w", err)
	}

	// Build the config.
	cfg := DefaultConfig()
	cfg.ApplyPreset(posture)
	cfg.Index.DataDir = dataDir
	cfg.Triage.HumanRequestKeywords = splitAndTrim(keywordStr)
	cfg.Notify.SlackChannel = strings.TrimSpace(slackChannel)

	embProvider := embeddingProviderFor(provider)
	cfg.Embedding.Provider = embProvider
	cfg.Embedding.Model = modelPresets[embProvider].EmbeddingModel

	if provider == "" {
		// Without a completion backend there are no drafts and no
		// sentiment checks; triage still routes.
		cfg.LLM.Provider = ""
		cfg.LLM.Model = ""
		cfg.Triage.SentimentCheck = false
	} else {
		cfg.LLM.Provider = provider
		cfg.LLM.Model = modelPresets[provider].LLMModel
	}

	// Check for API keys. Both backends may share one.
	seen := map[string]bool{}
	for _, envVar := range []string{cfg.Embedding.KeyEnvVar(), cfg.LLM.KeyEnvVar()} {
		if envVar == "" || seen[envVar] || os.Getenv(envVar) != "" {
			continue
		}
		seen[envVar] = true
		fmt.Printf("\nNote: Set %s in your environment before running triage ingest.\n", envVar)
	}

	// Save to .triage.yml.
	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. Anthropic serves no embeddings, so its drafts pair with
// OpenAI vectors.
func embeddingProviderFor(p ProviderType) ProviderType {
	if p == ProviderOllama {
		return ProviderOllama
	}
	return ProviderOpenAI
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

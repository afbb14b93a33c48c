package config

// ProviderType identifies an embedding or completion backend.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// Preset names an operating posture: how eagerly the pipeline auto-responds
// and how tightly recalibration polices it.
type Preset string

const (
	PresetStrict   Preset = "strict"
	PresetBalanced Preset = "balanced"
	PresetLenient  Preset = "lenient"
)

// Config is the top-level triage configuration, corresponding to .triage.yml.
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding" koanf:"embedding"`
	LLM        LLMConfig        `yaml:"llm" koanf:"llm"`
	Index      IndexConfig      `yaml:"index" koanf:"index"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Confidence ConfidenceConfig `yaml:"confidence" koanf:"confidence"`
	Policy     PolicyConfig     `yaml:"policy" koanf:"policy"`
	Triage     TriageConfig     `yaml:"triage" koanf:"triage"`
	Feedback   FeedbackConfig   `yaml:"feedback" koanf:"feedback"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Notify     NotifyConfig     `yaml:"notify" koanf:"notify"`
	Ingest     IngestConfig     `yaml:"ingest" koanf:"ingest"`
}

// EmbeddingConfig selects the backend that vectorizes tickets and questions.
// Only openai and ollama serve embeddings.
type EmbeddingConfig struct {
	Provider ProviderType `yaml:"provider" koanf:"provider"`
	Model    string       `yaml:"model" koanf:"model"`
	// APIKeyEnv overrides the conventional environment variable the API
	// key is read from.
	APIKeyEnv string `yaml:"api_key_env" koanf:"api_key_env"`
	// Endpoint is the base URL for self-hosted backends.
	Endpoint string `yaml:"endpoint" koanf:"endpoint"`
}

// LLMConfig selects the completion backend that drafts replies and checks
// sentiment. An empty provider disables both; triage itself never needs a
// completion model.
type LLMConfig struct {
	Provider    ProviderType `yaml:"provider" koanf:"provider"`
	Model       string       `yaml:"model" koanf:"model"`
	APIKeyEnv   string       `yaml:"api_key_env" koanf:"api_key_env"`
	MaxTokens   int          `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float64      `yaml:"temperature" koanf:"temperature"`
	// RPM caps completion requests per minute across drafting and
	// sentiment checks. Zero disables the limiter.
	RPM int `yaml:"rpm" koanf:"rpm"`
}

// IndexConfig locates on-disk state. The vector index snapshot and the
// sqlite database both live under DataDir.
type IndexConfig struct {
	DataDir string `yaml:"data_dir" koanf:"data_dir"`
}

// RetrievalConfig sizes the evidence set fetched per question.
type RetrievalConfig struct {
	K int `yaml:"k" koanf:"k"`
}

// ConfidenceConfig tunes how retrieval signals combine into a score.
type ConfidenceConfig struct {
	Weights        WeightsConfig `yaml:"weights" koanf:"weights"`
	AgreementFloor float64       `yaml:"agreement_floor" koanf:"agreement_floor"`
}

// WeightsConfig holds the per-signal weights of the confidence model.
type WeightsConfig struct {
	TopSimilarity float64 `yaml:"top_similarity" koanf:"top_similarity"`
	Gap           float64 `yaml:"gap" koanf:"gap"`
	Agreement     float64 `yaml:"agreement" koanf:"agreement"`
}

// PolicyConfig seeds the escalation policy before any recalibration has run
// and bounds where recalibration may move the threshold.
type PolicyConfig struct {
	InitialThreshold float64 `yaml:"initial_threshold" koanf:"initial_threshold"`
	MinThreshold     float64 `yaml:"min_threshold" koanf:"min_threshold"`
	MaxThreshold     float64 `yaml:"max_threshold" koanf:"max_threshold"`
}

// TriageConfig tunes the orchestrator's escalation overrides.
type TriageConfig struct {
	// HumanRequestKeywords force escalation when present in a question.
	// Empty means the built-in phrase list.
	HumanRequestKeywords []string `yaml:"human_request_keywords" koanf:"human_request_keywords"`
	SentimentCheck       bool     `yaml:"sentiment_check" koanf:"sentiment_check"`
	SentimentMargin      float64  `yaml:"sentiment_margin" koanf:"sentiment_margin"`
	SentimentPenalty     float64  `yaml:"sentiment_penalty" koanf:"sentiment_penalty"`
}

// FeedbackConfig tunes threshold recalibration.
type FeedbackConfig struct {
	CalibrationWindow     int     `yaml:"calibration_window" koanf:"calibration_window"`
	TargetRejectionRate   float64 `yaml:"target_rejection_rate" koanf:"target_rejection_rate"`
	TargetUnnecessaryRate float64 `yaml:"target_unnecessary_rate" koanf:"target_unnecessary_rate"`
	Gain                  float64 `yaml:"gain" koanf:"gain"`
	// Schedule is a 5-field cron expression for automatic recalibration
	// in server mode. Empty disables the background job.
	Schedule string `yaml:"schedule" koanf:"schedule"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" koanf:"port"`
	// AllowedOrigins is the CORS allow list. Empty means localhost only;
	// a single "*" entry allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// NotifyConfig controls outbound escalation and recalibration alerts.
type NotifyConfig struct {
	SlackTokenEnv string `yaml:"slack_token_env" koanf:"slack_token_env"`
	SlackChannel  string `yaml:"slack_channel" koanf:"slack_channel"`
	WebhookURL    string `yaml:"webhook_url" koanf:"webhook_url"`
	MinSeverity   string `yaml:"min_severity" koanf:"min_severity"`
}

// IngestConfig tunes the ticket ingestion pipeline.
type IngestConfig struct {
	BatchSize   int      `yaml:"batch_size" koanf:"batch_size"`
	Concurrency int      `yaml:"concurrency" koanf:"concurrency"`
	Include     []string `yaml:"include" koanf:"include"`
	Exclude     []string `yaml:"exclude" koanf:"exclude"`
}

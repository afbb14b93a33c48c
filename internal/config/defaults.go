package config

// PolicyPreset bundles an initial threshold with the calibration targets
// that hold it in place.
type PolicyPreset struct {
	InitialThreshold      float64
	TargetRejectionRate   float64
	TargetUnnecessaryRate float64
	CalibrationWindow     int
}

// policyPresets maps each posture to its bundle. Strict escalates readily
// and recalibrates over a short window; lenient trusts the model and moves
// slowly.
var policyPresets = map[Preset]PolicyPreset{
	PresetStrict: {
		InitialThreshold:      0.75,
		TargetRejectionRate:   0.05,
		TargetUnnecessaryRate: 0.35,
		CalibrationWindow:     100,
	},
	PresetBalanced: {
		InitialThreshold:      0.60,
		TargetRejectionRate:   0.10,
		TargetUnnecessaryRate: 0.25,
		CalibrationWindow:     200,
	},
	PresetLenient: {
		InitialThreshold:      0.45,
		TargetRejectionRate:   0.20,
		TargetUnnecessaryRate: 0.15,
		CalibrationWindow:     300,
	},
}

// DefaultIncludes are the glob patterns ingested from a directory by default.
var DefaultIncludes = []string{"**/*.csv"}

// DefaultConfig returns a Config with the balanced posture and OpenAI
// backends.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Index: IndexConfig{
			DataDir: ".triage",
		},
		Retrieval: RetrievalConfig{K: 5},
		Confidence: ConfidenceConfig{
			Weights: WeightsConfig{
				TopSimilarity: 0.50,
				Gap:           0.25,
				Agreement:     0.25,
			},
			AgreementFloor: 0.45,
		},
		Policy: PolicyConfig{
			InitialThreshold: 0.60,
			MinThreshold:     0.30,
			MaxThreshold:     0.90,
		},
		Triage: TriageConfig{
			SentimentCheck:   true,
			SentimentMargin:  0.1,
			SentimentPenalty: 0.2,
		},
		Feedback: FeedbackConfig{
			CalibrationWindow:     200,
			TargetRejectionRate:   0.10,
			TargetUnnecessaryRate: 0.25,
			Gain:                  0.5,
			Schedule:              "0 3 * * *",
		},
		Server: ServerConfig{Port: 8080},
		Notify: NotifyConfig{
			SlackTokenEnv: "SLACK_BOT_TOKEN",
			MinSeverity:   "info",
		},
		Ingest: IngestConfig{
			BatchSize:   50,
			Concurrency: 4,
			Include:     DefaultIncludes,
		},
	}
}

// GetPreset returns the policy bundle for the given posture. Unknown
// postures fall back to balanced.
func GetPreset(p Preset) PolicyPreset {
	if preset, ok := policyPresets[p]; ok {
		return preset
	}
	return policyPresets[PresetBalanced]
}

// ApplyPreset overwrites the threshold and calibration targets with the
// given posture's bundle.
func (c *Config) ApplyPreset(p Preset) {
	preset := GetPreset(p)
	c.Policy.InitialThreshold = preset.InitialThreshold
	c.Feedback.TargetRejectionRate = preset.TargetRejectionRate
	c.Feedback.TargetUnnecessaryRate = preset.TargetUnnecessaryRate
	c.Feedback.CalibrationWindow = preset.CalibrationWindow
}

package llm

import (
	"fmt"
	"os"
)

// NewProvider creates a new LLM provider based on the given provider type
// and model. Supported provider types: "anthropic", "openai", "ollama".
// A non-empty apiKeyEnv overrides the conventional environment variable
// the API key is read from.
func NewProvider(providerType, model, apiKeyEnv string) (Provider, error) {
	switch providerType {
	case "anthropic":
		apiKey, err := keyFromEnv(apiKeyEnv, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openai":
		apiKey, err := keyFromEnv(apiKeyEnv, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

func keyFromEnv(override, conventional string) (string, error) {
	envVar := conventional
	if override != "" {
		envVar = override
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return "", fmt.Errorf("%s environment variable is not set", envVar)
	}
	return apiKey, nil
}

// Package llm abstracts the language model providers used to draft support
// replies and classify question sentiment. Providers are interchangeable;
// triage decisions never depend on which one is configured.
package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

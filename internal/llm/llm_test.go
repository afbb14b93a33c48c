package llm

import (
	"context"
	"sync"
	"testing"
	"time"
)

// MockProvider is a test provider that records calls and returns canned
// responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestUserPrompt(t *testing.T) {
	messages := UserPrompt("you are a support bot", "how do I reset my password?")
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != RoleSystem || messages[1].Role != RoleUser {
		t.Errorf("unexpected roles: %s, %s", messages[0].Role, messages[1].Role)
	}

	noSystem := UserPrompt("", "hello")
	if len(noSystem) != 1 || noSystem[0].Role != RoleUser {
		t.Errorf("expected single user message, got %+v", noSystem)
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	for _, p := range []string{"anthropic", "openai"} {
		_, err := NewProvider(p, "some-model", "")
		if err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model", "")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider("ollama", "llama3", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != "http://localhost:11434" {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesAnthropicProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	provider, err := NewProvider("anthropic", "claude-haiku-4-5-20251001", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", provider.Name())
	}
}

func TestFactoryCreatesOpenAIProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	provider, err := NewProvider("openai", "gpt-4o-mini", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", provider.Name())
	}
}

func TestFactoryHonorsKeyEnvOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SUPPORT_OPENAI_KEY", "override-key")

	provider, err := NewProvider("openai", "gpt-4o-mini", "SUPPORT_OPENAI_KEY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", provider.Name())
	}

	// The override names the variable; the conventional one is ignored.
	if _, err := NewProvider("openai", "gpt-4o-mini", "UNSET_KEY_VAR"); err == nil {
		t.Error("expected error when the override variable is unset")
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{
		Messages: UserPrompt("", "hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{Messages: UserPrompt("", "hello")}

	// First two fit in the bucket.
	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, req); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third blocks until the context runs out.
	if _, err := rl.Complete(ctx, req); err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
}

func TestEstimateCostAccuracy(t *testing.T) {
	// gpt-4o-mini: $0.15/1M input, $0.60/1M output.
	cost := EstimateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	expected := 0.75
	if cost < expected-0.001 || cost > expected+0.001 {
		t.Errorf("expected cost ~$%.2f, got $%.4f", expected, cost)
	}
}

func TestEstimateCostEmbeddingModel(t *testing.T) {
	// Embeddings have no output tokens.
	cost := EstimateCost("text-embedding-3-small", 2_000_000, 0)
	expected := 0.04
	if cost < expected-0.001 || cost > expected+0.001 {
		t.Errorf("expected cost ~$%.2f, got $%.4f", expected, cost)
	}
}

func TestEstimateCostUnknownModel(t *testing.T) {
	if cost := EstimateCost("unknown-model", 1000, 500); cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
		{"a longer piece of text that has more characters", 11},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestUsageTracker(t *testing.T) {
	var tracker UsageTracker

	tracker.Record(&CompletionResponse{Model: "gpt-4o-mini", InputTokens: 1000, OutputTokens: 500})
	tracker.Record(nil)
	tracker.Add("text-embedding-3-small", 4000, 0)

	usage := tracker.Snapshot()
	if usage.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", usage.Requests)
	}
	if usage.InputTokens != 5000 || usage.OutputTokens != 500 {
		t.Errorf("unexpected token totals: %+v", usage)
	}
	if usage.CostUSD <= 0 {
		t.Errorf("expected positive cost, got %f", usage.CostUSD)
	}
}

func TestUsageTrackerConcurrent(t *testing.T) {
	var tracker UsageTracker
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.Add("gpt-4o-mini", 10, 5)
			}
		}()
	}
	wg.Wait()

	usage := tracker.Snapshot()
	if usage.Requests != 800 {
		t.Errorf("expected 800 requests, got %d", usage.Requests)
	}
	if usage.InputTokens != 8000 {
		t.Errorf("expected 8000 input tokens, got %d", usage.InputTokens)
	}
}

package llm

import "sync"

// Usage aggregates token consumption and estimated spend.
type Usage struct {
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// UsageTracker accumulates usage across concurrent callers. The zero value
// is ready to use.
type UsageTracker struct {
	mu    sync.Mutex
	usage Usage
}

// Record adds one completion response to the running totals.
func (t *UsageTracker) Record(resp *CompletionResponse) {
	if resp == nil {
		return
	}
	t.Add(resp.Model, resp.InputTokens, resp.OutputTokens)
}

// Add adds raw token counts under the given model's pricing.
func (t *UsageTracker) Add(model string, inputTokens, outputTokens int) {
	cost := EstimateCost(model, inputTokens, outputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Requests++
	t.usage.InputTokens += inputTokens
	t.usage.OutputTokens += outputTokens
	t.usage.CostUSD += cost
}

// Snapshot returns the current totals.
func (t *UsageTracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

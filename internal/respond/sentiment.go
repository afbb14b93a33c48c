package respond

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/triage/internal/llm"
	"github.com/example/triage/internal/triage"
)

// SentimentChecker classifies question tone with a small JSON-mode
// completion. It backs the orchestrator's borderline-score check.
type SentimentChecker struct {
	provider llm.Provider
	model    string
	tracker  *llm.UsageTracker
}

// NewSentimentChecker creates a sentiment checker. The tracker may be nil.
func NewSentimentChecker(provider llm.Provider, model string, tracker *llm.UsageTracker) *SentimentChecker {
	return &SentimentChecker{provider: provider, model: model, tracker: tracker}
}

var _ triage.SentimentChecker = (*SentimentChecker)(nil)

// Check classifies the sentiment and urgency of a question.
func (c *SentimentChecker) Check(ctx context.Context, question string) (triage.Sentiment, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model:       c.model,
		Messages:    llm.UserPrompt(sentimentSystemPrompt, question),
		MaxTokens:   128,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return triage.Sentiment{}, fmt.Errorf("sentiment completion: %w", err)
	}
	if c.tracker != nil {
		c.tracker.Record(resp)
	}

	return parseSentiment(resp.Content)
}

// parseSentiment extracts the classification from a model response. Models
// occasionally wrap the object in prose or code fences, so it parses the
// outermost braces.
func parseSentiment(raw string) (triage.Sentiment, error) {
	jsonStr := raw
	if idx := strings.Index(jsonStr, "{"); idx >= 0 {
		jsonStr = jsonStr[idx:]
	}
	if idx := strings.LastIndex(jsonStr, "}"); idx >= 0 {
		jsonStr = jsonStr[:idx+1]
	}

	var s triage.Sentiment
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		return triage.Sentiment{}, fmt.Errorf("parsing sentiment response: %w", err)
	}

	s.Sentiment = normalize(s.Sentiment, triage.SentimentNeutral,
		triage.SentimentPositive, triage.SentimentNeutral, triage.SentimentNegative)
	s.Urgency = normalize(s.Urgency, triage.UrgencyMedium,
		triage.UrgencyLow, triage.UrgencyMedium, triage.UrgencyHigh)
	return s, nil
}

// normalize lowercases the value and falls back when it is not one of the
// allowed labels.
func normalize(value, fallback string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return a
		}
	}
	return fallback
}

// Package respond drafts customer replies for triaged questions and
// classifies question sentiment. Drafting happens after the routing decision
// and never changes it: a failed draft degrades the reply, not the record.
package respond

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/llm"
	"github.com/example/triage/internal/triage"
)

// Band describes how assertive a drafted reply should be.
type Band string

const (
	// BandDirect answers outright: the evidence matched decisively.
	BandDirect Band = "direct"
	// BandHedged answers with qualification: confidence cleared the
	// threshold without much room to spare.
	BandHedged Band = "hedged"
	// BandHandoff is the escalation acknowledgment; no model is involved.
	BandHandoff Band = "handoff"
)

// DirectMargin is how far above the threshold confidence must sit before a
// reply drops its hedging.
const DirectMargin = 0.15

// bandFor maps a decision's confidence onto a reply band.
func bandFor(confidence, threshold float64) Band {
	switch {
	case confidence < threshold:
		return BandHandoff
	case confidence >= threshold+DirectMargin:
		return BandDirect
	default:
		return BandHedged
	}
}

const handoffTemplate = `Thanks for reaching out. Your question needs a closer look, so I've passed it to one of our support agents. You'll hear back shortly; your reference number is %s.`

// Reply is a drafted answer to a customer question.
type Reply struct {
	QueryID string `json:"query_id"`
	Text    string `json:"text"`
	Band    Band   `json:"band"`
	Model   string `json:"model,omitempty"`
}

// Handoff returns the escalation acknowledgment for a query. Callers use it
// directly when a drafted reply cannot be produced.
func Handoff(queryID string) *Reply {
	return &Reply{
		QueryID: queryID,
		Text:    fmt.Sprintf(handoffTemplate, queryID),
		Band:    BandHandoff,
	}
}

// TicketLookup fetches ticket content for evidence references.
type TicketLookup interface {
	Lookup(ctx context.Context, ids []string) (map[string]index.TicketRecord, error)
}

// Generator drafts replies from decision records and their evidence.
type Generator struct {
	provider    llm.Provider
	tickets     TicketLookup
	model       string
	tracker     *llm.UsageTracker
	maxTokens   int
	temperature float64
}

// NewGenerator creates a reply generator. The tracker may be nil.
func NewGenerator(provider llm.Provider, tickets TicketLookup, model string, tracker *llm.UsageTracker) *Generator {
	return &Generator{
		provider:    provider,
		tickets:     tickets,
		model:       model,
		tracker:     tracker,
		maxTokens:   500,
		temperature: 0.7,
	}
}

// SetSampling overrides the completion size and temperature used for
// drafts. Non-positive values keep the defaults.
func (g *Generator) SetSampling(maxTokens int, temperature float64) {
	if maxTokens > 0 {
		g.maxTokens = maxTokens
	}
	if temperature > 0 {
		g.temperature = temperature
	}
}

// Generate drafts a reply for a decision record. Escalated records get the
// handoff acknowledgment without touching the model.
func (g *Generator) Generate(ctx context.Context, rec triage.DecisionRecord) (*Reply, error) {
	band := bandFor(rec.Confidence, rec.ThresholdUsed)
	if band == BandHandoff {
		return Handoff(rec.QueryID), nil
	}

	tickets, err := g.tickets.Lookup(ctx, rec.Evidence.TicketIDs())
	if err != nil {
		// Draft from similarity alone rather than failing the reply.
		tickets = nil
	}
	contextBlock := index.FormatEvidence(rec.Evidence, tickets)

	resp, err := g.completeWithRetry(ctx, llm.CompletionRequest{
		Model:       g.model,
		Messages:    buildDraftMessages(band, rec.Question, contextBlock),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("drafting reply for %s: %w", rec.QueryID, err)
	}
	if g.tracker != nil {
		g.tracker.Record(resp)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("drafting reply for %s: empty completion", rec.QueryID)
	}

	return &Reply{
		QueryID: rec.QueryID,
		Text:    text,
		Band:    band,
		Model:   resp.Model,
	}, nil
}

// completeWithRetry calls the LLM with exponential backoff on rate limit
// errors. Other failures return immediately.
func (g *Generator) completeWithRetry(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	maxRetries := 3
	backoff := 2 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := g.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		if !isRetryable(err) {
			return nil, err
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}
	return nil, fmt.Errorf("unreachable")
}

func isRetryable(err error) bool {
	s := err.Error()
	return strings.Contains(s, "rate_limit") ||
		strings.Contains(s, "429") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "overloaded")
}

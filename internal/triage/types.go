package triage

import (
	"context"
	"time"

	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/policy"
)

// DecisionRecord captures one triage outcome together with the evidence and
// threshold that produced it. Records are immutable once appended; feedback
// annotates them through outcome labels instead of mutation.
type DecisionRecord struct {
	QueryID       string             `json:"query_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Question      string             `json:"question"`
	Evidence      index.EvidenceSet  `json:"evidence"`
	Confidence    float64            `json:"confidence"`
	Signals       map[string]float64 `json:"signals"`
	Route         policy.Route       `json:"route"`
	ThresholdUsed float64            `json:"threshold_used"`
}

// Label classifies the observed outcome of a past decision.
type Label string

const (
	LabelAccepted              Label = "accepted"
	LabelRejected              Label = "rejected"
	LabelEscalationCorrect     Label = "escalation_correct"
	LabelEscalationUnnecessary Label = "escalation_unnecessary"
)

// Valid reports whether l is one of the known outcome labels.
func (l Label) Valid() bool {
	switch l {
	case LabelAccepted, LabelRejected, LabelEscalationCorrect, LabelEscalationUnnecessary:
		return true
	}
	return false
}

// OutcomeLabel annotates a decision record with observed feedback.
// Labels are append-only; re-labeling a query appends a newer entry.
type OutcomeLabel struct {
	ID         string    `json:"id"`
	QueryID    string    `json:"query_id"`
	Label      Label     `json:"label"`
	Comment    string    `json:"comment,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// DecisionLog receives completed decision records. Appends from concurrent
// requests must not lose or interleave records.
type DecisionLog interface {
	Append(ctx context.Context, rec DecisionRecord) error
}

// Sentiment outcomes reported by a SentimentChecker.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Sentiment is the estimated emotional state and urgency of a question.
type Sentiment struct {
	Sentiment string `json:"sentiment"`
	Urgency   string `json:"urgency"`
}

// SentimentChecker estimates the sentiment and urgency of a question.
type SentimentChecker interface {
	Check(ctx context.Context, question string) (Sentiment, error)
}

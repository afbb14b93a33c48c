package triage

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/triage/internal/confidence"
	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/policy"
)

// DefaultK is the evidence set size requested per question.
const DefaultK = 5

// Signals added by the orchestrator on top of the confidence model's.
const (
	SignalHumanRequest     = "human_request"
	SignalSentimentPenalty = "sentiment_penalty"
)

// Retriever produces ranked evidence for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) (index.EvidenceSet, error)
}

// Config tunes the orchestrator's score adjustments.
type Config struct {
	// K is the evidence set size requested per question.
	K int

	// HumanRequestKeywords force escalation when present in a question.
	HumanRequestKeywords []string

	// SentimentMargin is the band above the threshold in which the
	// sentiment check runs. SentimentPenalty is subtracted from the score
	// when the check finds a negative, high-urgency question.
	SentimentMargin  float64
	SentimentPenalty float64
}

// Orchestrator composes retrieval, scoring, and the escalation policy into
// one request cycle and appends the resulting decision record. Requests are
// independent; the orchestrator holds no per-request state.
type Orchestrator struct {
	retriever Retriever
	model     *confidence.Model
	policy    *policy.Engine
	log       DecisionLog
	sentiment SentimentChecker
	cfg       Config
}

// NewOrchestrator wires the triage pipeline. sentiment may be nil, which
// disables the sentiment check.
func NewOrchestrator(r Retriever, m *confidence.Model, p *policy.Engine, log DecisionLog, sentiment SentimentChecker, cfg Config) *Orchestrator {
	if cfg.K < 1 {
		cfg.K = DefaultK
	}
	if len(cfg.HumanRequestKeywords) == 0 {
		cfg.HumanRequestKeywords = DefaultHumanRequestKeywords
	}
	if cfg.SentimentMargin <= 0 {
		cfg.SentimentMargin = 0.1
	}
	if cfg.SentimentPenalty <= 0 {
		cfg.SentimentPenalty = 0.2
	}

	return &Orchestrator{
		retriever: r,
		model:     m,
		policy:    p,
		log:       log,
		sentiment: sentiment,
		cfg:       cfg,
	}
}

// Triage runs one question through retrieve, score, and decide, then appends
// the decision record. Failures surface as *TriageError and leave no record
// behind; retrying the whole call is always safe.
func (o *Orchestrator) Triage(ctx context.Context, question string) (DecisionRecord, error) {
	set, err := o.retriever.Retrieve(ctx, question, o.cfg.K)
	if err != nil {
		return DecisionRecord{}, &TriageError{Stage: StageRetrieve, Err: err}
	}

	score := o.model.Score(set)
	value := score.Value
	signals := score.Signals

	// Score adjustments feed the same Decide call that sets the route, so
	// route == escalate iff confidence < threshold holds on every record.
	if containsHumanRequest(question, o.cfg.HumanRequestKeywords) {
		value = 0
		signals[SignalHumanRequest] = 1
	} else if o.sentiment != nil {
		value = o.applySentimentPenalty(ctx, question, value, signals)
	}

	decision, err := o.policy.Decide(value)
	if err != nil {
		return DecisionRecord{}, &TriageError{Stage: StageDecide, Err: err}
	}

	rec := DecisionRecord{
		QueryID:       uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Question:      question,
		Evidence:      set,
		Confidence:    value,
		Signals:       signals,
		Route:         decision.Route,
		ThresholdUsed: decision.ThresholdUsed,
	}

	if err := o.log.Append(ctx, rec); err != nil {
		return DecisionRecord{}, &TriageError{Stage: StageAppend, Err: err}
	}

	return rec, nil
}

// applySentimentPenalty lowers scores in the band just above the threshold
// when the question reads negative and urgent, pushing borderline angry
// questions to a human. Checker failures leave the score unchanged.
func (o *Orchestrator) applySentimentPenalty(ctx context.Context, question string, value float64, signals map[string]float64) float64 {
	threshold := o.policy.Current().Threshold
	if value < threshold || value >= threshold+o.cfg.SentimentMargin {
		return value
	}

	s, err := o.sentiment.Check(ctx, question)
	if err != nil {
		log.Printf("triage: sentiment check: %v", err)
		return value
	}
	if s.Sentiment != SentimentNegative || s.Urgency != UrgencyHigh {
		return value
	}

	signals[SignalSentimentPenalty] = o.cfg.SentimentPenalty
	value -= o.cfg.SentimentPenalty
	if value < 0 {
		value = 0
	}
	return value
}

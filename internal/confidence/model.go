package confidence

import (
	"github.com/example/triage/internal/index"
)

// Signal names recorded alongside every score.
const (
	SignalTopSimilarity = "top_similarity"
	SignalGap           = "gap"
	SignalAgreement     = "agreement"
)

// DefaultAgreementFloor is the similarity a neighbor must clear to count
// toward the agreement signal.
const DefaultAgreementFloor = 0.45

// Weights control how much each retrieval signal contributes to the score.
type Weights struct {
	TopSimilarity float64 `json:"top_similarity"`
	Gap           float64 `json:"gap"`
	Agreement     float64 `json:"agreement"`
}

// DefaultWeights favor the strongest match while still rewarding a clear
// gap over the runner-up and consensus among neighbors.
func DefaultWeights() Weights {
	return Weights{TopSimilarity: 0.50, Gap: 0.25, Agreement: 0.25}
}

// Score is a confidence value in [0,1] plus the signals that produced it.
type Score struct {
	Value   float64            `json:"value"`
	Signals map[string]float64 `json:"signals"`
}

// Model combines retrieval signals into a confidence score. Scoring is a
// pure function of the evidence set, so recorded decisions stay reproducible.
type Model struct {
	weights        Weights
	agreementFloor float64
}

// NewModel creates a model with the given weights and agreement floor.
// A floor <= 0 falls back to DefaultAgreementFloor.
func NewModel(weights Weights, agreementFloor float64) *Model {
	if agreementFloor <= 0 {
		agreementFloor = DefaultAgreementFloor
	}
	return &Model{weights: weights, agreementFloor: agreementFloor}
}

// Score computes the confidence for one evidence set.
//
// Three signals keep the score robust to a single noisy neighbor:
// top_similarity (the rank-1 similarity), gap (rank-1 minus rank-2, so a
// lone strong match still scores high while a crowded field of near-ties
// does not), and agreement (the fraction of returned items above the floor,
// rewarding consensus). An empty set scores 0, which forces escalation.
func (m *Model) Score(set index.EvidenceSet) Score {
	signals := map[string]float64{
		SignalTopSimilarity: 0,
		SignalGap:           0,
		SignalAgreement:     0,
	}

	if len(set) == 0 {
		return Score{Value: 0, Signals: signals}
	}

	top := clamp01(set[0].Similarity)
	signals[SignalTopSimilarity] = top

	second := 0.0
	if len(set) > 1 {
		second = clamp01(set[1].Similarity)
	}
	gap := clamp01(top - second)
	signals[SignalGap] = gap

	above := 0
	for _, ev := range set {
		if ev.Similarity > m.agreementFloor {
			above++
		}
	}
	agreement := float64(above) / float64(len(set))
	signals[SignalAgreement] = agreement

	value := m.weights.TopSimilarity*top +
		m.weights.Gap*gap +
		m.weights.Agreement*agreement

	return Score{Value: clamp01(value), Signals: signals}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

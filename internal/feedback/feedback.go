// Package feedback closes the triage loop: agents label past decisions and
// recalibration turns those labels into a new escalation threshold.
package feedback

import (
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

// CalibrationConfig controls how outcome labels move the threshold.
type CalibrationConfig struct {
	// TargetRejectionRate is the acceptable share of auto-responses that
	// agents reject. Above it the threshold rises.
	TargetRejectionRate float64 `json:"target_rejection_rate"`
	// TargetUnnecessaryRate is the acceptable share of escalations agents
	// mark unnecessary. Above it the threshold drops.
	TargetUnnecessaryRate float64 `json:"target_unnecessary_rate"`
	// Gain scales how far a rate overshoot moves the threshold.
	Gain         float64 `json:"gain"`
	MinThreshold float64 `json:"min_threshold"`
	MaxThreshold float64 `json:"max_threshold"`
}

// DefaultCalibrationConfig returns the stock calibration settings.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		TargetRejectionRate:   0.10,
		TargetUnnecessaryRate: 0.25,
		Gain:                  0.5,
		MinThreshold:          0.30,
		MaxThreshold:          0.90,
	}
}

// CalibrationStats records what a recalibration saw and did.
type CalibrationStats struct {
	WindowSize           int     `json:"window_size"`
	LabeledAutoResponses int     `json:"labeled_auto_responses"`
	LabeledEscalations   int     `json:"labeled_escalations"`
	Rejected             int     `json:"rejected"`
	Unnecessary          int     `json:"unnecessary"`
	RejectionRate        float64 `json:"rejection_rate"`
	UnnecessaryRate      float64 `json:"unnecessary_rate"`
	Adjustment           float64 `json:"adjustment"`
	Reason               string  `json:"reason"`
}

// Recalibrate derives the next policy parameters from labeled decisions in
// the calibration window. It is a pure function: the same inputs always
// produce the same parameters. The version is bumped on every call, even when
// the threshold comes out unchanged, so reloads stay ordered.
//
// When both rates overshoot their targets, the rejection correction wins and
// the threshold rises.
func Recalibrate(current policy.Parameters, records []triage.DecisionRecord, labels []triage.OutcomeLabel, cfg CalibrationConfig) (policy.Parameters, CalibrationStats) {
	stats := CalibrationStats{WindowSize: len(records)}

	byQuery := latestLabels(labels)

	for _, rec := range records {
		label, ok := byQuery[rec.QueryID]
		if !ok {
			continue
		}
		switch rec.Route {
		case policy.RouteAutoRespond:
			switch label.Label {
			case triage.LabelAccepted, triage.LabelRejected:
				stats.LabeledAutoResponses++
				if label.Label == triage.LabelRejected {
					stats.Rejected++
				}
			}
		case policy.RouteEscalate:
			switch label.Label {
			case triage.LabelEscalationCorrect, triage.LabelEscalationUnnecessary:
				stats.LabeledEscalations++
				if label.Label == triage.LabelEscalationUnnecessary {
					stats.Unnecessary++
				}
			}
		}
	}

	if stats.LabeledAutoResponses > 0 {
		stats.RejectionRate = float64(stats.Rejected) / float64(stats.LabeledAutoResponses)
	}
	if stats.LabeledEscalations > 0 {
		stats.UnnecessaryRate = float64(stats.Unnecessary) / float64(stats.LabeledEscalations)
	}

	threshold := current.Threshold
	switch {
	case stats.RejectionRate > cfg.TargetRejectionRate:
		stats.Adjustment = cfg.Gain * (stats.RejectionRate - cfg.TargetRejectionRate)
		stats.Reason = "rejection rate above target"
		threshold += stats.Adjustment
	case stats.UnnecessaryRate > cfg.TargetUnnecessaryRate:
		stats.Adjustment = -cfg.Gain * (stats.UnnecessaryRate - cfg.TargetUnnecessaryRate)
		stats.Reason = "unnecessary escalation rate above target"
		threshold += stats.Adjustment
	default:
		stats.Reason = "rates within targets"
	}

	if threshold > cfg.MaxThreshold {
		threshold = cfg.MaxThreshold
	}
	if threshold < cfg.MinThreshold {
		threshold = cfg.MinThreshold
	}

	next := policy.Parameters{
		Threshold:         threshold,
		CalibrationWindow: current.CalibrationWindow,
		Version:           current.Version + 1,
	}
	return next, stats
}

// latestLabels reduces labels to one per query, keeping the most recently
// observed. Agents sometimes relabel after review; the final verdict counts.
func latestLabels(labels []triage.OutcomeLabel) map[string]triage.OutcomeLabel {
	byQuery := make(map[string]triage.OutcomeLabel, len(labels))
	for _, l := range labels {
		prev, ok := byQuery[l.QueryID]
		if !ok || l.ObservedAt.After(prev.ObservedAt) {
			byQuery[l.QueryID] = l
		}
	}
	return byQuery
}

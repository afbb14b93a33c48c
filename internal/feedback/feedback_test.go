package feedback

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

func wantThreshold(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("threshold: got %.6f, want %.6f", got, want)
	}
}

func makeRecords(n int, route policy.Route) []triage.DecisionRecord {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	records := make([]triage.DecisionRecord, n)
	for i := range records {
		records[i] = triage.DecisionRecord{
			QueryID:       fmt.Sprintf("%s-%d", route, i),
			Timestamp:     base.Add(time.Duration(i) * time.Second),
			Route:         route,
			Confidence:    0.5,
			ThresholdUsed: 0.6,
		}
	}
	return records
}

func labelFirst(records []triage.DecisionRecord, n int, label triage.Label) []triage.OutcomeLabel {
	labels := make([]triage.OutcomeLabel, 0, n)
	for i := 0; i < n && i < len(records); i++ {
		labels = append(labels, triage.OutcomeLabel{
			ID:         fmt.Sprintf("label-%s", records[i].QueryID),
			QueryID:    records[i].QueryID,
			Label:      label,
			ObservedAt: records[i].Timestamp.Add(time.Hour),
		})
	}
	return labels
}

func current() policy.Parameters {
	return policy.Parameters{Threshold: 0.6, CalibrationWindow: 200, Version: 1}
}

func TestRecalibrate_RejectionRateRaisesThreshold(t *testing.T) {
	records := makeRecords(100, policy.RouteAutoRespond)
	labels := append(
		labelFirst(records[:30], 30, triage.LabelRejected),
		labelFirst(records[30:], 70, triage.LabelAccepted)...,
	)

	next, stats := Recalibrate(current(), records, labels, DefaultCalibrationConfig())

	if stats.RejectionRate != 0.30 {
		t.Errorf("rejection rate: got %.4f, want 0.30", stats.RejectionRate)
	}
	// 0.6 + 0.5 * (0.30 - 0.10)
	wantThreshold(t, next.Threshold, 0.7)
	if next.Version != 2 {
		t.Errorf("version: got %d, want 2", next.Version)
	}
	if next.CalibrationWindow != 200 {
		t.Errorf("calibration window changed: got %d", next.CalibrationWindow)
	}
}

func TestRecalibrate_UnnecessaryEscalationsLowerThreshold(t *testing.T) {
	records := makeRecords(20, policy.RouteEscalate)
	labels := append(
		labelFirst(records[:10], 10, triage.LabelEscalationUnnecessary),
		labelFirst(records[10:], 10, triage.LabelEscalationCorrect)...,
	)

	next, stats := Recalibrate(current(), records, labels, DefaultCalibrationConfig())

	if stats.UnnecessaryRate != 0.5 {
		t.Errorf("unnecessary rate: got %.4f, want 0.5", stats.UnnecessaryRate)
	}
	// 0.6 - 0.5 * (0.5 - 0.25)
	wantThreshold(t, next.Threshold, 0.475)
}

func TestRecalibrate_RejectionCorrectionWins(t *testing.T) {
	autos := makeRecords(10, policy.RouteAutoRespond)
	escalations := makeRecords(10, policy.RouteEscalate)
	records := append(autos, escalations...)

	labels := labelFirst(autos, 5, triage.LabelRejected)
	labels = append(labels, labelFirst(autos[5:], 5, triage.LabelAccepted)...)
	labels = append(labels, labelFirst(escalations, 10, triage.LabelEscalationUnnecessary)...)

	next, stats := Recalibrate(current(), records, labels, DefaultCalibrationConfig())

	if stats.Reason != "rejection rate above target" {
		t.Errorf("reason: got %q", stats.Reason)
	}
	// Both rates overshoot; only the rejection correction applies.
	wantThreshold(t, next.Threshold, 0.8)
}

func TestRecalibrate_WithinTargetsKeepsThreshold(t *testing.T) {
	records := makeRecords(50, policy.RouteAutoRespond)
	labels := append(
		labelFirst(records[:2], 2, triage.LabelRejected),
		labelFirst(records[2:], 48, triage.LabelAccepted)...,
	)

	next, stats := Recalibrate(current(), records, labels, DefaultCalibrationConfig())

	if stats.RejectionRate != 0.04 {
		t.Errorf("rejection rate: got %.4f, want 0.04", stats.RejectionRate)
	}
	if next.Threshold != 0.6 {
		t.Errorf("threshold moved to %.4f, want unchanged 0.6", next.Threshold)
	}
	if next.Version != 2 {
		t.Errorf("version: got %d, want 2 even without a threshold change", next.Version)
	}
	if stats.Reason != "rates within targets" {
		t.Errorf("reason: got %q", stats.Reason)
	}
}

func TestRecalibrate_ClampsToBounds(t *testing.T) {
	cfg := DefaultCalibrationConfig()

	t.Run("max", func(t *testing.T) {
		records := makeRecords(10, policy.RouteAutoRespond)
		labels := labelFirst(records, 10, triage.LabelRejected)

		p := policy.Parameters{Threshold: 0.85, CalibrationWindow: 200, Version: 3}
		next, _ := Recalibrate(p, records, labels, cfg)
		if next.Threshold != cfg.MaxThreshold {
			t.Errorf("threshold: got %.4f, want clamped to %.2f", next.Threshold, cfg.MaxThreshold)
		}
	})

	t.Run("min", func(t *testing.T) {
		records := makeRecords(10, policy.RouteEscalate)
		labels := labelFirst(records, 10, triage.LabelEscalationUnnecessary)

		p := policy.Parameters{Threshold: 0.35, CalibrationWindow: 200, Version: 3}
		next, _ := Recalibrate(p, records, labels, cfg)
		if next.Threshold != cfg.MinThreshold {
			t.Errorf("threshold: got %.4f, want clamped to %.2f", next.Threshold, cfg.MinThreshold)
		}
	})
}

func TestRecalibrate_LatestLabelWins(t *testing.T) {
	records := makeRecords(1, policy.RouteAutoRespond)
	base := records[0].Timestamp

	labels := []triage.OutcomeLabel{
		{ID: "l2", QueryID: records[0].QueryID, Label: triage.LabelAccepted, ObservedAt: base.Add(2 * time.Hour)},
		{ID: "l1", QueryID: records[0].QueryID, Label: triage.LabelRejected, ObservedAt: base.Add(time.Hour)},
	}

	_, stats := Recalibrate(current(), records, labels, DefaultCalibrationConfig())

	if stats.Rejected != 0 {
		t.Errorf("rejected: got %d, want 0 after relabel to accepted", stats.Rejected)
	}
	if stats.LabeledAutoResponses != 1 {
		t.Errorf("labeled auto responses: got %d, want 1", stats.LabeledAutoResponses)
	}
}

func TestRecalibrate_IgnoresMismatchedLabels(t *testing.T) {
	records := makeRecords(5, policy.RouteAutoRespond)
	// Escalation labels on auto-respond decisions count for neither rate.
	labels := labelFirst(records, 5, triage.LabelEscalationCorrect)

	next, stats := Recalibrate(current(), records, labels, DefaultCalibrationConfig())

	if stats.LabeledAutoResponses != 0 || stats.LabeledEscalations != 0 {
		t.Errorf("labeled counts: got %d/%d, want 0/0", stats.LabeledAutoResponses, stats.LabeledEscalations)
	}
	if next.Threshold != 0.6 {
		t.Errorf("threshold: got %.4f, want unchanged 0.6", next.Threshold)
	}
}

func TestRecalibrate_UnlabeledRecordsIgnored(t *testing.T) {
	records := makeRecords(100, policy.RouteAutoRespond)
	// Only 4 records are labeled; 3 rejections among them is a 75% rate.
	labels := append(
		labelFirst(records[:3], 3, triage.LabelRejected),
		labelFirst(records[3:], 1, triage.LabelAccepted)...,
	)

	_, stats := Recalibrate(current(), records, labels, DefaultCalibrationConfig())

	if stats.LabeledAutoResponses != 4 {
		t.Errorf("labeled auto responses: got %d, want 4", stats.LabeledAutoResponses)
	}
	if stats.RejectionRate != 0.75 {
		t.Errorf("rejection rate: got %.4f, want 0.75", stats.RejectionRate)
	}
}

func TestRecalibrate_EmptyWindow(t *testing.T) {
	next, stats := Recalibrate(current(), nil, nil, DefaultCalibrationConfig())

	if next.Threshold != 0.6 {
		t.Errorf("threshold: got %.4f, want unchanged 0.6", next.Threshold)
	}
	if next.Version != 2 {
		t.Errorf("version: got %d, want 2", next.Version)
	}
	if stats.WindowSize != 0 {
		t.Errorf("window size: got %d, want 0", stats.WindowSize)
	}
}

func TestRecalibrate_Deterministic(t *testing.T) {
	records := makeRecords(40, policy.RouteAutoRespond)
	labels := append(
		labelFirst(records[:10], 10, triage.LabelRejected),
		labelFirst(records[10:], 30, triage.LabelAccepted)...,
	)
	cfg := DefaultCalibrationConfig()

	next1, stats1 := Recalibrate(current(), records, labels, cfg)
	next2, stats2 := Recalibrate(current(), records, labels, cfg)

	if diff := cmp.Diff(next1, next2); diff != "" {
		t.Errorf("parameters differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(stats1, stats2); diff != "" {
		t.Errorf("stats differ between runs (-first +second):\n%s", diff)
	}
}

package notify

import (
	"fmt"
	"time"

	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

// Severity indicates the importance of a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventType categorises what triggered the notification.
type EventType string

const (
	TypeEscalation     EventType = "escalation"
	TypeRecalibration  EventType = "recalibration"
	TypeIngestComplete EventType = "ingest_complete"
)

// Notification is a single event record. Delivered tracks whether every
// configured channel has accepted it.
type Notification struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	QueryID   string    `json:"query_id,omitempty"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}

// EscalationEvent builds the notification for a query routed to a human.
func EscalationEvent(rec triage.DecisionRecord) Notification {
	return Notification{
		Type:     TypeEscalation,
		Severity: SeverityWarning,
		Title:    fmt.Sprintf("Query %s escalated", rec.QueryID),
		Message: fmt.Sprintf("confidence %.3f below threshold %.2f: %s",
			rec.Confidence, rec.ThresholdUsed, rec.Question),
		QueryID: rec.QueryID,
	}
}

// RecalibrationEvent builds the notification for a policy version change.
func RecalibrationEvent(previous, next policy.Parameters, reason string) Notification {
	sev := SeverityInfo
	if next.Threshold != previous.Threshold {
		sev = SeverityWarning
	}
	return Notification{
		Type:     TypeRecalibration,
		Severity: sev,
		Title:    fmt.Sprintf("Policy recalibrated to v%d", next.Version),
		Message: fmt.Sprintf("threshold %.3f -> %.3f (%s)",
			previous.Threshold, next.Threshold, reason),
	}
}

// IngestEvent builds the notification for a completed ingestion run.
func IngestEvent(indexed, replaced, skipped int) Notification {
	sev := SeverityInfo
	if skipped > 0 {
		sev = SeverityWarning
	}
	return Notification{
		Type:     TypeIngestComplete,
		Severity: sev,
		Title:    "Ticket ingestion complete",
		Message:  fmt.Sprintf("%d indexed, %d replaced, %d skipped", indexed, replaced, skipped),
	}
}

// severityRank orders severities for threshold filtering.
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

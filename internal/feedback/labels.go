package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/triage"
)

// LabelStore provides persistence for outcome labels.
type LabelStore struct {
	db *db.DB
}

// NewLabelStore creates a new outcome label store.
func NewLabelStore(database *db.DB) *LabelStore {
	return &LabelStore{db: database}
}

// Append records an outcome label. If ID is empty, a new UUID is generated;
// if ObservedAt is zero, the current time is used. Labels are never updated
// in place: relabeling a query appends a newer row.
func (s *LabelStore) Append(ctx context.Context, label triage.OutcomeLabel) (triage.OutcomeLabel, error) {
	if label.QueryID == "" {
		return triage.OutcomeLabel{}, fmt.Errorf("outcome label has no query id")
	}
	if !label.Label.Valid() {
		return triage.OutcomeLabel{}, fmt.Errorf("unknown outcome label %q", label.Label)
	}
	if label.ID == "" {
		label.ID = uuid.NewString()
	}
	if label.ObservedAt.IsZero() {
		label.ObservedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcome_labels (id, query_id, label, comment, observed_at)
		VALUES (?, ?, ?, ?, ?)`,
		label.ID,
		label.QueryID,
		string(label.Label),
		label.Comment,
		label.ObservedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return triage.OutcomeLabel{}, fmt.Errorf("inserting outcome label: %w", err)
	}
	return label, nil
}

// ForQueryIDs returns all labels attached to the given queries, oldest first.
func (s *LabelStore) ForQueryIDs(ctx context.Context, queryIDs []string) ([]triage.OutcomeLabel, error) {
	if len(queryIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(queryIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(queryIDs))
	for i, id := range queryIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_id, label, comment, observed_at
		FROM outcome_labels
		WHERE query_id IN (`+placeholders+`)
		ORDER BY observed_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLabels(rows)
}

// List returns labels observed at or after since, oldest first. A zero since
// returns everything.
func (s *LabelStore) List(ctx context.Context, since time.Time) ([]triage.OutcomeLabel, error) {
	query := `SELECT id, query_id, label, comment, observed_at FROM outcome_labels`
	var args []interface{}
	if !since.IsZero() {
		query += ` WHERE observed_at >= ?`
		args = append(args, since.UTC().Format(time.DateTime))
	}
	query += ` ORDER BY observed_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLabels(rows)
}

// Recent returns the newest n labels.
func (s *LabelStore) Recent(ctx context.Context, n int) ([]triage.OutcomeLabel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_id, label, comment, observed_at
		FROM outcome_labels
		ORDER BY observed_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLabels(rows)
}

// SummaryStats describes the labeled feedback so far. AcceptanceRate is the
// share of labeled auto-responses that were accepted, the complement of the
// rejection rate recalibration steers on.
type SummaryStats struct {
	Total          int                   `json:"total"`
	Counts         map[triage.Label]int  `json:"counts"`
	AcceptanceRate float64               `json:"acceptance_rate"`
	Recent         []triage.OutcomeLabel `json:"recent"`
}

// Stats aggregates label counts, the acceptance rate, and the five most
// recent labels.
func (s *LabelStore) Stats(ctx context.Context) (*SummaryStats, error) {
	counts, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.Recent(ctx, 5)
	if err != nil {
		return nil, err
	}

	stats := &SummaryStats{Counts: counts, Recent: recent}
	for _, n := range counts {
		stats.Total += n
	}
	if labeled := counts[triage.LabelAccepted] + counts[triage.LabelRejected]; labeled > 0 {
		stats.AcceptanceRate = float64(counts[triage.LabelAccepted]) / float64(labeled)
	}
	return stats, nil
}

// Summary returns label counts by kind.
func (s *LabelStore) Summary(ctx context.Context) (map[triage.Label]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*) FROM outcome_labels GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[triage.Label]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		counts[triage.Label(label)] = count
	}
	return counts, rows.Err()
}

func collectLabels(rows *sql.Rows) ([]triage.OutcomeLabel, error) {
	var labels []triage.OutcomeLabel
	for rows.Next() {
		var l triage.OutcomeLabel
		var label, observedAt string
		if err := rows.Scan(&l.ID, &l.QueryID, &label, &l.Comment, &observedAt); err != nil {
			return nil, err
		}
		l.Label = triage.Label(label)
		if t, err := time.Parse(time.DateTime, observedAt); err == nil {
			l.ObservedAt = t.UTC()
		} else if t, err := time.Parse("2006-01-02T15:04:05Z", observedAt); err == nil {
			l.ObservedAt = t.UTC()
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Package decisionlog persists triage decision records. Records are
// append-only: once written they are never updated, so the log doubles as
// the audit trail for recalibration and reporting.
package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

// Store provides persistence for decision records.
type Store struct {
	db *db.DB
}

// NewStore creates a new decision record store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

var _ triage.DecisionLog = (*Store)(nil)

// Append writes a decision record. The query ID must be unique; appending
// twice under the same ID fails rather than overwriting.
func (s *Store) Append(ctx context.Context, rec triage.DecisionRecord) error {
	if rec.QueryID == "" {
		return fmt.Errorf("decision record has no query id")
	}

	evidence, err := json.Marshal(rec.Evidence)
	if err != nil {
		return fmt.Errorf("encoding evidence: %w", err)
	}
	signals, err := json.Marshal(rec.Signals)
	if err != nil {
		return fmt.Errorf("encoding signals: %w", err)
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_records (query_id, created_at, question, evidence, confidence, signals, route, threshold_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.QueryID,
		ts.UTC().Format(time.DateTime),
		rec.Question,
		string(evidence),
		rec.Confidence,
		string(signals),
		string(rec.Route),
		rec.ThresholdUsed,
	)
	if err != nil {
		return fmt.Errorf("inserting decision record: %w", err)
	}
	return nil
}

// Get retrieves a single decision record. Returns nil if no record exists
// under the given query ID.
func (s *Store) Get(ctx context.Context, queryID string) (*triage.DecisionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT query_id, created_at, question, evidence, confidence, signals, route, threshold_used
		FROM decision_records
		WHERE query_id = ?`,
		queryID,
	)
	return scanRecord(row)
}

// ListFilter narrows List results.
type ListFilter struct {
	Route  policy.Route
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// List returns decision records matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]triage.DecisionRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Route != "" {
		conditions = append(conditions, "route = ?")
		args = append(args, string(filter.Route))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, filter.Until.UTC().Format(time.DateTime))
	}

	query := "SELECT query_id, created_at, question, evidence, confidence, signals, route, threshold_used FROM decision_records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, query_id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []triage.DecisionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

// Recent returns the latest n decision records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]triage.DecisionRecord, error) {
	return s.List(ctx, ListFilter{Limit: n})
}

// Stats summarizes the decision log.
type Stats struct {
	Total   int                  `json:"total"`
	ByRoute map[policy.Route]int `json:"by_route"`
}

// Stats returns aggregate counts over all decision records.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByRoute: make(map[policy.Route]int)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT route, COUNT(*) FROM decision_records GROUP BY route`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var route string
		var count int
		if err := rows.Scan(&route, &count); err != nil {
			return nil, err
		}
		stats.ByRoute[policy.Route(route)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*triage.DecisionRecord, error) {
	var rec triage.DecisionRecord
	var createdAt, evidence, signals, route string

	err := s.Scan(&rec.QueryID, &createdAt, &rec.Question, &evidence,
		&rec.Confidence, &signals, &route, &rec.ThresholdUsed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rec.Route = policy.Route(route)

	if t, err := time.Parse(time.DateTime, createdAt); err == nil {
		rec.Timestamp = t.UTC()
	} else if t, err := time.Parse("2006-01-02T15:04:05Z", createdAt); err == nil {
		rec.Timestamp = t.UTC()
	}
	if err := json.Unmarshal([]byte(evidence), &rec.Evidence); err != nil {
		return nil, fmt.Errorf("decoding evidence for %s: %w", rec.QueryID, err)
	}
	if err := json.Unmarshal([]byte(signals), &rec.Signals); err != nil {
		return nil, fmt.Errorf("decoding signals for %s: %w", rec.QueryID, err)
	}
	if rec.Evidence == nil {
		rec.Evidence = index.NewEvidenceSet(nil)
	}

	return &rec, nil
}

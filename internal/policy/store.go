package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/triage/internal/db"
)

// Store persists the policy version history.
type Store struct {
	db *db.DB
}

// NewStore creates a policy store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// VersionRecord is one row of policy history.
type VersionRecord struct {
	Parameters
	Stats     json.RawMessage `json:"stats,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Save appends a new policy version. Versions are unique; saving an already
// recorded version fails.
func (s *Store) Save(ctx context.Context, p Parameters, stats json.RawMessage) error {
	if len(stats) == 0 {
		stats = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policy_versions (version, threshold, calibration_window, stats, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.Version, p.Threshold, p.CalibrationWindow, string(stats), time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving policy version %d: %w", p.Version, err)
	}
	return nil
}

// Latest returns the highest recorded version. ok is false when no version
// has been saved yet.
func (s *Store) Latest(ctx context.Context) (Parameters, bool, error) {
	var p Parameters
	err := s.db.QueryRowContext(ctx,
		`SELECT version, threshold, calibration_window FROM policy_versions
		 ORDER BY version DESC LIMIT 1`,
	).Scan(&p.Version, &p.Threshold, &p.CalibrationWindow)
	if err == sql.ErrNoRows {
		return Parameters{}, false, nil
	}
	if err != nil {
		return Parameters{}, false, fmt.Errorf("loading latest policy version: %w", err)
	}
	return p, true, nil
}

// History returns recorded versions, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]VersionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, threshold, calibration_window, stats, created_at
		 FROM policy_versions ORDER BY version DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing policy versions: %w", err)
	}
	defer rows.Close()

	var records []VersionRecord
	for rows.Next() {
		var rec VersionRecord
		var stats, createdAt string
		if err := rows.Scan(&rec.Version, &rec.Threshold, &rec.CalibrationWindow, &stats, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning policy version: %w", err)
		}
		rec.Stats = json.RawMessage(stats)
		if t, err := time.Parse(time.DateTime, createdAt); err == nil {
			rec.CreatedAt = t.UTC()
		} else if t, err := time.Parse("2006-01-02T15:04:05Z", createdAt); err == nil {
			rec.CreatedAt = t.UTC()
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Package agentqueue holds escalated queries until a human agent picks them
// up. Items move pending -> claimed -> resolved; resolving one is what earns
// the decision its outcome label.
package agentqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/triage"
)

// Store manages persistence of the escalation queue.
type Store struct {
	db *db.DB
}

// NewStore creates a new queue store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Enqueue adds an escalated decision to the queue. Each query can be
// enqueued once; a second attempt fails on the unique query id.
func (s *Store) Enqueue(ctx context.Context, rec triage.DecisionRecord) (*Item, error) {
	now := time.Now().UTC()
	item := Item{
		ID:         uuid.New().String(),
		QueryID:    rec.QueryID,
		Question:   rec.Question,
		Confidence: rec.Confidence,
		Status:     StatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escalation_queue (id, query_id, question, confidence, status, agent, resolution, enqueued_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', '', ?, ?)`,
		item.ID, item.QueryID, item.Question, item.Confidence, item.Status, item.EnqueuedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueueing query %s: %w", rec.QueryID, err)
	}
	return &item, nil
}

// GetByID retrieves a queue item by its ID.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query_id, question, confidence, status, agent, resolution, enqueued_at, updated_at
		 FROM escalation_queue WHERE id = ?`, id,
	).Scan(&item.ID, &item.QueryID, &item.Question, &item.Confidence, &item.Status,
		&item.Agent, &item.Resolution, &item.EnqueuedAt, &item.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting queue item: %w", err)
	}
	return &item, nil
}

// List returns queue items matching the filter, oldest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	query := `SELECT id, query_id, question, confidence, status, agent, resolution, enqueued_at, updated_at
		 FROM escalation_queue WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Agent != "" {
		query += " AND agent = ?"
		args = append(args, filter.Agent)
	}

	query += " ORDER BY enqueued_at ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing queue items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.QueryID, &item.Question, &item.Confidence, &item.Status,
			&item.Agent, &item.Resolution, &item.EnqueuedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Claim assigns a pending item to an agent. Claiming anything but a pending
// item fails, so two agents cannot grab the same query.
func (s *Store) Claim(ctx context.Context, id, agent string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE escalation_queue SET status = ?, agent = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		StatusClaimed, agent, time.Now().UTC(), id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("claiming queue item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("queue item %s not found or not pending", id)
	}
	return nil
}

// Resolve closes an item with the agent's resolution text. Pending items may
// be resolved directly without a claim; resolved items stay resolved.
func (s *Store) Resolve(ctx context.Context, id, agent, resolution string) (*Item, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE escalation_queue SET status = ?, agent = ?, resolution = ?, updated_at = ?
		 WHERE id = ? AND status != ?`,
		StatusResolved, agent, resolution, time.Now().UTC(), id, StatusResolved,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving queue item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("queue item %s not found or already resolved", id)
	}
	return s.GetByID(ctx, id)
}

// PendingCount returns the number of items waiting for an agent.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM escalation_queue WHERE status = ?`, StatusPending,
	).Scan(&count)
	return count, err
}

// Stats returns queue counts and the oldest waiting item.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM escalation_queue GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusClaimed:
			stats.Claimed = count
		case StatusResolved:
			stats.Resolved = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var oldest time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT enqueued_at FROM escalation_queue WHERE status = ?
		 ORDER BY enqueued_at ASC LIMIT 1`, StatusPending,
	).Scan(&oldest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err == nil {
		t := oldest.UTC()
		stats.OldestPending = &t
	}

	return stats, nil
}

package notify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/triage/internal/db"
)

// ListFilter controls which notifications are returned by List.
type ListFilter struct {
	Type      EventType
	Severity  Severity
	Delivered *bool
	Since     time.Time
	Limit     int
	Offset    int
}

// Store persists notifications.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a notification, generating an id and timestamp when unset,
// and returns the stored record.
func (s *Store) Create(ctx context.Context, n Notification) (*Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Severity == "" {
		n.Severity = SeverityInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	delivered := 0
	if n.Delivered {
		delivered = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, type, severity, title, message, query_id, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), string(n.Severity), n.Title, n.Message,
		n.QueryID, delivered, n.CreatedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}
	return &n, nil
}

// GetByID retrieves a single notification, or nil when unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, severity, title, message, query_id, delivered, created_at
		FROM notifications WHERE id = ?`, id)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification: %w", err)
	}
	return n, nil
}

// List returns notifications matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Notification, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Delivered != nil {
		v := 0
		if *filter.Delivered {
			v = 1
		}
		clauses = append(clauses, "delivered = ?")
		args = append(args, v)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}

	query := "SELECT id, type, severity, title, message, query_id, delivered, created_at FROM notifications"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// Pending returns undelivered notifications, oldest first so retries
// preserve event order.
func (s *Store) Pending(ctx context.Context) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, title, message, query_id, delivered, created_at
		FROM notifications WHERE delivered = 0
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying pending notifications: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// MarkDelivered sets delivered=1 for the given notification.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET delivered = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification delivered: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notification %s not found", id)
	}
	return nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(sc scanner) (*Notification, error) {
	var (
		n               Notification
		ntype, severity string
		queryID         sql.NullString
		delivered       int
		ts              string
	)

	err := sc.Scan(&n.ID, &ntype, &severity, &n.Title, &n.Message, &queryID, &delivered, &ts)
	if err != nil {
		return nil, err
	}

	n.Type = EventType(ntype)
	n.Severity = Severity(severity)
	n.QueryID = queryID.String
	n.Delivered = delivered != 0

	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		n.CreatedAt = t.UTC()
	} else if t, parseErr := time.Parse("2006-01-02T15:04:05Z", ts); parseErr == nil {
		n.CreatedAt = t.UTC()
	}
	return &n, nil
}

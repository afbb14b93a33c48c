package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB holding triage state: decisions, labels, policy history,
// the escalation queue, and notifications.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS decision_records (
    query_id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    question TEXT NOT NULL DEFAULT '',
    evidence TEXT NOT NULL DEFAULT '[]',
    confidence REAL NOT NULL,
    signals TEXT NOT NULL DEFAULT '{}',
    route TEXT NOT NULL CHECK(route IN ('auto_respond','escalate')),
    threshold_used REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_created ON decision_records(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_route ON decision_records(route);

CREATE TABLE IF NOT EXISTS outcome_labels (
    id TEXT PRIMARY KEY,
    query_id TEXT NOT NULL,
    label TEXT NOT NULL CHECK(label IN ('accepted','rejected','escalation_correct','escalation_unnecessary')),
    comment TEXT NOT NULL DEFAULT '',
    observed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_labels_query ON outcome_labels(query_id);
CREATE INDEX IF NOT EXISTS idx_labels_observed ON outcome_labels(observed_at);

CREATE TABLE IF NOT EXISTS policy_versions (
    version INTEGER PRIMARY KEY,
    threshold REAL NOT NULL,
    calibration_window INTEGER NOT NULL,
    stats TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS escalation_queue (
    id TEXT PRIMARY KEY,
    query_id TEXT NOT NULL UNIQUE,
    question TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','claimed','resolved')),
    agent TEXT NOT NULL DEFAULT '',
    resolution TEXT NOT NULL DEFAULT '',
    enqueued_at DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_queue_status ON escalation_queue(status);
CREATE INDEX IF NOT EXISTS idx_queue_enqueued ON escalation_queue(enqueued_at);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    severity TEXT NOT NULL DEFAULT 'info' CHECK(severity IN ('info','warning','critical')),
    title TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    query_id TEXT,
    delivered INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
`

// Package audit keeps a local record of rule lifecycle actions in sqlite.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded per rule.
const (
	ActionScheduledCreate = "scheduled_create"
	ActionCreated         = "created"
	ActionScheduledDelete = "scheduled_delete"
	ActionDeleted         = "deleted"
	ActionRejected        = "rejected"
	ActionFailed          = "failed"
)

// Entry is one recorded rule action.
type Entry struct {
	ID        int64
	RuleName  string
	Assignee  string
	IP        string
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Store is a sqlite-backed action log. A nil *Store is valid and records
// nothing, so auditing stays optional.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the audit database at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	_, err = conn.Exec(`
        CREATE TABLE IF NOT EXISTS rule_actions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            rule_name TEXT NOT NULL,
            assignee TEXT NOT NULL,
            ip TEXT NOT NULL,
            action TEXT NOT NULL,
            detail TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )
    `)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Record appends an action to the log. The entry timestamp is set here if
// the caller left it zero.
func (s *Store) Record(e Entry) error {
	if s == nil {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(`
        INSERT INTO rule_actions (rule_name, assignee, ip, action, detail, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, e.RuleName, e.Assignee, e.IP, e.Action, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(`
        SELECT id, rule_name, assignee, ip, action, detail, created_at
        FROM rule_actions
        ORDER BY id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RuleName, &e.Assignee, &e.IP, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.conn.Close()
}

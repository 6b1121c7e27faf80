// Package history keeps a client-side SQLite journal of every notification
// the bridge delivered, so a front-end can answer "what fired while I was
// away from the screen".
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nselway/toolbridge/internal/rpc"
)

// Log is an append-only notification journal.
type Log struct {
	db *sql.DB
}

// Entry is one journaled notification.
type Entry struct {
	ReceivedAt time.Time
	Method     string
	Status     string
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		received_at TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		params TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_received ON notifications(received_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Append records one notification.
func (l *Log) Append(n rpc.Notification) error {
	params := ""
	if n.Params != nil {
		if data, err := json.Marshal(n.Params); err == nil {
			params = string(data)
		}
	}
	_, err := l.db.Exec(
		`INSERT INTO notifications (received_at, method, status, params) VALUES (?, ?, ?, ?)`,
		n.Time.UTC().Format(time.RFC3339Nano), n.Method, n.Status(), params,
	)
	return err
}

// Recent returns the newest entries, most recent first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		`SELECT received_at, method, status FROM notifications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var received string
		if err := rows.Scan(&received, &e.Method, &e.Status); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, received); err == nil {
			e.ReceivedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal.
func (l *Log) Close() error {
	return l.db.Close()
}

// Package audit persists a record of privileged admin actions (currently
// just kicks) to an embedded SQLite database. Grounded on the teacher's
// store/store.go: the same migration-by-ordered-slice pattern, the same
// schema_migrations bookkeeping table, and the same audit_log shape —
// trimmed to the one action this chat protocol has (kick) and given its own
// record IDs via uuid instead of an autoincrement key, since the log is
// meant to be mergeable across server restarts pointed at fresh databases.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// migrations holds the ordered list of DDL statements that bring the schema
// up to date. Index i corresponds to version i+1. Never edit or reorder
// existing entries — append new ones.
var migrations = []string{
	// v1 — kick audit trail
	`CREATE TABLE IF NOT EXISTS kick_log (
		id         TEXT PRIMARY KEY,
		actor_name TEXT NOT NULL,
		target     TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v2 — index for recency queries
	`CREATE INDEX IF NOT EXISTS idx_kick_log_created ON kick_log(created_at)`,
}

// Log wraps the SQLite-backed audit trail of kick actions.
type Log struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and applies any pending
// migrations. Use ":memory:" for ephemeral in-process storage (tests).
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		log.Printf("[audit] WAL mode: %v (non-fatal)", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[audit] busy_timeout: %v (non-fatal)", err)
	}

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := l.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := l.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[audit] applied migration v%d", v)
	}
	return nil
}

// LogKick records that actorName kicked targetName. Implements
// router.AuditLogger. Failures are logged, not propagated — a broken audit
// trail must never block the kick it was asked to record.
func (l *Log) LogKick(actorName, targetName string) {
	_, err := l.db.Exec(
		`INSERT INTO kick_log(id, actor_name, target) VALUES(?, ?, ?)`,
		uuid.NewString(), actorName, targetName,
	)
	if err != nil {
		log.Printf("[audit] record kick %s->%s: %v", actorName, targetName, err)
	}
}

// Entry is one row of the kick audit trail.
type Entry struct {
	ID        string
	ActorName string
	Target    string
	CreatedAt time.Time
}

// Recent returns up to limit kick entries, most recent first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.Query(
		`SELECT id, actor_name, target, created_at FROM kick_log ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.ActorName, &e.Target, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

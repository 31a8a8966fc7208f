package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the reservation engine.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return &DB{DB: conn, logger: logger}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func createTables(conn *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS slot_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			valid_from TEXT NOT NULL DEFAULT '',
			valid_to TEXT NOT NULL DEFAULT '',
			applies_days TEXT NOT NULL,
			generate_between TEXT,
			blocked_windows TEXT NOT NULL DEFAULT '[]',
			priority INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'active',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS slot_exceptions (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			allowed_start_times TEXT,
			blocked_windows TEXT,
			state TEXT NOT NULL DEFAULT 'active',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// Raw upstream event documents; event_days indexes them by calendar date.
		`CREATE TABLE IF NOT EXISTS event_documents (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS event_days (
			event_id TEXT NOT NULL,
			date TEXT NOT NULL,
			PRIMARY KEY (event_id, date),
			FOREIGN KEY (event_id) REFERENCES event_documents(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			end_time TEXT NOT NULL,
			event_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			party_size INTEGER NOT NULL,
			archived BOOLEAN NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS waitlist_entries (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			party_size INTEGER NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'OPEN',
			offer_expires_at INTEGER,
			offered_reservation_id TEXT NOT NULL DEFAULT '',
			offered_time TEXT NOT NULL DEFAULT '',
			closed_reason TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_slot_rules_state ON slot_rules(state)`,
		`CREATE INDEX IF NOT EXISTS idx_slot_exceptions_date ON slot_exceptions(date, state)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_slot_exceptions_active_date ON slot_exceptions(date) WHERE state = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_event_days_date ON event_days(date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_waitlist_date_status ON waitlist_entries(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_waitlist_offer_expiry ON waitlist_entries(status, offer_expires_at)`,
	}

	for _, q := range queries {
		if _, err := conn.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Timestamps are stored as unix milliseconds so range comparisons in SQL
// stay numeric.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

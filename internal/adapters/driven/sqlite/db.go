package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// DB wraps a sql.DB handle to a local SQLite cache file.
type DB struct {
	*sql.DB
}

// Config holds database connection configuration
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral
	// in-process database.
	Path string

	// BusyTimeout is how long a writer waits on a locked database before
	// giving up.
	BusyTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
	}
}

// Connect opens the database and applies the pragmas the cache relies on.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(ON)")

	db, err := sql.Open("sqlite", cfg.Path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time. A single connection avoids
	// SQLITE_BUSY churn between the API and worker goroutines, and keeps
	// ":memory:" databases from silently forking per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// InitSchema runs the schema initialization
// This is idempotent - safe to run multiple times
func (db *DB) InitSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// ns converts a wall-clock time to the unix-nanosecond representation the
// schema stores.
func ns(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// fromNs converts a stored unix-nanosecond value back to a UTC time.
func fromNs(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

// nullNs converts an optional time for a nullable column.
func nullNs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ns(*t)
}

// Package sqlite persists the acquisition ledger and the estimate cache in a
// single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// timestampLayout is fixed-width so lexical order matches time order
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the SQL database connection with ledger-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New opens (creating if necessary) the database at path and initializes the schema.
func New(ctx context.Context, path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection serializes
	// concurrent upserts instead of failing them with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// connectionPragmas are applied by the driver to every connection it opens.
// busy_timeout also covers other processes, e.g. an import while serving.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"temp_store(MEMORY)",
}

func dsn(path string) string {
	params := url.Values{}
	for _, pragma := range connectionPragmas {
		params.Add("_pragma", pragma)
	}
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

func (db *DB) createSchema(ctx context.Context) error {
	if err := db.createAcquisitionsTable(ctx); err != nil {
		return err
	}
	return db.createEstimatesTable(ctx)
}

func (db *DB) createAcquisitionsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS acquisitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		consumer_id TEXT NOT NULL CHECK (consumer_id <> ''),
		item_id TEXT NOT NULL CHECK (item_id <> ''),
		quantity TEXT NOT NULL CHECK (CAST(quantity AS REAL) > 0),
		purchased_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_acquisitions_pair ON acquisitions(consumer_id, item_id, purchased_at);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create acquisitions table: %w", err)
	}
	return nil
}

func (db *DB) createEstimatesTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS estimates (
		consumer_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		status TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		profile TEXT NOT NULL,
		estimate TEXT NOT NULL,
		PRIMARY KEY (consumer_id, item_id)
	);
	CREATE INDEX IF NOT EXISTS idx_estimates_status ON estimates(status);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create estimates table: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and modernc.org/sqlite. SQLite has no bulk-load API like
// Postgres COPY, so rows go in as multi-row INSERTs inside one transaction.
package sqlite

import (
	"context"

	_ "modernc.org/sqlite"

	"gpetl/internal/storage/sqlsink"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:olap.db?cache=shared"
	//   "olap.db"
	DSN string

	// BatchSize bounds the rows per INSERT statement.
	BatchSize int
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	*sqlsink.Writer
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := sqlsink.Open(ctx, "sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	// Enable foreign keys by default; ignore error if driver doesn't support it.
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	w := sqlsink.New(db, sqlsink.SQLite, cfg.BatchSize)
	return &Repository{Writer: w, cfg: cfg}, w.Close, nil
}

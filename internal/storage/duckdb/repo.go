// Package duckdb implements an embedded analytical storage.Repository on
// DuckDB. The OLAP star schema fits DuckDB's columnar engine, and a DuckDB
// file is a convenient single-file target for the report pipeline.
package duckdb

import (
	"context"

	_ "github.com/duckdb/duckdb-go/v2"

	"gpetl/internal/storage"
	"gpetl/internal/storage/sqlsink"
)

// Config holds DuckDB repository configuration. An empty DSN opens an
// in-memory database that lives as long as the repository.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is a DuckDB-backed storage.Repository.
type Repository struct {
	*sqlsink.Writer
}

// NewRepository opens the database file named by cfg.DSN.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sqlsink.Open(ctx, "duckdb", dsn)
	if err != nil {
		return nil, nil, err
	}
	w := sqlsink.New(db, sqlsink.DuckDB, cfg.BatchSize)
	return &Repository{Writer: w}, w.Close, nil
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("duckdb", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, BatchSize: cfg.BatchSize})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

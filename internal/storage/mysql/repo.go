// Package mysql implements a MySQL-backed storage.Repository on top of
// go-sql-driver/mysql. Upserts use INSERT ... ON DUPLICATE KEY UPDATE, which
// needs the table's primary key; tables created by an upsert carry one.
//
// MySQL commits DDL implicitly, so a replace is atomic only from the
// CREATE TABLE onwards.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"gpetl/internal/storage/sqlsink"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqlsink.Writer
	cfg Config
}

// NewRepository validates the DSN, opens a pool and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sqlsink.Open(ctx, "mysql", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	w := sqlsink.New(db, sqlsink.MySQL, cfg.BatchSize)
	return &Repository{Writer: w, cfg: cfg}, w.Close, nil
}

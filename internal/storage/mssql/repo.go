// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API for replace and append loads. Upserts delete the
// incoming keys and re-insert them inside the same transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"gpetl/internal/storage/sqlsink"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	*sqlsink.Writer
	cfg Config
}

// Dialect is sqlsink.MSSQL with the bulk copy hook attached.
var Dialect = func() sqlsink.Dialect {
	d := sqlsink.MSSQL
	d.Bulk = copyIn
	return d
}()

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sqlsink.Open(ctx, "sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	w := sqlsink.New(db, Dialect, cfg.BatchSize)
	return &Repository{Writer: w, cfg: cfg}, w.Close, nil
}

// copyIn bulk-copies rows into table inside tx.
func copyIn(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(sqlsink.MSSQL.FQN(table), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

package source

import (
	"context"
	"database/sql"
	"fmt"
	"maps"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"gpetl/internal/logging"
	"gpetl/internal/records"
	"gpetl/internal/storage/sqlsink"
)

// SQLReader is a Reader over database/sql.
type SQLReader struct {
	db      *sql.DB
	kind    string
	queries map[string]string
}

var _ Reader = (*SQLReader)(nil)

// Open connects to the configured store and checks it is reachable.
func Open(ctx context.Context, cfg Config) (*SQLReader, error) {
	driver, err := DriverName(cfg.Kind)
	if err != nil {
		return nil, err
	}
	db, err := sqlsink.Open(ctx, driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return NewSQLReader(db, cfg.Kind, cfg.Queries), nil
}

// NewSQLReader wraps an open pool. Entries in overrides replace the built-in
// query of the same name.
func NewSQLReader(db *sql.DB, kind string, overrides map[string]string) *SQLReader {
	d, ok := sqlsink.ForKind(kind)
	if !ok {
		d = sqlsink.SQLite
	}
	q := DefaultQueries(d)
	maps.Copy(q, overrides)
	return &SQLReader{db: db, kind: kind, queries: q}
}

// Close closes the pool.
func (r *SQLReader) Close() error { return r.db.Close() }

// SQL returns the statement registered under name.
func (r *SQLReader) SQL(name string) (string, bool) {
	q, ok := r.queries[name]
	return q, ok
}

// Query implements Reader.
func (r *SQLReader) Query(ctx context.Context, name string) records.Seq {
	return func(yield func(records.Record, error) bool) {
		stmt, ok := r.queries[name]
		if !ok {
			yield(nil, fmt.Errorf("%w: %q", ErrUnknownQuery, name))
			return
		}
		log := logging.Component(ctx, "source")
		log.Debug().Str("query", name).Str("kind", r.kind).Msg("executing")

		rows, err := r.db.QueryContext(ctx, stmt)
		if err != nil {
			yield(nil, fmt.Errorf("query %s: %w", name, err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(nil, fmt.Errorf("query %s: columns: %w", name, err))
			return
		}

		var n int
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(nil, fmt.Errorf("query %s: scan row %d: %w", name, n, err))
				return
			}
			rec := make(records.Record, len(cols))
			for i, c := range cols {
				rec[c] = vals[i]
			}
			n++
			if !yield(records.Normalize(rec), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("query %s: %w", name, err))
			return
		}
		log.Debug().Str("query", name).Int("rows", n).Msg("read")
	}
}

// Package postgres implements a Postgres repository using pgx v5. Replace and
// append loads stream rows with COPY; upserts COPY into a temporary table and
// merge it into the target with INSERT ... ON CONFLICT.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gpetl/internal/logging"
	"gpetl/internal/storage"
	"gpetl/internal/storage/sqlsink"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	BatchSize int    // rows per COPY round trip
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

// txConn is the subset of pgx.Tx used by the load path.
type txConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Write implements storage.Repository. Postgres DDL is transactional, so a
// failed replace leaves the previous table in place.
func (r *Repository) Write(ctx context.Context, t storage.Table, s storage.Strategy) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	n, err := write(ctx, tx, t, s, r.cfg.BatchSize)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, pgDetail(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit %s: %w", t.Name, err)
	}
	logging.Component(ctx, "sink").Info().
		Str("backend", "postgres").
		Str("table", t.Name).
		Str("strategy", string(s)).
		Int64("rows", n).
		Msg("table written")
	return n, nil
}

func write(ctx context.Context, tx txConn, t storage.Table, s storage.Strategy, batchSize int) (int64, error) {
	d := sqlsink.Postgres
	exec := func(stmt string) error {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: %s: %w", stmt, err)
		}
		return nil
	}
	cols := t.ColumnNames()

	switch s {
	case storage.StrategyReplace, "":
		if err := exec(d.DropTable(t.Name)); err != nil {
			return 0, err
		}
		if err := exec(d.CreateTable(t, false, false)); err != nil {
			return 0, err
		}
		return copyRows(ctx, tx, splitFQN(t.Name), cols, t.Rows, batchSize)

	case storage.StrategyAppend:
		if err := exec(d.CreateTable(t, false, true)); err != nil {
			return 0, err
		}
		return copyRows(ctx, tx, splitFQN(t.Name), cols, t.Rows, batchSize)

	case storage.StrategyUpsert:
		if len(t.Key) == 0 {
			return 0, fmt.Errorf("postgres: upsert into %s: %w: table has no key", t.Name, storage.ErrUnsupportedStrategy)
		}
		if err := exec(d.CreateTable(t, true, true)); err != nil {
			return 0, err
		}
		if err := exec(d.KeyIndex(d, t.Name, t.Key)); err != nil {
			return 0, err
		}
		t = t.DedupeByKey()
		tmp := tempName(t.Name)
		if err := exec(fmt.Sprintf(
			"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
			d.Ident(tmp), d.FQN(t.Name),
		)); err != nil {
			return 0, err
		}
		n, err := copyRows(ctx, tx, pgx.Identifier{tmp}, cols, t.Rows, batchSize)
		if err != nil {
			return 0, err
		}
		if err := exec(mergeSQL(t.Name, tmp, cols, t.Key)); err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, fmt.Errorf("postgres: %w: %q", storage.ErrUnsupportedStrategy, s)
}

func copyRows(ctx context.Context, tx txConn, table pgx.Identifier, cols []string, rows [][]any, batchSize int) (int64, error) {
	return storage.LoadBatches(ctx, cols, rows, batchSize, func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		return tx.CopyFrom(ctx, table, columns, pgx.CopyFromRows(batch))
	})
}

// mergeSQL moves the staged rows from tmp into table, updating rows whose key
// already exists.
func mergeSQL(table, tmp string, cols, keys []string) string {
	d := sqlsink.Postgres
	quoted := mapIdent(cols)
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var sets []string
	for _, c := range cols {
		if _, isKey := keySet[c]; !isKey {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", d.Ident(c), d.Ident(c)))
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		d.FQN(table),
		strings.Join(quoted, ", "),
		strings.Join(quoted, ", "),
		d.Ident(tmp),
		strings.Join(mapIdent(keys), ", "),
		action,
	)
}

func tempName(table string) string {
	return "tmp_" + strings.ReplaceAll(table, ".", "_")
}

// pgDetail surfaces the server's detail message when the error came from
// Postgres, keeping the original error in the chain.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = sqlsink.Postgres.Ident(c)
	}
	return out
}

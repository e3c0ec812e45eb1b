package sqlsink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gpetl/internal/logging"
	"gpetl/internal/storage"
)

// Writer is a storage.Repository over a *sql.DB and a Dialect.
type Writer struct {
	db        *sql.DB
	dialect   Dialect
	batchSize int
}

var _ storage.Repository = (*Writer)(nil)

// New returns a Writer that owns db; Close closes it.
func New(db *sql.DB, d Dialect, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = storage.DefaultBatchSize
	}
	return &Writer{db: db, dialect: d, batchSize: batchSize}
}

// DB exposes the underlying pool, mainly for tests.
func (w *Writer) DB() *sql.DB { return w.db }

// Close implements storage.Repository.
func (w *Writer) Close() { _ = w.db.Close() }

// Write implements storage.Repository. Every strategy runs inside a single
// transaction; engines that auto-commit DDL (MySQL) are only as atomic as
// they allow.
func (w *Writer) Write(ctx context.Context, t storage.Table, s storage.Strategy) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if s == storage.StrategyUpsert && len(t.Key) == 0 {
		return 0, fmt.Errorf("%s: upsert into %s: %w: table has no key", w.dialect.Name, t.Name, storage.ErrUnsupportedStrategy)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", w.dialect.Name, err)
	}
	n, err := w.write(ctx, tx, t, s)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit %s: %w", w.dialect.Name, t.Name, err)
	}

	logging.Component(ctx, "sink").Info().
		Str("backend", w.dialect.Name).
		Str("table", t.Name).
		Str("strategy", string(s)).
		Int64("rows", n).
		Msg("table written")
	return n, nil
}

func (w *Writer) write(ctx context.Context, tx *sql.Tx, t storage.Table, s storage.Strategy) (int64, error) {
	d := w.dialect
	exec := func(stmt string) error {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %s: %w", d.Name, stmt, err)
		}
		return nil
	}

	switch s {
	case storage.StrategyReplace, "":
		if err := exec(d.DropTable(t.Name)); err != nil {
			return 0, err
		}
		if err := exec(d.CreateTable(t, false, false)); err != nil {
			return 0, err
		}
		return w.insert(ctx, tx, t)

	case storage.StrategyAppend:
		if err := exec(d.CreateTable(t, false, true)); err != nil {
			return 0, err
		}
		return w.insert(ctx, tx, t)

	case storage.StrategyUpsert:
		if err := exec(d.CreateTable(t, true, true)); err != nil {
			return 0, err
		}
		if d.KeyIndex != nil && d.Upsert != UpsertDeleteInsert {
			if err := exec(d.KeyIndex(d, t.Name, t.Key)); err != nil {
				return 0, err
			}
		}
		return w.upsert(ctx, tx, t.DedupeByKey())
	}
	return 0, fmt.Errorf("%s: %w: %q", d.Name, storage.ErrUnsupportedStrategy, s)
}

// insert loads every row, through the dialect's bulk hook when it has one.
func (w *Writer) insert(ctx context.Context, tx *sql.Tx, t storage.Table) (int64, error) {
	d := w.dialect
	cols := t.ColumnNames()
	if d.Bulk != nil {
		return storage.LoadBatches(ctx, cols, t.Rows, w.batchSize, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			return d.Bulk(ctx, tx, t.Name, columns, rows)
		})
	}
	return storage.LoadBatches(ctx, cols, t.Rows, d.rowsPerStatement(w.batchSize, len(cols)),
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			return execRows(ctx, tx, d.Insert(t.Name, columns, len(rows)), rows)
		})
}

func (w *Writer) upsert(ctx context.Context, tx *sql.Tx, t storage.Table) (int64, error) {
	d := w.dialect
	cols := t.ColumnNames()
	batch := d.rowsPerStatement(w.batchSize, len(cols))

	if d.Upsert != UpsertDeleteInsert {
		return storage.LoadBatches(ctx, cols, t.Rows, batch,
			func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
				return execRows(ctx, tx, d.UpsertInsert(t.Name, columns, t.Key, len(rows)), rows)
			})
	}

	del, err := tx.PrepareContext(ctx, d.DeleteByKey(t.Name, t.Key))
	if err != nil {
		return 0, fmt.Errorf("%s: prepare delete: %w", d.Name, err)
	}
	defer del.Close()

	keyIdx := make([]int, len(t.Key))
	for i, k := range t.Key {
		for j, c := range cols {
			if c == k {
				keyIdx[i] = j
			}
		}
	}
	return storage.LoadBatches(ctx, cols, t.Rows, batch,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			args := make([]any, len(keyIdx))
			for _, r := range rows {
				for i, j := range keyIdx {
					args[i] = r[j]
				}
				if _, err := del.ExecContext(ctx, args...); err != nil {
					return 0, fmt.Errorf("%s: delete by key: %w", d.Name, err)
				}
			}
			return execRows(ctx, tx, d.Insert(t.Name, columns, len(rows)), rows)
		})
}

// execRows flattens rows into one argument list and executes stmt. The
// returned count is the number of rows sent, since upsert statements report
// engine-specific affected counts.
func execRows(ctx context.Context, tx *sql.Tx, stmt string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		args = append(args, r...)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	return int64(len(rows)), nil
}

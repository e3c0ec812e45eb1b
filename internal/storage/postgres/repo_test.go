package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gpetl/internal/storage"
)

// fakeTx records statements and COPY calls instead of talking to Postgres.
type fakeTx struct {
	stmts   []string
	copies  map[string]int
	failSQL string
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	if f.failSQL != "" && strings.Contains(sql, f.failSQL) {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	if f.copies == nil {
		f.copies = map[string]int{}
	}
	var n int64
	for src.Next() {
		if _, err := src.Values(); err != nil {
			return n, err
		}
		n++
	}
	f.copies[strings.Join(table, ".")] += int(n)
	return n, nil
}

func practices() storage.Table {
	return storage.Table{
		Name: "public.dim_gp_practice",
		Columns: []storage.Column{
			{Name: "key", Type: storage.TypeText},
			{Name: "name", Type: storage.TypeText},
		},
		Key:  []string{"key"},
		Rows: [][]any{{"A", "Alpha"}, {"B", "Beta"}, {"A", "Alpha 2"}},
	}
}

func TestWriteReplaceDropsCreatesAndCopies(t *testing.T) {
	tx := &fakeTx{}
	n, err := write(context.Background(), tx, practices(), storage.StrategyReplace, 2)
	if err != nil {
		t.Fatalf("write() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("write() = %d, want 3", n)
	}
	if len(tx.stmts) != 2 {
		t.Fatalf("statements = %v, want drop+create", tx.stmts)
	}
	if !strings.HasPrefix(tx.stmts[0], `DROP TABLE IF EXISTS "public"."dim_gp_practice"`) {
		t.Errorf("stmt[0] = %q", tx.stmts[0])
	}
	if !strings.HasPrefix(tx.stmts[1], `CREATE TABLE "public"."dim_gp_practice"`) {
		t.Errorf("stmt[1] = %q", tx.stmts[1])
	}
	if tx.copies["public.dim_gp_practice"] != 3 {
		t.Errorf("copied = %v", tx.copies)
	}
}

func TestWriteUpsertStagesAndMerges(t *testing.T) {
	tx := &fakeTx{}
	n, err := write(context.Background(), tx, practices(), storage.StrategyUpsert, 100)
	if err != nil {
		t.Fatalf("write() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("write() = %d, want 2 (deduplicated)", n)
	}
	if tx.copies["tmp_public_dim_gp_practice"] != 2 {
		t.Errorf("staged = %v", tx.copies)
	}
	last := tx.stmts[len(tx.stmts)-1]
	want := `INSERT INTO "public"."dim_gp_practice" ("key", "name") SELECT "key", "name" FROM "tmp_public_dim_gp_practice" ON CONFLICT ("key") DO UPDATE SET "name" = EXCLUDED."name"`
	if last != want {
		t.Errorf("merge =\n%s\nwant\n%s", last, want)
	}
}

func TestWriteAppendCreatesIfMissing(t *testing.T) {
	tx := &fakeTx{}
	if _, err := write(context.Background(), tx, practices(), storage.StrategyAppend, 10); err != nil {
		t.Fatalf("write() error = %v", err)
	}
	if len(tx.stmts) != 1 || !strings.HasPrefix(tx.stmts[0], "CREATE TABLE IF NOT EXISTS") {
		t.Fatalf("statements = %v", tx.stmts)
	}
}

func TestWriteStopsOnDDLError(t *testing.T) {
	tx := &fakeTx{failSQL: "CREATE TABLE"}
	if _, err := write(context.Background(), tx, practices(), storage.StrategyReplace, 10); err == nil {
		t.Fatalf("write() error = nil, want error")
	}
	if len(tx.copies) != 0 {
		t.Fatalf("COPY ran after failed DDL: %v", tx.copies)
	}
}

func TestMergeSQLKeyOnly(t *testing.T) {
	got := mergeSQL("t", "tmp_t", []string{"k"}, []string{"k"})
	if !strings.HasSuffix(got, `ON CONFLICT ("k") DO NOTHING`) {
		t.Fatalf("mergeSQL = %q", got)
	}
}

func TestSplitFQN(t *testing.T) {
	got := splitFQN("public.users")
	if len(got) != 2 || got[0] != "public" || got[1] != "users" {
		t.Fatalf("splitFQN = %v", got)
	}
	if got := splitFQN("users"); len(got) != 1 {
		t.Fatalf("splitFQN(users) = %v", got)
	}
}

func TestPostgresRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x", BatchSize: 7})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if got.DSN != "postgres://x" || got.BatchSize != 7 {
		t.Fatalf("hook cfg = %+v", got)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close() did not invoke closeFn")
	}
}

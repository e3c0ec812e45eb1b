package sqlsink

import (
	"testing"

	"gpetl/internal/storage"
)

func practiceTable() storage.Table {
	return storage.Table{
		Name: "dim_gp_practice",
		Columns: []storage.Column{
			{Name: "key", Type: storage.TypeText},
			{Name: "name", Type: storage.TypeText},
			{Name: "pop", Type: storage.TypeInteger},
			{Name: "score", Type: storage.TypeReal},
		},
		Key: []string{"key"},
	}
}

// checkSQL runs a table of generated statements against their expected text.
func checkSQL(t *testing.T, tests []struct{ name, got, want string }) {
	t.Helper()
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s:\n got  %s\n want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestIdentQuoting(t *testing.T) {
	checkSQL(t, []struct{ name, got, want string }{
		{"postgres ident", Postgres.Ident(`a"b`), `"a""b"`},
		{"mysql ident", MySQL.Ident("a`b"), "`a``b`"},
		{"mssql ident", MSSQL.Ident(`a]b`), `[a]]b]`},
		{"mssql fqn", MSSQL.FQN("dbo.t"), `[dbo].[t]`},
		{"postgres fqn", Postgres.FQN("public.t"), `"public"."t"`},
	})
}

func TestCreateTable(t *testing.T) {
	tbl := practiceTable()
	checkSQL(t, []struct{ name, got, want string }{
		{"sqlite", SQLite.CreateTable(tbl, false, false),
			`CREATE TABLE "dim_gp_practice" ("key" TEXT, "name" TEXT, "pop" INTEGER, "score" REAL)`},
		{"postgres", Postgres.CreateTable(tbl, true, true),
			`CREATE TABLE IF NOT EXISTS "dim_gp_practice" ("key" TEXT NOT NULL, "name" TEXT, "pop" BIGINT, "score" DOUBLE PRECISION, PRIMARY KEY ("key"))`},
		{"mysql", MySQL.CreateTable(tbl, true, true),
			"CREATE TABLE IF NOT EXISTS `dim_gp_practice` (`key` VARCHAR(255) NOT NULL, `name` TEXT, `pop` BIGINT, `score` DOUBLE, PRIMARY KEY (`key`))"},
		{"mssql", MSSQL.CreateTable(tbl, false, true),
			`IF OBJECT_ID(N'dim_gp_practice', N'U') IS NULL CREATE TABLE [dim_gp_practice] ([key] NVARCHAR(255), [name] NVARCHAR(MAX), [pop] BIGINT, [score] FLOAT)`},
	})
}

func TestInsertPlaceholders(t *testing.T) {
	cols := []string{"a", "b"}
	checkSQL(t, []struct{ name, got, want string }{
		{"sqlite", SQLite.Insert("t", cols, 2), `INSERT INTO "t" ("a", "b") VALUES (?, ?), (?, ?)`},
		{"postgres", Postgres.Insert("t", cols, 2), `INSERT INTO "t" ("a", "b") VALUES ($1, $2), ($3, $4)`},
		{"mssql", MSSQL.Insert("t", cols, 1), `INSERT INTO [t] ([a], [b]) VALUES (@p1, @p2)`},
	})
}

func TestUpsertInsert(t *testing.T) {
	cols := []string{"k", "v"}
	keys := []string{"k"}
	checkSQL(t, []struct{ name, got, want string }{
		{"sqlite", SQLite.UpsertInsert("t", cols, keys, 1),
			`INSERT INTO "t" ("k", "v") VALUES (?, ?) ON CONFLICT ("k") DO UPDATE SET "v" = EXCLUDED."v"`},
		{"mysql", MySQL.UpsertInsert("t", cols, keys, 1),
			"INSERT INTO `t` (`k`, `v`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `v` = VALUES(`v`)"},
		{"sqlite key only", SQLite.UpsertInsert("t", []string{"k"}, keys, 1),
			`INSERT INTO "t" ("k") VALUES (?) ON CONFLICT ("k") DO NOTHING`},
		{"mssql", MSSQL.UpsertInsert("t", cols, keys, 1),
			`INSERT INTO [t] ([k], [v]) VALUES (@p1, @p2)`},
	})
}

func TestDeleteByKey(t *testing.T) {
	checkSQL(t, []struct{ name, got, want string }{
		{"mssql", MSSQL.DeleteByKey("t", []string{"a", "b"}), `DELETE FROM [t] WHERE [a] = @p1 AND [b] = @p2`},
	})
}

func TestRowsPerStatement(t *testing.T) {
	d := Dialect{MaxParams: 10}
	tests := []struct {
		d          Dialect
		rows, cols int
		want       int
	}{
		{d, 100, 3, 3},
		{d, 2, 3, 2},
		{d, 100, 50, 1},
		{Dialect{}, 100, 3, 100},
	}
	for _, tt := range tests {
		if got := tt.d.rowsPerStatement(tt.rows, tt.cols); got != tt.want {
			t.Errorf("rowsPerStatement(%d, %d) with MaxParams %d = %d; want %d", tt.rows, tt.cols, tt.d.MaxParams, got, tt.want)
		}
	}
}

func TestKeyIndex(t *testing.T) {
	got := Postgres.KeyIndex(Postgres, "public.t", []string{"k"})
	if want := `CREATE UNIQUE INDEX IF NOT EXISTS "ux_public_t" ON "public"."t" ("k")`; got != want {
		t.Fatalf("KeyIndex = %s; want %s", got, want)
	}
	if MySQL.KeyIndex != nil {
		t.Fatal("MySQL.KeyIndex != nil; mysql relies on the primary key")
	}
}

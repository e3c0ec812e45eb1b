// Package sqlsink implements storage.Repository on top of database/sql for
// any backend that can be described by a Dialect: identifier quoting, type
// names, placeholder style and upsert syntax. The SQLite, MySQL, MSSQL and
// DuckDB backends are thin wrappers around Writer; Postgres reuses the DDL
// helpers here and supplies its own COPY-based load path.
package sqlsink

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"gpetl/internal/storage"
)

// UpsertStyle selects how a dialect expresses insert-or-update.
type UpsertStyle int

const (
	// UpsertOnConflict: INSERT ... ON CONFLICT (keys) DO UPDATE SET c = EXCLUDED.c
	UpsertOnConflict UpsertStyle = iota
	// UpsertOnDuplicateKey: INSERT ... ON DUPLICATE KEY UPDATE c = VALUES(c)
	UpsertOnDuplicateKey
	// UpsertDeleteInsert: DELETE matching keys, then INSERT.
	UpsertDeleteInsert
)

// BulkFn inserts rows inside tx using a backend-native bulk primitive.
type BulkFn func(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error)

// Dialect describes the SQL surface of one backend.
type Dialect struct {
	Name string

	// Open and Close quote an identifier segment, e.g. `"` `"` or `[` `]`.
	Open, Close string

	// SQL type names for each logical column type. KeyText is used for text
	// columns that belong to the table key (some engines cannot index TEXT).
	Text, KeyText, Integer, Real string

	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder func(i int) string

	Upsert UpsertStyle

	// MaxParams caps bind parameters per statement; 0 means unlimited.
	MaxParams int

	// CreateIfMissing wraps a CREATE TABLE statement for engines without
	// CREATE TABLE IF NOT EXISTS. Nil means the engine supports the clause.
	CreateIfMissing func(rawTable, create string) string

	// KeyIndex renders an idempotent unique index over the key columns so an
	// upsert can target a table that was created without a primary key. Nil
	// means the engine has no CREATE UNIQUE INDEX IF NOT EXISTS.
	KeyIndex func(d Dialect, table string, keys []string) string

	// Bulk, when set, replaces multi-row INSERT for replace and append loads.
	Bulk BulkFn
}

func uniqueIndexIfMissing(d Dialect, table string, keys []string) string {
	name := "ux_" + strings.NewReplacer(".", "_", " ", "_").Replace(table)
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Ident(name), d.FQN(table), strings.Join(d.idents(keys), ", "))
}

func questionMark(int) string { return "?" }

// Ident quotes a single identifier segment, doubling the closing quote.
func (d Dialect) Ident(id string) string {
	return d.Open + strings.ReplaceAll(id, d.Close, d.Close+d.Close) + d.Close
}

// FQN quotes a possibly schema-qualified name segment by segment.
func (d Dialect) FQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Ident(p)
	}
	return strings.Join(parts, ".")
}

func (d Dialect) idents(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.Ident(c)
	}
	return out
}

// ColumnType maps a logical column type to the dialect's SQL type.
func (d Dialect) ColumnType(t storage.ColumnType, key bool) string {
	switch t {
	case storage.TypeInteger:
		return d.Integer
	case storage.TypeReal:
		return d.Real
	}
	if key && d.KeyText != "" {
		return d.KeyText
	}
	return d.Text
}

// DropTable renders DROP TABLE IF EXISTS.
func (d Dialect) DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + d.FQN(table)
}

// CreateTable renders CREATE TABLE for t. withKey adds a PRIMARY KEY over
// t.Key; ifMissing makes the statement a no-op when the table exists.
func (d Dialect) CreateTable(t storage.Table, withKey, ifMissing bool) string {
	keys := make(map[string]struct{}, len(t.Key))
	for _, k := range t.Key {
		keys[k] = struct{}{}
	}
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		_, isKey := keys[c.Name]
		def := d.Ident(c.Name) + " " + d.ColumnType(c.Type, isKey)
		if withKey && isKey {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if withKey && len(t.Key) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(d.idents(t.Key), ", ")+")")
	}
	body := d.FQN(t.Name) + " (" + strings.Join(defs, ", ") + ")"

	switch {
	case !ifMissing:
		return "CREATE TABLE " + body
	case d.CreateIfMissing != nil:
		return d.CreateIfMissing(t.Name, "CREATE TABLE "+body)
	default:
		return "CREATE TABLE IF NOT EXISTS " + body
	}
}

// values renders "(p1, p2), (p3, p4)" for nrows rows of ncols columns.
func (d Dialect) values(nrows, ncols int) string {
	ph := d.Placeholder
	if ph == nil {
		ph = questionMark
	}
	var b strings.Builder
	n := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < ncols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ph(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Insert renders a multi-row INSERT for nrows rows.
func (d Dialect) Insert(table string, columns []string, nrows int) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.FQN(table), strings.Join(d.idents(columns), ", "), d.values(nrows, len(columns)))
}

// updateColumns lists the non-key columns of an upsert.
func updateColumns(columns, keys []string) []string {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var out []string
	for _, c := range columns {
		if _, isKey := keySet[c]; !isKey {
			out = append(out, c)
		}
	}
	return out
}

// UpsertInsert renders the insert-or-update statement for styles that
// support one. For UpsertDeleteInsert it returns a plain Insert.
func (d Dialect) UpsertInsert(table string, columns, keys []string, nrows int) string {
	ins := d.Insert(table, columns, nrows)
	upd := updateColumns(columns, keys)

	switch d.Upsert {
	case UpsertOnConflict:
		if len(upd) == 0 {
			return ins + " ON CONFLICT (" + strings.Join(d.idents(keys), ", ") + ") DO NOTHING"
		}
		sets := make([]string, len(upd))
		for i, c := range upd {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", d.Ident(c), d.Ident(c))
		}
		return ins + " ON CONFLICT (" + strings.Join(d.idents(keys), ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	case UpsertOnDuplicateKey:
		if len(upd) == 0 {
			upd = keys[:1]
		}
		sets := make([]string, len(upd))
		for i, c := range upd {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", d.Ident(c), d.Ident(c))
		}
		return ins + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	default:
		return ins
	}
}

// DeleteByKey renders a single-row DELETE matching the key columns.
func (d Dialect) DeleteByKey(table string, keys []string) string {
	ph := d.Placeholder
	if ph == nil {
		ph = questionMark
	}
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s = %s", d.Ident(k), ph(i+1))
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", d.FQN(table), strings.Join(conds, " AND "))
}

// rowsPerStatement bounds a batch so that rows*columns stays under MaxParams.
func (d Dialect) rowsPerStatement(batchSize, ncols int) int {
	if d.MaxParams <= 0 || ncols == 0 {
		return batchSize
	}
	return max(1, min(batchSize, d.MaxParams/ncols))
}

// Built-in dialects.
var (
	Postgres = Dialect{
		Name: "postgres", Open: `"`, Close: `"`,
		Text: "TEXT", Integer: "BIGINT", Real: "DOUBLE PRECISION",
		Placeholder: func(i int) string { return "$" + strconv.Itoa(i) },
		Upsert:      UpsertOnConflict,
		MaxParams:   65535,
		KeyIndex:    uniqueIndexIfMissing,
	}

	SQLite = Dialect{
		Name: "sqlite", Open: `"`, Close: `"`,
		Text: "TEXT", Integer: "INTEGER", Real: "REAL",
		Upsert:    UpsertOnConflict,
		MaxParams: 32766,
		KeyIndex:  uniqueIndexIfMissing,
	}

	MySQL = Dialect{
		Name: "mysql", Open: "`", Close: "`",
		Text: "TEXT", KeyText: "VARCHAR(255)", Integer: "BIGINT", Real: "DOUBLE",
		Upsert:    UpsertOnDuplicateKey,
		MaxParams: 65535,
	}

	MSSQL = Dialect{
		Name: "mssql", Open: "[", Close: "]",
		Text: "NVARCHAR(MAX)", KeyText: "NVARCHAR(255)", Integer: "BIGINT", Real: "FLOAT",
		Placeholder: func(i int) string { return "@p" + strconv.Itoa(i) },
		Upsert:      UpsertDeleteInsert,
		MaxParams:   2000,
		CreateIfMissing: func(rawTable, create string) string {
			return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL %s", strings.ReplaceAll(rawTable, "'", "''"), create)
		},
	}

	DuckDB = Dialect{
		Name: "duckdb", Open: `"`, Close: `"`,
		Text: "VARCHAR", Integer: "BIGINT", Real: "DOUBLE",
		Upsert: UpsertDeleteInsert,
	}
)

// ForKind returns the built-in dialect for a storage kind.
func ForKind(kind string) (Dialect, bool) {
	switch strings.ToLower(kind) {
	case "postgres", "postgresql", "pgx":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	case "mysql":
		return MySQL, true
	case "mssql", "sqlserver":
		return MSSQL, true
	case "duckdb":
		return DuckDB, true
	}
	return Dialect{}, false
}

// Package all wires all built-in table backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete backend to run, which in
// turn register their factories with the storage package. Importing it makes
// the following kinds available at runtime:
//
//   - "postgres" (gpetl/internal/storage/postgres)
//   - "mysql"    (gpetl/internal/storage/mysql)
//   - "mssql"    (gpetl/internal/storage/mssql)
//   - "sqlite"   (gpetl/internal/storage/sqlite)
//   - "duckdb"   (gpetl/internal/storage/duckdb)
//
// Typical usage:
//
//	import _ "gpetl/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: "olap.db"})
package all

import (
	_ "gpetl/internal/storage/duckdb"
	_ "gpetl/internal/storage/mssql"
	_ "gpetl/internal/storage/mysql"
	_ "gpetl/internal/storage/postgres"
	_ "gpetl/internal/storage/sqlite"
)

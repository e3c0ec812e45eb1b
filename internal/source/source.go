// Package source reads named queries from the operational store as lazy,
// restartable record sequences.
//
// A Reader never filters, pages or retries: every iteration of the returned
// sequence re-runs the full query, and any failure is yielded once and ends
// the sequence. Callers that need the whole result use records.Collect.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gpetl/internal/records"
)

// Names of the built-in queries.
const (
	QueryPatients         = "pat_info"
	QueryPractices        = "gp_prac"
	QueryTECStatus        = "tec_no_key"
	QueryPatientDocuments = "patient_documents"
)

// ErrUnknownQuery is yielded when a Reader has no query registered under the
// requested name.
var ErrUnknownQuery = errors.New("unknown query")

// Reader executes named queries.
type Reader interface {
	Query(ctx context.Context, name string) records.Seq
	Close() error
}

// Config selects and configures a SQL source.
type Config struct {
	// Kind is one of mysql, postgres, sqlite, mssql, duckdb.
	Kind string
	DSN  string
	// Queries overrides or extends the built-in queries by name.
	Queries map[string]string
}

// drivers maps a source kind to its database/sql driver name.
var drivers = map[string]string{
	"mysql":    "mysql",
	"postgres": "pgx",
	"sqlite":   "sqlite",
	"mssql":    "sqlserver",
	"duckdb":   "duckdb",
}

// DriverName returns the database/sql driver registered for kind.
func DriverName(kind string) (string, error) {
	d, ok := drivers[kind]
	if !ok {
		kinds := make([]string, 0, len(drivers))
		for k := range drivers {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		return "", fmt.Errorf("source: unknown kind %q (supported: %v)", kind, kinds)
	}
	return d, nil
}

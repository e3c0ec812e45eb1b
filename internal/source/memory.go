package source

import (
	"context"
	"fmt"

	"gpetl/internal/records"
)

// Memory is a Reader over fixed in-memory result sets, keyed by query name.
// Errors, when set for a name, are yielded instead of rows.
type Memory struct {
	Tables map[string][]records.Record
	Errors map[string]error
}

var _ Reader = (*Memory)(nil)

// Query implements Reader.
func (m *Memory) Query(_ context.Context, name string) records.Seq {
	if err, ok := m.Errors[name]; ok {
		return records.Fail(err)
	}
	recs, ok := m.Tables[name]
	if !ok {
		return records.Fail(fmt.Errorf("%w: %q", ErrUnknownQuery, name))
	}
	return records.FromSlice(recs)
}

// Close implements Reader.
func (m *Memory) Close() error { return nil }

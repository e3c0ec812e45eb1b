package storage

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zeebo/xxh3"

	"gpetl/internal/records"
)

// ErrUnsupportedStrategy is returned by backends that cannot honour a
// requested Strategy.
var ErrUnsupportedStrategy = errors.New("unsupported load strategy")

// Strategy selects how a write treats the destination's existing contents.
type Strategy string

const (
	// StrategyReplace drops and recreates the destination, then loads.
	StrategyReplace Strategy = "replace"
	// StrategyUpsert inserts new keys and updates existing ones.
	StrategyUpsert Strategy = "upsert"
	// StrategyAppend inserts every row without touching existing ones.
	StrategyAppend Strategy = "append"
)

// ParseStrategy maps a configuration string to a Strategy. The empty string
// selects StrategyReplace.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyReplace:
		return StrategyReplace, nil
	case StrategyUpsert:
		return StrategyUpsert, nil
	case StrategyAppend:
		return StrategyAppend, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedStrategy, s)
}

// ColumnType is the logical type of a table column; dialects map it to a
// concrete SQL type.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	}
	return "text"
}

// Column is a named, typed table column.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a named, fully materialized record set with a fixed column list.
// Rows are aligned to Columns.
type Table struct {
	Name    string
	Columns []Column
	// Key names the columns that identify a row. Upserts need it; replace and
	// append ignore it.
	Key  []string
	Rows [][]any
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the table is internally consistent.
func (t Table) Validate() error {
	if t.Name == "" {
		return errors.New("table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	names := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		names[c.Name] = struct{}{}
	}
	for _, k := range t.Key {
		if _, ok := names[k]; !ok {
			return fmt.Errorf("table %s: key column %q not in columns", t.Name, k)
		}
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("table %s: row %d has %d values, want %d", t.Name, i, len(r), len(t.Columns))
		}
	}
	return nil
}

// keyIndexes returns the positions of the key columns.
func (t Table) keyIndexes() []int {
	idx := make([]int, 0, len(t.Key))
	for _, k := range t.Key {
		for i, c := range t.Columns {
			if c.Name == k {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

// DedupeByKey returns a copy of t holding one row per key, the last occurrence
// winning at the position of the first. Upserts need this because a single
// statement may not touch the same target row twice.
func (t Table) DedupeByKey() Table {
	if len(t.Key) == 0 {
		return t
	}
	idx := t.keyIndexes()
	pos := make(map[string]int, len(t.Rows))
	out := make([][]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		var b strings.Builder
		for i, j := range idx {
			if i > 0 {
				b.WriteByte('\x1f')
			}
			b.WriteString(records.Text(r[j]))
		}
		k := b.String()
		if p, ok := pos[k]; ok {
			out[p] = r
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	t.Rows = out
	return t
}

// Fingerprint hashes the table's rows in order. Two tables with the same
// columns and rows share a fingerprint, which makes run logs comparable.
func (t Table) Fingerprint() uint64 {
	h := xxh3.New()
	for _, c := range t.Columns {
		_, _ = h.WriteString(c.Name)
		_, _ = h.Write([]byte{0x1e})
	}
	for _, r := range t.Rows {
		for _, v := range r {
			switch f := v.(type) {
			case float64:
				_, _ = h.WriteString(fmt.Sprintf("%x", math.Float64bits(f)))
			default:
				_, _ = h.WriteString(records.Text(v))
			}
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte{0x1e})
	}
	return h.Sum64()
}

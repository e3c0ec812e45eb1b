// Package records defines the uniform row representation shared by every
// reader in the pipeline: a mapping from column name to value, plus a lazy
// sequence type for streaming those rows out of a data source.
//
// Values arrive from database/sql drivers in driver-specific shapes ([]byte
// for MySQL text columns, int64 for SQLite integers, float64 for reals, nil
// for NULL). The typed getters below normalize those shapes so that callers
// never branch on the driver in use.
package records

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Get returns the value stored under name. When no exact match exists the
// lookup falls back to a case-insensitive match, so "Registered_gp_Practice_key"
// and "Registered_GP_Practice_key" resolve to the same column.
func (r Record) Get(name string) (any, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// String returns the value under name as text. Missing columns and NULL both
// yield ("", false).
func (r Record) String(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return "", false
	}
	return Text(v), true
}

// Float returns the value under name as float64. Missing or NULL values
// return (0, false, nil); values that cannot be parsed return an error.
func (r Record) Float(name string) (float64, bool, error) {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		return t, true, nil
	case float32:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case int:
		return float64(t), true, nil
	case int32:
		return float64(t), true, nil
	}
	s := strings.TrimSpace(Text(v))
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("column %s: parse float %q: %w", name, s, err)
	}
	return f, true, nil
}

// Int returns the value under name as int64. Whole-valued floats ("2.0" or
// 2.0) are accepted because some drivers surface integer columns as DOUBLE.
func (r Record) Int(name string) (int64, bool, error) {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int64:
		return t, true, nil
	case int:
		return int64(t), true, nil
	case int32:
		return int64(t), true, nil
	}
	s := strings.TrimSpace(Text(v))
	if s == "" {
		return 0, false, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false, fmt.Errorf("column %s: parse integer %q", name, s)
	}
	return int64(f), true, nil
}

// Text renders a driver value as its canonical text form. It is also the
// canonical key representation used for joins.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Normalize converts driver-specific value shapes in place: []byte becomes
// string so that records are uniform regardless of the driver that produced
// them.
func Normalize(r Record) Record {
	for k, v := range r {
		if b, ok := v.([]byte); ok {
			r[k] = string(b)
		}
	}
	return r
}

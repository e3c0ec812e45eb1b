// Package transform holds the pure, in-memory reshaping steps of the
// pipelines: the relational star-schema build and the hierarchical document
// build. Nothing here performs I/O.
package transform

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ConflictPolicy decides what an OrderedMap does when a key is inserted twice.
//
//   - "keep-first": the first value stays, later ones are counted and ignored
//   - "keep-last" : the later value replaces the earlier one; the key keeps the
//     position of its first appearance
//   - "error"     : the second insert fails with ErrDuplicateKey
type ConflictPolicy string

const (
	KeepFirst       ConflictPolicy = "keep-first"
	KeepLast        ConflictPolicy = "keep-last"
	ErrorOnConflict ConflictPolicy = "error"
)

// ErrDuplicateKey is returned under ErrorOnConflict.
var ErrDuplicateKey = errors.New("duplicate key")

// ParseConflictPolicy maps a configuration string to a policy. The empty
// string selects KeepFirst.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return KeepFirst, nil
	case KeepFirst, KeepLast, ErrorOnConflict:
		return p, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q (want keep-first, keep-last or error)", s)
}

// OrderedMap is an insertion-ordered map with an explicit duplicate policy.
type OrderedMap[K comparable, V any] struct {
	policy ConflictPolicy
	index  map[K]int
	keys   []K
	vals   []V
	dups   int
}

// NewOrderedMap returns an empty map using policy; an empty policy means
// KeepFirst.
func NewOrderedMap[K comparable, V any](policy ConflictPolicy) *OrderedMap[K, V] {
	if policy == "" {
		policy = KeepFirst
	}
	return &OrderedMap[K, V]{policy: policy, index: make(map[K]int)}
}

// Put inserts v under k according to the map's policy. It reports whether k
// was new.
func (m *OrderedMap[K, V]) Put(k K, v V) (bool, error) {
	i, exists := m.index[k]
	if !exists {
		m.index[k] = len(m.keys)
		m.keys = append(m.keys, k)
		m.vals = append(m.vals, v)
		return true, nil
	}
	switch m.policy {
	case KeepLast:
		m.vals[i] = v
	case ErrorOnConflict:
		return false, fmt.Errorf("%w: %v", ErrDuplicateKey, k)
	}
	m.dups++
	return false, nil
}

// Get returns the value stored under k.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	i, ok := m.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return m.vals[i], true
}

// Len is the number of distinct keys.
func (m *OrderedMap[K, V]) Len() int { return len(m.keys) }

// Duplicates is the number of inserts that hit an existing key.
func (m *OrderedMap[K, V]) Duplicates() int { return m.dups }

// Keys returns the keys in first-appearance order.
func (m *OrderedMap[K, V]) Keys() []K { return append([]K(nil), m.keys...) }

// Values returns the values in first-appearance order of their keys.
func (m *OrderedMap[K, V]) Values() []V { return append([]V(nil), m.vals...) }

// All iterates key/value pairs in order.
func (m *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, k := range m.keys {
			if !yield(k, m.vals[i]) {
				return
			}
		}
	}
}

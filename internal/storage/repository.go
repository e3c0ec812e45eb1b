// Package storage contains the storage-agnostic contracts for writing named
// tables into an analytical SQL store, plus a small factory so the CLI can
// open a backend by kind without importing driver packages directly.
//
// Backends register themselves at init time:
//
//	func init() {
//	    storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
//	        ...
//	    })
//	}
//
// and callers blank-import gpetl/internal/storage/all to make every backend
// available.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository writes whole tables into a destination store.
type Repository interface {
	// Write persists t under the given strategy and returns the number of
	// rows written. Each call is independent; a failed Write does not undo
	// earlier successful ones.
	Write(ctx context.Context, t Table, s Strategy) (int64, error)

	// Close releases the underlying connection pool.
	Close()
}

// Config is the backend-neutral repository configuration.
type Config struct {
	// Kind selects the backend ("postgres", "sqlite", "mysql", "mssql", "duckdb").
	Kind string
	// DSN is passed to the backend driver unchanged.
	DSN string
	// BatchSize bounds the rows sent per bulk-insert round trip.
	BatchSize int
}

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 1000

// Factory constructs a Repository for a registered kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package docstore contains the storage-agnostic contract for writing patient
// documents into a document store, plus the same kind-keyed factory the
// table backends use. Backends register themselves at init time; import
// gpetl/internal/docstore/all to enable every built-in backend.
package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gpetl/internal/model"
	"gpetl/internal/storage"
)

// Sink writes a named collection of patient documents.
type Sink interface {
	// Write persists docs under collection using strategy s and returns the
	// number of documents written.
	Write(ctx context.Context, collection string, docs []model.PatientDocument, s storage.Strategy) (int64, error)
	Close(ctx context.Context) error
}

// Config is the backend-neutral document store configuration.
type Config struct {
	// Kind selects the backend ("mongo", "badger", "redis").
	Kind string
	// URI is the server address for networked stores.
	URI string
	// Database names the Mongo database or the Redis logical DB number.
	Database string
	// Path is the directory of an embedded store; empty means in-memory.
	Path string
}

// Factory constructs a Sink for a registered kind.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

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

// New opens a Sink for cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("docstore: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
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

// DocumentKey is the key-value store key of a patient document.
func DocumentKey(collection, patientID string) string {
	return collection + ":" + patientID
}

// KeyPrefix is the prefix shared by every key of collection.
func KeyPrefix(collection string) string {
	return collection + ":"
}

// Package badger implements docstore.Sink on an embedded BadgerDB. Each
// document is stored as JSON under "<collection>:<patient_id>", so a
// collection is a key prefix.
package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"gpetl/internal/docstore"
	"gpetl/internal/logging"
	"gpetl/internal/model"
	"gpetl/internal/storage"
)

// Sink is a BadgerDB-backed docstore.Sink.
type Sink struct {
	db *badger.DB
}

var _ docstore.Sink = (*Sink)(nil)

// Open opens (or creates) the store at path. An empty path opens an
// in-memory store.
func Open(path string) (*Sink, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB internal logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Sink{db: db}, nil
}

// Close closes the database.
func (s *Sink) Close(context.Context) error { return s.db.Close() }

// Write implements docstore.Sink. Replace drops the collection prefix and
// rewrites it; upsert overwrites the given keys. Append is rejected because a
// key-value store cannot hold two documents under one patient id.
func (s *Sink) Write(ctx context.Context, collection string, docs []model.PatientDocument, strategy storage.Strategy) (int64, error) {
	switch strategy {
	case storage.StrategyReplace, "":
		if err := s.db.DropPrefix([]byte(docstore.KeyPrefix(collection))); err != nil {
			return 0, fmt.Errorf("badger drop %s: %w", collection, err)
		}
	case storage.StrategyUpsert:
	default:
		return 0, fmt.Errorf("badger: %w: %q", storage.ErrUnsupportedStrategy, strategy)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range docs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		val, err := json.Marshal(docs[i])
		if err != nil {
			return 0, fmt.Errorf("encode patient %s: %w", docs[i].PatientID, err)
		}
		if err := wb.Set([]byte(docstore.DocumentKey(collection, docs[i].PatientID)), val); err != nil {
			return 0, fmt.Errorf("badger set: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("badger flush: %w", err)
	}

	logging.Component(ctx, "sink").Info().
		Str("backend", "badger").
		Str("collection", collection).
		Str("strategy", string(strategy)).
		Int("documents", len(docs)).
		Msg("collection written")
	return int64(len(docs)), nil
}

// Documents reads every document of collection in key order.
func (s *Sink) Documents(collection string) ([]model.PatientDocument, error) {
	var out []model.PatientDocument
	prefix := []byte(docstore.KeyPrefix(collection))
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var d model.PatientDocument
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

func init() {
	docstore.Register("badger", func(_ context.Context, cfg docstore.Config) (docstore.Sink, error) {
		return Open(cfg.Path)
	})
}

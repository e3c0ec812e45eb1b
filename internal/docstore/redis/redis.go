// Package redis implements docstore.Sink on Redis. Each document is a JSON
// string under "<collection>:<patient_id>". Replace and upsert run inside a
// MULTI/EXEC pipeline, so readers never observe a half-written collection.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"gpetl/internal/docstore"
	"gpetl/internal/logging"
	"gpetl/internal/model"
	"gpetl/internal/storage"
)

// Sink is a Redis-backed docstore.Sink.
type Sink struct {
	client *redis.Client
}

var _ docstore.Sink = (*Sink)(nil)

// Open parses uri (redis://[:password@]host:port[/db]), optionally overrides
// the logical database, and pings the server.
func Open(ctx context.Context, uri, database string) (*Sink, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("redis uri: %w", err)
	}
	if database != "" {
		db, err := strconv.Atoi(database)
		if err != nil {
			return nil, fmt.Errorf("redis database %q: %w", database, err)
		}
		opts.DB = db
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Sink{client: client}, nil
}

// Close closes the client.
func (s *Sink) Close(context.Context) error { return s.client.Close() }

type entry struct {
	key string
	val []byte
}

func encode(collection string, docs []model.PatientDocument) ([]entry, error) {
	out := make([]entry, len(docs))
	for i := range docs {
		val, err := json.Marshal(docs[i])
		if err != nil {
			return nil, fmt.Errorf("encode patient %s: %w", docs[i].PatientID, err)
		}
		out[i] = entry{key: docstore.DocumentKey(collection, docs[i].PatientID), val: val}
	}
	return out, nil
}

func checkStrategy(s storage.Strategy) error {
	switch s {
	case storage.StrategyReplace, storage.StrategyUpsert, "":
		return nil
	}
	return fmt.Errorf("redis: %w: %q", storage.ErrUnsupportedStrategy, s)
}

// Write implements docstore.Sink. Append is rejected because a key-value
// store cannot hold two documents under one patient id.
func (s *Sink) Write(ctx context.Context, collection string, docs []model.PatientDocument, strategy storage.Strategy) (int64, error) {
	if err := checkStrategy(strategy); err != nil {
		return 0, err
	}
	entries, err := encode(collection, docs)
	if err != nil {
		return 0, err
	}

	var stale []string
	if strategy != storage.StrategyUpsert {
		iter := s.client.Scan(ctx, 0, docstore.KeyPrefix(collection)+"*", 1000).Iterator()
		for iter.Next(ctx) {
			stale = append(stale, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return 0, fmt.Errorf("redis scan %s: %w", collection, err)
		}
	}

	pipe := s.client.TxPipeline()
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}
	for _, e := range entries {
		pipe.Set(ctx, e.key, e.val, 0)
	}
	if len(stale) > 0 || len(entries) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, fmt.Errorf("redis write %s: %w", collection, err)
		}
	}

	logging.Component(ctx, "sink").Info().
		Str("backend", "redis").
		Str("collection", collection).
		Str("strategy", string(strategy)).
		Int("deleted", len(stale)).
		Int("documents", len(entries)).
		Msg("collection written")
	return int64(len(entries)), nil
}

// open is a test hook that points to Open by default.
var open = Open

func init() {
	docstore.Register("redis", func(ctx context.Context, cfg docstore.Config) (docstore.Sink, error) {
		return open(ctx, cfg.URI, cfg.Database)
	})
}

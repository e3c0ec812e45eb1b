// Package mongo implements docstore.Sink on MongoDB with the official v1
// driver. Documents are stored as their bson-tagged model.PatientDocument
// shape, keyed by patient_id.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gpetl/internal/docstore"
	"gpetl/internal/logging"
	"gpetl/internal/model"
	"gpetl/internal/storage"
)

// DefaultDatabase is used when Config.Database is empty.
const DefaultDatabase = "gp_practice"

// collection is the subset of *mongo.Collection used by the sink.
type collection interface {
	Drop(ctx context.Context) error
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Sink writes patient documents into one Mongo database.
type Sink struct {
	client *mongo.Client
	db     string
	// coll resolves a collection by name; tests replace it.
	coll func(name string) collection
}

var _ docstore.Sink = (*Sink)(nil)

// Open connects to uri and pings the primary.
func Open(ctx context.Context, uri, database string) (*Sink, error) {
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := &Sink{client: client, db: database}
	s.coll = func(name string) collection { return client.Database(database).Collection(name) }
	return s, nil
}

// Close disconnects the client.
func (s *Sink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Write implements docstore.Sink.
//
//   - replace drops the collection, then inserts every document
//   - upsert replaces each document by patient_id, inserting missing ones
//   - append inserts every document
func (s *Sink) Write(ctx context.Context, name string, docs []model.PatientDocument, strategy storage.Strategy) (int64, error) {
	c := s.coll(name)

	var (
		n   int64
		err error
	)
	switch strategy {
	case storage.StrategyReplace, "":
		if err := c.Drop(ctx); err != nil {
			return 0, fmt.Errorf("mongo drop %s: %w", name, err)
		}
		n, err = insertMany(ctx, c, docs)
	case storage.StrategyAppend:
		n, err = insertMany(ctx, c, docs)
	case storage.StrategyUpsert:
		n, err = upsertMany(ctx, c, docs)
	default:
		return 0, fmt.Errorf("mongo: %w: %q", storage.ErrUnsupportedStrategy, strategy)
	}
	if err != nil {
		return n, fmt.Errorf("mongo write %s: %w", name, err)
	}

	logging.Component(ctx, "sink").Info().
		Str("backend", "mongo").
		Str("database", s.db).
		Str("collection", name).
		Str("strategy", string(strategy)).
		Int64("documents", n).
		Msg("collection written")
	return n, nil
}

func insertMany(ctx context.Context, c collection, docs []model.PatientDocument) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch := make([]interface{}, len(docs))
	for i := range docs {
		batch[i] = docs[i]
	}
	res, err := c.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, err
	}
	return int64(len(res.InsertedIDs)), nil
}

func upsertMany(ctx context.Context, c collection, docs []model.PatientDocument) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, len(docs))
	for i, d := range docs {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "patient_id", Value: d.PatientID}}).
			SetReplacement(d).
			SetUpsert(true)
	}
	res, err := c.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return 0, err
	}
	return res.MatchedCount + res.UpsertedCount, nil
}

// open is a test hook that points to Open by default.
var open = Open

func init() {
	docstore.Register("mongo", func(ctx context.Context, cfg docstore.Config) (docstore.Sink, error) {
		return open(ctx, cfg.URI, cfg.Database)
	})
}

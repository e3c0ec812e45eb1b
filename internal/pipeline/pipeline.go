// Package pipeline runs the three Extract → Transform → Load flows: the
// star-schema OLAP load, the patient document load and the report.
//
// Each run is sequential. Extraction materializes every query before the
// transform starts, and the transform completes before anything is
// written. A source failure aborts the run before any write; a sink failure
// is reported per destination while the remaining destinations are still
// attempted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gpetl/internal/logging"
	"gpetl/internal/metrics"
	"gpetl/internal/records"
	"gpetl/internal/source"
)

// Names label logs and metrics.
const (
	NameOLAP      = "olap"
	NameDocuments = "documents"
	NameReport    = "report"
)

// Stage names.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
	StageAggregate = "aggregate"
	StageRender    = "render"
)

var (
	// ErrSourceUnavailable wraps every failure to open, query or decode the
	// source. It is fatal to the run.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSinkUnavailable wraps a failure to open or write one destination.
	ErrSinkUnavailable = errors.New("sink unavailable")
)

func sourceErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, what, err)
}

func sinkErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSinkUnavailable, what, err)
}

// runStage times fn, records it under pipeline/stage and logs failures.
func runStage(ctx context.Context, pipeline, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStage(pipeline, stage, err, d)

	l := logging.Ctx(ctx)
	if err != nil {
		l.Error().Err(err).Str("stage", stage).Dur("took", d).Msg("stage failed")
		return err
	}
	l.Debug().Str("stage", stage).Dur("took", d).Msg("stage done")
	return nil
}

// collect materializes query name and decodes every record with fn.
func collect[T any](ctx context.Context, src source.Reader, name string, fn func([]records.Record) ([]T, error)) ([]T, error) {
	logging.Ctx(ctx).Info().Str("query", name).Msg("Extracting")
	recs, err := records.Collect(src.Query(ctx, name))
	if err != nil {
		return nil, sourceErr("query "+name, err)
	}
	out, err := fn(recs)
	if err != nil {
		return nil, sourceErr("decode "+name, err)
	}
	return out, nil
}

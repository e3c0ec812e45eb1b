package pipeline

import (
	"context"
	"fmt"

	"gpetl/internal/docstore"
	"gpetl/internal/logging"
	"gpetl/internal/metrics"
	"gpetl/internal/model"
	"gpetl/internal/source"
	"gpetl/internal/storage"
	"gpetl/internal/transform"
)

// Documents loads one nested document per patient into a document store.
type Documents struct {
	Source     source.Reader
	Sink       docstore.Sink
	Collection string
	Strategy   storage.Strategy
	Policy     transform.ConflictPolicy
}

// DocumentsResult reports what a run produced and wrote.
type DocumentsResult struct {
	Stats   transform.HierarchyStats
	Written int64
	// Fingerprint identifies the document set independent of the store.
	Fingerprint uint64
}

// Run extracts the pre-joined rows, nests them and writes the collection.
// With the error policy a repeated patient id aborts the run before the
// write.
func (p Documents) Run(ctx context.Context) (DocumentsResult, error) {
	var (
		rows []model.JoinedRow
		docs []model.PatientDocument
		res  DocumentsResult
	)

	err := runStage(ctx, NameDocuments, StageExtract, func() error {
		var err error
		rows, err = collect(ctx, p.Source, source.QueryPatientDocuments, model.DecodeJoinedRows)
		if err == nil {
			metrics.RecordRows(NameDocuments, metrics.KindExtracted, int64(len(rows)))
		}
		return err
	})
	if err != nil {
		return res, err
	}

	err = runStage(ctx, NameDocuments, StageTransform, func() error {
		var err error
		docs, res.Stats, err = transform.Hierarchy(rows, p.Policy)
		if err != nil {
			return err
		}
		if res.Fingerprint, err = transform.Fingerprint(docs); err != nil {
			return err
		}
		logging.Ctx(ctx).Info().
			Int("rows", res.Stats.Rows).
			Int("duplicates", res.Stats.Duplicates).
			Str("fingerprint", formatFingerprint(res.Fingerprint)).
			Msgf("Transforming into %d records", len(docs))
		metrics.RecordRows(NameDocuments, metrics.KindTransformed, int64(len(docs)))
		metrics.RecordRows(NameDocuments, metrics.KindDuplicates, int64(res.Stats.Duplicates))
		return nil
	})
	if err != nil {
		return res, err
	}

	err = runStage(ctx, NameDocuments, StageLoad, func() error {
		n, err := p.Sink.Write(ctx, p.Collection, docs, p.Strategy)
		metrics.RecordTable(NameDocuments, p.Collection, err)
		if err != nil {
			return sinkErr("collection "+p.Collection, err)
		}
		res.Written = n
		metrics.RecordRows(NameDocuments, metrics.KindLoaded, n)
		logging.Ctx(ctx).Info().Str("collection", p.Collection).Int64("documents", n).Msgf("Loaded %s", p.Collection)
		return nil
	})
	return res, err
}

func formatFingerprint(v uint64) string { return fmt.Sprintf("%016x", v) }

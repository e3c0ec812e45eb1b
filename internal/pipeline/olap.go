package pipeline

import (
	"context"
	"errors"

	"gpetl/internal/logging"
	"gpetl/internal/metrics"
	"gpetl/internal/model"
	"gpetl/internal/source"
	"gpetl/internal/storage"
	"gpetl/internal/transform"
)

// OLAP loads the star schema from the operational store.
type OLAP struct {
	Source   source.Reader
	Sink     storage.Repository
	Strategy storage.Strategy
	Tables   transform.TableNames
}

// OLAPResult reports what a run produced and wrote.
type OLAPResult struct {
	Star transform.StarSchemaResult
	// Written maps table name to rows written, for tables that succeeded.
	Written map[string]int64
}

// Run extracts the three source tables, builds the star schema and writes
// fact, practice and patient tables in that order. Write failures are
// joined; a failed table does not stop the others.
func (p OLAP) Run(ctx context.Context) (OLAPResult, error) {
	var (
		patients  []model.Patient
		practices []model.Practice
		tec       []model.TECStatus
		res       OLAPResult
		tables    []storage.Table
	)

	err := runStage(ctx, NameOLAP, StageExtract, func() error {
		var err error
		if patients, err = collect(ctx, p.Source, source.QueryPatients, model.DecodePatients); err != nil {
			return err
		}
		if practices, err = collect(ctx, p.Source, source.QueryPractices, model.DecodePractices); err != nil {
			return err
		}
		if tec, err = collect(ctx, p.Source, source.QueryTECStatus, model.DecodeTECStatuses); err != nil {
			return err
		}
		metrics.RecordRows(NameOLAP, metrics.KindExtracted, int64(len(patients)+len(practices)+len(tec)))
		return nil
	})
	if err != nil {
		return res, err
	}

	_ = runStage(ctx, NameOLAP, StageTransform, func() error {
		res.Star = transform.StarSchema(patients, practices, tec)
		tables = transform.StarTables(res.Star, p.Tables)
		n := 0
		for _, t := range tables {
			n += len(t.Rows)
		}
		s := res.Star
		logging.Ctx(ctx).Info().
			Int("facts", len(s.Facts)).
			Int("practices", len(s.Practices)).
			Int("patients", len(s.Patients)).
			Msgf("Transforming into %d records", n)
		if s.FactDropped > 0 || s.PatientDimDropped > 0 {
			logging.Ctx(ctx).Debug().
				Int("fact_dropped", s.FactDropped).
				Int("patient_dim_dropped", s.PatientDimDropped).
				Msg("unmatched join keys dropped")
		}
		metrics.RecordRows(NameOLAP, metrics.KindTransformed, int64(n))
		metrics.RecordRows(NameOLAP, metrics.KindJoinMisses, int64(s.FactDropped+s.PatientDimDropped))
		metrics.RecordRows(NameOLAP, metrics.KindDuplicates, int64(s.DuplicatePractices))
		return nil
	})

	err = runStage(ctx, NameOLAP, StageLoad, func() error {
		res.Written = make(map[string]int64, len(tables))
		var errs []error
		for _, t := range tables {
			n, err := p.Sink.Write(ctx, t, p.Strategy)
			metrics.RecordTable(NameOLAP, t.Name, err)
			if err != nil {
				errs = append(errs, sinkErr("table "+t.Name, err))
				continue
			}
			res.Written[t.Name] = n
			metrics.RecordRows(NameOLAP, metrics.KindLoaded, n)
			logging.Ctx(ctx).Info().Str("table", t.Name).Int64("rows", n).Msgf("Loaded %s", t.Name)
		}
		return errors.Join(errs...)
	})
	return res, err
}

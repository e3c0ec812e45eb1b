package report

import (
	"context"
	"fmt"

	"gpetl/internal/model"
	"gpetl/internal/records"
	"gpetl/internal/source"
	"gpetl/internal/storage/sqlsink"
	"gpetl/internal/transform"
)

// QueryObservations is the source query name the report reads.
const QueryObservations = "report_observations"

// Column aliases of the observation query.
const (
	colPracticeKey = "practice_key"
	colPractice    = "gp_practice"
	colScore       = "deprivation_score"
	colCategory    = "deprivation_category"
	colPatientID   = "patient_id"
	colTecOrNo     = "tec_or_no"
)

// ObservationsQuery joins the fact table with both dimensions, quoting
// identifiers for d.
func ObservationsQuery(d sqlsink.Dialect, names transform.TableNames) string {
	if names.Fact == "" {
		names.Fact = transform.DefaultTableNames.Fact
	}
	if names.Practice == "" {
		names.Practice = transform.DefaultTableNames.Practice
	}
	if names.Patient == "" {
		names.Patient = transform.DefaultTableNames.Patient
	}
	col := func(alias, name string) string { return alias + "." + d.Ident(name) }
	as := func(expr, alias string) string { return expr + " AS " + d.Ident(alias) }

	return fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s FROM %s f JOIN %s g ON %s = %s JOIN %s p ON %s = %s",
		as(col("g", model.ColPracticeKey), colPracticeKey),
		as(col("g", model.ColPracticeName), colPractice),
		as(col("g", model.ColScoreOverall), colScore),
		as(col("g", model.ColCategoryOverall), colCategory),
		as(col("f", model.ColPatientID), colPatientID),
		as(col("p", model.ColTecOrNo), colTecOrNo),
		d.FQN(names.Fact),
		d.FQN(names.Practice), col("g", model.ColPracticeKey), col("f", model.ColPracticeKey),
		d.FQN(names.Patient), col("p", model.ColPatientID), col("f", model.ColPatientID),
	)
}

// Read runs QueryObservations against src and decodes every row.
func Read(ctx context.Context, src source.Reader) ([]Observation, error) {
	recs, err := records.Collect(src.Query(ctx, QueryObservations))
	if err != nil {
		return nil, err
	}
	out := make([]Observation, 0, len(recs))
	for i, r := range recs {
		o, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func decode(r records.Record) (Observation, error) {
	var o Observation
	o.PatientID, _ = r.String(colPatientID)
	o.PracticeKey, _ = r.String(colPracticeKey)
	o.PracticeName, _ = r.String(colPractice)
	o.TecOrNo, _ = r.String(colTecOrNo)

	var (
		ok  bool
		err error
	)
	if o.Score, ok, err = r.Float(colScore); err != nil {
		return o, fmt.Errorf("%w: %w", model.ErrMalformedRecord, err)
	}
	o.NoScore = !ok
	if o.Category, ok, err = r.Int(colCategory); err != nil {
		return o, fmt.Errorf("%w: %w", model.ErrMalformedRecord, err)
	}
	o.NoCategory = !ok
	return o, nil
}

// FromStarSchema computes the same observations in memory, without a round
// trip through a store.
func FromStarSchema(res transform.StarSchemaResult) []Observation {
	practices := make(map[model.Key]model.Practice, len(res.Practices))
	for _, p := range res.Practices {
		practices[p.Key] = p
	}
	tec := make(map[model.Key]string, len(res.Patients))
	for _, p := range res.Patients {
		if _, dup := tec[p.PatientID]; !dup {
			tec[p.PatientID] = p.TecOrNo
		}
	}

	var out []Observation
	for _, f := range res.Facts {
		p, ok := practices[f.PracticeKey]
		if !ok {
			continue
		}
		status, ok := tec[f.PatientID]
		if !ok {
			continue
		}
		out = append(out, Observation{
			PatientID:    string(f.PatientID),
			PracticeKey:  string(p.Key),
			PracticeName: p.Name,
			Score:        p.Overall.Score,
			Category:     p.Overall.Category,
			TecOrNo:      status,
		})
	}
	return out
}

package transform

import (
	"gpetl/internal/model"
	"gpetl/internal/storage"
)

// StarSchemaResult is the star schema built from one snapshot of the
// operational store.
type StarSchemaResult struct {
	Facts     []model.FactRow
	Practices []model.Practice
	Patients  []model.PatientDim

	// FactDropped counts patients whose practice key did not resolve.
	FactDropped int
	// PatientDimDropped counts patients whose TEC key did not resolve.
	PatientDimDropped int
	// DuplicatePractices counts repeated practice keys collapsed into the
	// first occurrence.
	DuplicatePractices int
}

// StarSchema joins the three source sets into a fact table and two
// dimensions. Both joins are inner joins evaluated independently, so a
// patient may land in the fact table but not the patient dimension, or the
// other way round. Output order follows input order.
func StarSchema(patients []model.Patient, practices []model.Practice, tec []model.TECStatus) StarSchemaResult {
	var res StarSchemaResult

	dim := NewOrderedMap[model.Key, model.Practice](KeepFirst)
	for _, p := range practices {
		_, _ = dim.Put(p.Key, p)
	}
	res.Practices = dim.Values()
	res.DuplicatePractices = dim.Duplicates()

	status := NewOrderedMap[model.Key, model.TECStatus](KeepFirst)
	for _, s := range tec {
		_, _ = status.Put(s.Key, s)
	}

	res.Facts = make([]model.FactRow, 0, len(patients))
	res.Patients = make([]model.PatientDim, 0, len(patients))
	for _, p := range patients {
		if _, ok := dim.Get(p.PracticeKey); ok && p.PracticeKey.Valid() {
			res.Facts = append(res.Facts, model.FactRow{PatientID: p.ID, PracticeKey: p.PracticeKey})
		} else {
			res.FactDropped++
		}

		if s, ok := status.Get(p.TECKey); ok && p.TECKey.Valid() {
			res.Patients = append(res.Patients, model.PatientDim{PatientID: p.ID, TecOrNo: s.Value})
		} else {
			res.PatientDimDropped++
		}
	}
	return res
}

// TableNames names the three star-schema tables.
type TableNames struct {
	Fact     string
	Practice string
	Patient  string
}

// DefaultTableNames are the analytical store's table names.
var DefaultTableNames = TableNames{
	Fact:     "fact_pat_gp",
	Practice: "dim_gp_practice",
	Patient:  "dim_patient",
}

func (n TableNames) withDefaults() TableNames {
	if n.Fact == "" {
		n.Fact = DefaultTableNames.Fact
	}
	if n.Practice == "" {
		n.Practice = DefaultTableNames.Practice
	}
	if n.Patient == "" {
		n.Patient = DefaultTableNames.Patient
	}
	return n
}

var (
	factColumns = []storage.Column{
		{Name: model.ColPatientID, Type: storage.TypeText},
		{Name: model.ColPracticeKey, Type: storage.TypeText},
	}
	practiceColumns = []storage.Column{
		{Name: model.ColPracticeKey, Type: storage.TypeText},
		{Name: model.ColPracticeName, Type: storage.TypeText},
		{Name: model.ColLatitude, Type: storage.TypeReal},
		{Name: model.ColLongitude, Type: storage.TypeReal},
		{Name: model.ColPopulation, Type: storage.TypeInteger},
		{Name: model.ColScoreOverall, Type: storage.TypeReal},
		{Name: model.ColCategoryOverall, Type: storage.TypeInteger},
		{Name: model.ColRankHealth, Type: storage.TypeReal},
		{Name: model.ColCategoryHealth, Type: storage.TypeInteger},
		{Name: model.ColRankAccess, Type: storage.TypeReal},
		{Name: model.ColCategoryAccess, Type: storage.TypeInteger},
	}
	patientColumns = []storage.Column{
		{Name: model.ColPatientID, Type: storage.TypeText},
		{Name: model.ColTecOrNo, Type: storage.TypeText},
	}
)

// StarTables lays the result out as the fact table, the practice dimension
// and the patient dimension, in that order. Empty names take the defaults.
func StarTables(res StarSchemaResult, names TableNames) []storage.Table {
	names = names.withDefaults()

	fact := storage.Table{Name: names.Fact, Columns: factColumns, Key: []string{model.ColPatientID}}
	fact.Rows = make([][]any, len(res.Facts))
	for i, f := range res.Facts {
		fact.Rows[i] = []any{string(f.PatientID), string(f.PracticeKey)}
	}

	prac := storage.Table{Name: names.Practice, Columns: practiceColumns, Key: []string{model.ColPracticeKey}}
	prac.Rows = make([][]any, len(res.Practices))
	for i, p := range res.Practices {
		prac.Rows[i] = []any{
			string(p.Key), p.Name, p.Latitude, p.Longitude, p.Population,
			p.Overall.Score, p.Overall.Category,
			p.Health.Score, p.Health.Category,
			p.Access.Score, p.Access.Category,
		}
	}

	pat := storage.Table{Name: names.Patient, Columns: patientColumns, Key: []string{model.ColPatientID}}
	pat.Rows = make([][]any, len(res.Patients))
	for i, p := range res.Patients {
		pat.Rows[i] = []any{string(p.PatientID), p.TecOrNo}
	}

	return []storage.Table{fact, prac, pat}
}

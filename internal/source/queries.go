package source

import (
	"fmt"
	"strings"

	"gpetl/internal/model"
	"gpetl/internal/storage/sqlsink"
)

// practiceColumns are the gp_prac attributes carried into documents.
var practiceColumns = []string{
	model.ColPracticeName,
	model.ColLatitude,
	model.ColLongitude,
	model.ColPopulation,
	model.ColScoreOverall,
	model.ColCategoryOverall,
	model.ColRankHealth,
	model.ColCategoryHealth,
	model.ColRankAccess,
	model.ColCategoryAccess,
}

// DefaultQueries returns the built-in named queries with identifiers quoted
// for d. The three table scans feed the star schema; patient_documents
// pre-joins them for the document pipeline.
func DefaultQueries(d sqlsink.Dialect) map[string]string {
	scan := func(table string) string { return "SELECT * FROM " + d.Ident(table) }
	return map[string]string{
		QueryPatients:         scan(QueryPatients),
		QueryPractices:        scan(QueryPractices),
		QueryTECStatus:        scan(QueryTECStatus),
		QueryPatientDocuments: patientDocumentsQuery(d),
	}
}

func patientDocumentsQuery(d sqlsink.Dialect) string {
	col := func(alias, name string) string { return alias + "." + d.Ident(name) }

	sel := []string{
		col("p", model.ColPatientID),
		col("p", model.ColPracticeKey),
		col("p", model.ColTECKey),
	}
	for _, c := range practiceColumns {
		sel = append(sel, col("g", c))
	}
	sel = append(sel, col("t", model.ColTecOrNo))

	return fmt.Sprintf("SELECT %s FROM %s p JOIN %s g ON %s = %s JOIN %s t ON %s = %s",
		strings.Join(sel, ", "),
		d.Ident(QueryPatients),
		d.Ident(QueryPractices), col("g", model.ColPracticeKey), col("p", model.ColPracticeKey),
		d.Ident(QueryTECStatus), col("t", model.ColTECKey), col("p", model.ColTECKey),
	)
}

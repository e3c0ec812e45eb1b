// Package inspect samples the source queries and reports the columns they
// actually return. The operational schema is discovered rather than
// declared, so this is the quickest way to see a renamed or retyped column
// before a run decodes it.
package inspect

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"gpetl/internal/model"
	"gpetl/internal/records"
	"gpetl/internal/source"
	"gpetl/internal/storage"
)

// DefaultLimit is the number of rows sampled per query.
const DefaultLimit = 100

// Column describes one sampled column.
type Column struct {
	Name    string
	Type    storage.ColumnType
	Nulls   int
	Example string
}

// Report is the result of sampling one query.
type Report struct {
	Query   string
	Rows    int
	Columns []Column
	// Missing lists expected columns absent from the sample.
	Missing []string
}

// Expected are the columns each built-in query must return.
var Expected = map[string][]string{
	source.QueryPatients:  {model.ColPatientID, model.ColPracticeKey, model.ColTECKey},
	source.QueryPractices: practiceColumns,
	source.QueryTECStatus: {model.ColTECKey, model.ColTecOrNo},
	source.QueryPatientDocuments: append([]string{model.ColPatientID, model.ColTECKey, model.ColTecOrNo},
		practiceColumns...),
}

var practiceColumns = []string{
	model.ColPracticeKey, model.ColPracticeName, model.ColLatitude, model.ColLongitude,
	model.ColPopulation, model.ColScoreOverall, model.ColCategoryOverall,
	model.ColRankHealth, model.ColCategoryHealth, model.ColRankAccess, model.ColCategoryAccess,
}

// Queries are inspected in this order by All.
var Queries = []string{
	source.QueryPatients,
	source.QueryPractices,
	source.QueryTECStatus,
	source.QueryPatientDocuments,
}

// All inspects every built-in query, stopping at the first failure.
func All(ctx context.Context, src source.Reader, limit int) ([]Report, error) {
	out := make([]Report, 0, len(Queries))
	for _, q := range Queries {
		r, err := Query(ctx, src, q, limit)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Query samples up to limit rows of name. A non-positive limit uses
// DefaultLimit.
func Query(ctx context.Context, src source.Reader, name string, limit int) (Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rep := Report{Query: name}
	values := map[string][]any{}
	for rec, err := range src.Query(ctx, name) {
		if err != nil {
			return Report{}, err
		}
		for k, v := range rec {
			values[k] = append(values[k], v)
		}
		rep.Rows++
		if rep.Rows >= limit {
			break
		}
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, n := range names {
		rep.Columns = append(rep.Columns, describe(n, values[n]))
	}

	if rep.Rows > 0 {
		for _, want := range Expected[name] {
			if !hasColumn(names, want) {
				rep.Missing = append(rep.Missing, want)
			}
		}
	}
	return rep, nil
}

func hasColumn(names []string, want string) bool {
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return true
		}
	}
	return false
}

func describe(name string, vals []any) Column {
	c := Column{Name: name}
	var seen []string
	fractional := false
	for _, v := range vals {
		if v == nil {
			c.Nulls++
			continue
		}
		switch v.(type) {
		case float32, float64:
			fractional = true
		}
		s := records.Text(v)
		if c.Example == "" {
			c.Example = s
		}
		seen = append(seen, s)
	}
	c.Type = inferType(seen, fractional)
	return c
}

// inferType picks the narrowest type every non-empty value satisfies.
// All-empty columns are text; fractional rules out integer for columns the
// driver already returned as floats.
func inferType(vals []string, fractional bool) storage.ColumnType {
	nonEmpty := 0
	allInt, allNum := true, true
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allNum = false
			}
		}
	}
	switch {
	case nonEmpty == 0:
		return storage.TypeText
	case allInt && !fractional:
		return storage.TypeInteger
	case allNum:
		return storage.TypeReal
	}
	return storage.TypeText
}

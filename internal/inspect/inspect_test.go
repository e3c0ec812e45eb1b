package inspect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpetl/internal/model"
	"gpetl/internal/records"
	"gpetl/internal/source"
	"gpetl/internal/storage"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		vals       []string
		fractional bool
		want       storage.ColumnType
	}{
		{nil, false, storage.TypeText},
		{[]string{"", " "}, false, storage.TypeText},
		{[]string{"1", "-20", ""}, false, storage.TypeInteger},
		{[]string{"1", "2"}, true, storage.TypeReal},
		{[]string{"1", "2.5", "3e2"}, false, storage.TypeReal},
		{[]string{"1", "TEC"}, false, storage.TypeText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferType(tt.vals, tt.fractional), "%v", tt.vals)
	}
}

func TestQueryDescribesColumns(t *testing.T) {
	src := &source.Memory{Tables: map[string][]records.Record{
		source.QueryTECStatus: {
			{model.ColTECKey: int64(1), model.ColTecOrNo: "TEC"},
			{model.ColTECKey: int64(2), model.ColTecOrNo: nil},
		},
	}}
	rep, err := Query(context.Background(), src, source.QueryTECStatus, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Rows)
	assert.Empty(t, rep.Missing)
	assert.Equal(t, []Column{
		{Name: model.ColTECKey, Type: storage.TypeInteger, Example: "1"},
		{Name: model.ColTecOrNo, Type: storage.TypeText, Nulls: 1, Example: "TEC"},
	}, rep.Columns)
}

func TestQueryReportsMissingColumnsCaseInsensitively(t *testing.T) {
	src := &source.Memory{Tables: map[string][]records.Record{
		source.QueryPatients: {
			{"patient_id": int64(1), "Registered_gp_Practice_key": "A"},
		},
	}}
	rep, err := Query(context.Background(), src, source.QueryPatients, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{model.ColTECKey}, rep.Missing)
}

func TestQueryHonoursLimit(t *testing.T) {
	recs := make([]records.Record, 10)
	for i := range recs {
		recs[i] = records.Record{model.ColTECKey: float64(i)}
	}
	src := &source.Memory{Tables: map[string][]records.Record{source.QueryTECStatus: recs}}

	rep, err := Query(context.Background(), src, source.QueryTECStatus, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Rows)
	assert.Equal(t, storage.TypeReal, rep.Columns[0].Type)
}

func TestAllStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	src := &source.Memory{
		Tables: map[string][]records.Record{source.QueryPatients: {}},
		Errors: map[string]error{source.QueryPractices: boom},
	}
	reps, err := All(context.Background(), src, 5)
	require.ErrorIs(t, err, boom)
	require.Len(t, reps, 1)
	assert.Equal(t, source.QueryPatients, reps[0].Query)
	assert.Zero(t, reps[0].Rows)
	assert.Empty(t, reps[0].Missing)
}

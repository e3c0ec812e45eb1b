package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpetl/internal/model"
	"gpetl/internal/records"
)

const fixtureDDL = `
CREATE TABLE pat_info (Patient_ID INTEGER, Registered_GP_Practice_key TEXT, TEC_or_No_Key INTEGER);
CREATE TABLE gp_prac (
	Registered_GP_Practice_key TEXT, Registered_GP_Practice TEXT,
	GPS_Coordinates_lat REAL, GPS_Coordinates_long REAL, GP_Population_2024 INTEGER,
	GP_area_deprevity_score_overall REAL, Deprevity_catagory_overall INTEGER,
	GP_area_deprivity_rank_health REAL, Deprevity_catagory_health INTEGER,
	GP_area_deprivity_rank_access_to_services REAL, Deprevity_catagory_access INTEGER);
CREATE TABLE tec_no_key (TEC_or_No_Key INTEGER, Tec_or_No TEXT);
INSERT INTO pat_info VALUES (1, 'A', 1), (2, 'A', 2), (3, 'B', 1), (4, 'Z', 1);
INSERT INTO gp_prac VALUES
	('A', 'Alpha Surgery', 55.9, -3.2, 1200, 10.5, 2, 3, 1, 4, 2),
	('B', 'Beta Practice', 56.1, -3.9, 800, 30.0, 4, 5, 3, 6, 4);
INSERT INTO tec_no_key VALUES (1, 'TEC'), (2, 'No');
`

func openFixture(t *testing.T) *SQLReader {
	t.Helper()
	ctx := context.Background()
	r, err := Open(ctx, Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "oltp.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	_, err = r.db.ExecContext(ctx, fixtureDDL)
	require.NoError(t, err)
	return r
}

func TestSQLReaderScansTables(t *testing.T) {
	r := openFixture(t)
	recs, err := records.Collect(r.Query(context.Background(), QueryPatients))
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, int64(1), recs[0][model.ColPatientID])
	assert.Equal(t, "A", recs[0][model.ColPracticeKey])
}

func TestSQLReaderPatientDocumentsJoin(t *testing.T) {
	r := openFixture(t)
	recs, err := records.Collect(r.Query(context.Background(), QueryPatientDocuments))
	require.NoError(t, err)
	// patient 4 points at a missing practice and is dropped by the join
	require.Len(t, recs, 3)

	rows, err := model.DecodeJoinedRows(recs)
	require.NoError(t, err)
	byID := map[model.Key]model.JoinedRow{}
	for _, row := range rows {
		byID[row.Patient.ID] = row
	}
	assert.Equal(t, "Beta Practice", byID["3"].Practice.Name)
	assert.Equal(t, "No", byID["2"].TEC.Value)
}

func TestSQLReaderIsRestartable(t *testing.T) {
	r := openFixture(t)
	seq := r.Query(context.Background(), QueryTECStatus)
	first, err := records.Collect(seq)
	require.NoError(t, err)
	second, err := records.Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSQLReaderUnknownQuery(t *testing.T) {
	r := openFixture(t)
	_, err := records.Collect(r.Query(context.Background(), "nope"))
	require.ErrorIs(t, err, ErrUnknownQuery)
}

func TestSQLReaderQueryFailureIsNotPartial(t *testing.T) {
	ctx := context.Background()
	r, err := Open(ctx, Config{
		Kind:    "sqlite",
		DSN:     filepath.Join(t.TempDir(), "oltp.db"),
		Queries: map[string]string{QueryPatients: "SELECT * FROM missing_table"},
	})
	require.NoError(t, err)
	defer r.Close()

	recs, err := records.Collect(r.Query(ctx, QueryPatients))
	require.Error(t, err)
	assert.Nil(t, recs)
}

func TestSQLReaderOverrides(t *testing.T) {
	r := openFixture(t)
	r2 := NewSQLReader(r.db, "sqlite", map[string]string{
		QueryPatients: "SELECT Patient_ID FROM pat_info WHERE Patient_ID > 2",
	})
	recs, err := records.Collect(r2.Query(context.Background(), QueryPatients))
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	q, ok := r2.SQL(QueryPractices)
	require.True(t, ok)
	assert.Equal(t, `SELECT * FROM "gp_prac"`, q)
}

func TestDriverName(t *testing.T) {
	d, err := DriverName("postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d)

	_, err = DriverName("oracle")
	assert.ErrorContains(t, err, `unknown kind "oracle"`)
}

func TestMemoryReader(t *testing.T) {
	m := &Memory{Tables: map[string][]records.Record{QueryTECStatus: {{"TEC_or_No_Key": "1"}}}}
	recs, err := records.Collect(m.Query(context.Background(), QueryTECStatus))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = records.Collect(m.Query(context.Background(), QueryPatients))
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

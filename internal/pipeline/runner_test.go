package pipeline

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpetl/internal/config"
	"gpetl/internal/docstore"
	_ "gpetl/internal/docstore/badger"
	"gpetl/internal/report"
	"gpetl/internal/source"
	"gpetl/internal/storage"
	_ "gpetl/internal/storage/sqlite"
)

const oltpDDL = `
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

func configReport(dir string) config.ReportConfig {
	return config.ReportConfig{
		XLSX: filepath.Join(dir, "out", "report.xlsx"),
		PDF:  filepath.Join(dir, "out", "report.pdf"),
	}
}

func seedOLTP(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(oltpDDL)
	require.NoError(t, err)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	oltpPath := filepath.Join(dir, "oltp.db")
	seedOLTP(t, oltpPath)

	c := config.Default()
	c.Source = config.SourceConfig{Kind: "sqlite", DSN: oltpPath}
	c.OLAP.Kind = "sqlite"
	c.OLAP.DSN = filepath.Join(dir, "olap.db")
	c.Documents.Kind = "badger"
	c.Documents.Path = ""
	c.Report = configReport(dir)
	c.Report.Categories = []int64{1, 2, 3, 4, 5}
	return c
}

func TestRunnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(testConfig(t))

	olap, err := r.OLAP(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), olap.Written["fact_pat_gp"])
	assert.Equal(t, int64(2), olap.Written["dim_gp_practice"])
	assert.Equal(t, int64(4), olap.Written["dim_patient"])

	docs, err := r.Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), docs.Written)

	sum, err := r.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Observations)
	c2, _ := sum.Category(2)
	c4, _ := sum.Category(4)
	assert.Equal(t, report.Of(0.5), c2.Rate)
	assert.Equal(t, report.Of(1), c4.Rate)
	assert.Equal(t, report.Of(0.75), sum.MeanCategoryRate)
	assert.Equal(t, report.Of(17), sum.Averages.All)
	assert.Equal(t, report.Of(20.25), sum.Averages.Subscribers)
	assert.Equal(t, report.Of(10.5), sum.Averages.NonSubscribers)

	// Reading the star schema back matches aggregating it in memory.
	want := report.Aggregate(report.FromStarSchema(olap.Star), report.Options{Categories: r.Config.Report.Categories})
	assert.Equal(t, want, sum)
}

func TestRunnerSourceUnavailableNeverOpensSink(t *testing.T) {
	c := testConfig(t)
	opened := false
	r := &Runner{Config: c, Openers: Openers{
		Source: func(context.Context, source.Config) (source.Reader, error) { return nil, errBoom },
		Repository: func(context.Context, storage.Config) (storage.Repository, error) {
			opened = true
			return &fakeRepo{}, nil
		},
	}}

	_, err := r.OLAP(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.False(t, opened)
}

func TestRunnerSinkOpenFailure(t *testing.T) {
	r := &Runner{Config: testConfig(t), Openers: Openers{
		Source: func(context.Context, source.Config) (source.Reader, error) { return oltp(), nil },
		Documents: func(context.Context, docstore.Config) (docstore.Sink, error) {
			return nil, errBoom
		},
	}}
	_, err := r.Documents(context.Background())
	require.ErrorIs(t, err, ErrSinkUnavailable)
	require.ErrorIs(t, err, errBoom)
}

func TestRunnerPassesConfigThrough(t *testing.T) {
	c := testConfig(t)
	c.OLAP.Strategy = "upsert"
	c.OLAP.BatchSize = 7
	repo := &fakeRepo{}
	var got storage.Config
	r := &Runner{Config: c, Openers: Openers{
		Source: func(context.Context, source.Config) (source.Reader, error) { return oltp(), nil },
		Repository: func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
			got = cfg
			return repo, nil
		},
	}}

	_, err := r.OLAP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.Config{Kind: "sqlite", DSN: c.OLAP.DSN, BatchSize: 7}, got)
	assert.True(t, repo.closed)
}

func TestRunnerRejectsBadStrategy(t *testing.T) {
	c := testConfig(t)
	c.OLAP.Strategy = "merge"
	_, err := NewRunner(c).OLAP(context.Background())
	require.ErrorIs(t, err, storage.ErrUnsupportedStrategy)
}

func TestRunnerReportQueryFollowsTableNames(t *testing.T) {
	c := testConfig(t)
	c.OLAP.Tables = config.TableNames{Fact: "f", Practice: "g", Patient: "p"}
	var got source.Config
	r := &Runner{Config: c, Openers: Openers{
		Source: func(_ context.Context, sc source.Config) (source.Reader, error) {
			got = sc
			return nil, errBoom
		},
	}}
	_, err := r.Report(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, "sqlite", got.Kind)
	assert.Contains(t, got.Queries[report.QueryObservations], `FROM "f" f JOIN "g" g`)
}

func TestRunnerInspect(t *testing.T) {
	reps, err := NewRunner(testConfig(t)).Inspect(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, reps, 4)
	for _, rep := range reps {
		assert.Empty(t, rep.Missing, rep.Query)
		assert.LessOrEqual(t, rep.Rows, 2, rep.Query)
	}
}

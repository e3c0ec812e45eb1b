package pipeline

import (
	"context"
	"maps"
	"strings"

	"gpetl/internal/config"
	"gpetl/internal/docstore"
	"gpetl/internal/inspect"
	"gpetl/internal/logging"
	"gpetl/internal/report"
	"gpetl/internal/report/render"
	"gpetl/internal/source"
	"gpetl/internal/storage"
	"gpetl/internal/storage/sqlsink"
	"gpetl/internal/transform"
)

// Openers build the I/O ends of a run. Tests replace them with fakes.
type Openers struct {
	Source     func(ctx context.Context, cfg source.Config) (source.Reader, error)
	Repository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	Documents  func(ctx context.Context, cfg docstore.Config) (docstore.Sink, error)
}

// DefaultOpeners use the registered backends. The storage and docstore
// backends must be linked in with their all packages.
func DefaultOpeners() Openers {
	return Openers{
		Source: func(ctx context.Context, cfg source.Config) (source.Reader, error) {
			return source.Open(ctx, cfg)
		},
		Repository: storage.New,
		Documents:  docstore.New,
	}
}

// Runner builds and runs pipelines from a Config.
type Runner struct {
	Config  config.Config
	Openers Openers
}

// NewRunner returns a Runner over the default backends.
func NewRunner(cfg config.Config) *Runner {
	return &Runner{Config: cfg, Openers: DefaultOpeners()}
}

func tableNames(c config.Config) transform.TableNames {
	return transform.TableNames{
		Fact:     c.OLAP.Tables.Fact,
		Practice: c.OLAP.Tables.Practice,
		Patient:  c.OLAP.Tables.Patient,
	}
}

func (r *Runner) openSource(ctx context.Context, sc config.SourceConfig) (source.Reader, error) {
	src, err := r.Openers.Source(ctx, source.Config{Kind: sc.Kind, DSN: sc.DSN, Queries: sc.Queries})
	if err != nil {
		return nil, sourceErr("open "+sc.Kind, err)
	}
	return src, nil
}

// OLAP runs the star-schema load. The source is opened before the sink so
// an unreachable source never touches the analytical store.
func (r *Runner) OLAP(ctx context.Context) (OLAPResult, error) {
	ctx = logging.WithRun(ctx, NameOLAP)
	c := r.Config

	strategy, err := storage.ParseStrategy(c.OLAP.Strategy)
	if err != nil {
		return OLAPResult{}, err
	}
	src, err := r.openSource(ctx, c.Source)
	if err != nil {
		return OLAPResult{}, err
	}
	defer src.Close()

	repo, err := r.Openers.Repository(ctx, storage.Config{Kind: c.OLAP.Kind, DSN: c.OLAP.DSN, BatchSize: c.OLAP.BatchSize})
	if err != nil {
		return OLAPResult{}, sinkErr("open "+c.OLAP.Kind, err)
	}
	defer repo.Close()

	return OLAP{Source: src, Sink: repo, Strategy: strategy, Tables: tableNames(c)}.Run(ctx)
}

// Documents runs the patient document load.
func (r *Runner) Documents(ctx context.Context) (DocumentsResult, error) {
	ctx = logging.WithRun(ctx, NameDocuments)
	c := r.Config.Documents

	strategy, err := storage.ParseStrategy(c.Strategy)
	if err != nil {
		return DocumentsResult{}, err
	}
	policy, err := transform.ParseConflictPolicy(c.ConflictPolicy)
	if err != nil {
		return DocumentsResult{}, err
	}
	src, err := r.openSource(ctx, r.Config.Source)
	if err != nil {
		return DocumentsResult{}, err
	}
	defer src.Close()

	sink, err := r.Openers.Documents(ctx, docstore.Config{Kind: c.Kind, URI: c.URI, Database: c.Database, Path: c.Path})
	if err != nil {
		return DocumentsResult{}, sinkErr("open "+c.Kind, err)
	}
	defer func() {
		if err := sink.Close(context.WithoutCancel(ctx)); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("close document sink")
		}
	}()

	return Documents{
		Source:     src,
		Sink:       sink,
		Collection: c.Collection,
		Strategy:   strategy,
		Policy:     policy,
	}.Run(ctx)
}

// Report aggregates the analytical store and renders the configured
// outputs.
func (r *Runner) Report(ctx context.Context) (report.Summary, error) {
	ctx = logging.WithRun(ctx, NameReport)
	c := r.Config

	sc := c.ReportSource()
	if _, ok := sc.Queries[report.QueryObservations]; !ok {
		d, known := sqlsink.ForKind(strings.ToLower(sc.Kind))
		if !known {
			d = sqlsink.SQLite
		}
		q := make(map[string]string, len(sc.Queries)+1)
		maps.Copy(q, sc.Queries)
		q[report.QueryObservations] = report.ObservationsQuery(d, tableNames(c))
		sc.Queries = q
	}
	src, err := r.openSource(ctx, sc)
	if err != nil {
		return report.Summary{}, err
	}
	defer src.Close()

	return Report{Source: src, Options: report.Options{Categories: c.Report.Categories}, Outputs: Outputs(c.Report)}.Run(ctx)
}

// Outputs lists the renderers enabled by rc.
func Outputs(rc config.ReportConfig) []Output {
	var out []Output
	if rc.XLSX != "" {
		out = append(out, Output{Renderer: render.XLSX{}, Path: rc.XLSX})
	}
	if rc.PDF != "" {
		out = append(out, Output{Renderer: render.PDF{}, Path: rc.PDF})
	}
	return out
}

// Inspect samples every built-in source query.
func (r *Runner) Inspect(ctx context.Context, limit int) ([]inspect.Report, error) {
	src, err := r.openSource(ctx, r.Config.Source)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	reps, err := inspect.All(ctx, src, limit)
	if err != nil {
		return reps, sourceErr("inspect", err)
	}
	return reps, nil
}

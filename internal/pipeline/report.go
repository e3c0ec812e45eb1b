package pipeline

import (
	"context"
	"errors"

	"gpetl/internal/logging"
	"gpetl/internal/metrics"
	"gpetl/internal/report"
	"gpetl/internal/report/render"
	"gpetl/internal/source"
)

// Output pairs a renderer with its destination file.
type Output struct {
	Renderer render.Renderer
	Path     string
}

// Report reads the star schema back, aggregates it and renders every
// output.
type Report struct {
	Source  source.Reader
	Options report.Options
	Outputs []Output
}

// Run returns the summary even when an output fails to render.
func (p Report) Run(ctx context.Context) (report.Summary, error) {
	var (
		obs []report.Observation
		sum report.Summary
	)

	err := runStage(ctx, NameReport, StageExtract, func() error {
		logging.Ctx(ctx).Info().Str("query", report.QueryObservations).Msg("Extracting")
		var err error
		if obs, err = report.Read(ctx, p.Source); err != nil {
			return sourceErr("query "+report.QueryObservations, err)
		}
		metrics.RecordRows(NameReport, metrics.KindExtracted, int64(len(obs)))
		return nil
	})
	if err != nil {
		return sum, err
	}

	_ = runStage(ctx, NameReport, StageAggregate, func() error {
		sum = report.Aggregate(obs, p.Options)
		logSummary(ctx, sum)
		return nil
	})

	err = runStage(ctx, NameReport, StageRender, func() error {
		var errs []error
		for _, o := range p.Outputs {
			err := render.ToFile(ctx, o.Renderer, o.Path, sum)
			metrics.RecordTable(NameReport, o.Path, err)
			if err != nil {
				errs = append(errs, sinkErr("output "+o.Path, err))
				continue
			}
			logging.Ctx(ctx).Info().Str("format", o.Renderer.Name()).Msgf("Loaded %s", o.Path)
		}
		return errors.Join(errs...)
	})
	return sum, err
}

func logSummary(ctx context.Context, s report.Summary) {
	l := logging.Ctx(ctx)
	for _, c := range s.Categories {
		l.Info().
			Int64("category", c.Category).
			Int("total", c.Total).
			Int("subscribers", c.Subscribers).
			Str("rate", c.Rate.Percent()).
			Msg("deprivation category")
	}
	l.Info().
		Str("all", s.Averages.All.String()).
		Str("subscribers", s.Averages.Subscribers.String()).
		Str("non_subscribers", s.Averages.NonSubscribers.String()).
		Str("mean_category_rate", s.MeanCategoryRate.Percent()).
		Msgf("Aggregated %d observations", s.Observations)
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gpetl/internal/config"
	"gpetl/internal/inspect"
	"gpetl/internal/logging"
	"gpetl/internal/metrics"
	"gpetl/internal/metrics/datadog"
	"gpetl/internal/metrics/prompush"
	"gpetl/internal/pipeline"
	"gpetl/internal/report"
)

// runner is the part of pipeline.Runner the commands drive.
type runner interface {
	OLAP(ctx context.Context) (pipeline.OLAPResult, error)
	Documents(ctx context.Context) (pipeline.DocumentsResult, error)
	Report(ctx context.Context) (report.Summary, error)
	Inspect(ctx context.Context, limit int) ([]inspect.Report, error)
}

// Test seams.
var (
	loadConfig = config.Load
	newRunner  = func(cfg config.Config) runner { return pipeline.NewRunner(cfg) }
)

type app struct {
	cfgPath   string
	logLevel  string
	logFormat string
	logOutput io.Writer

	cfg   config.Config
	flush func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "etl",
		Short:         "Load GP practice and TEC data into analytical and document stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.flush != nil {
				a.flush()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default $"+config.PathEnvVar+" or ./gpetl.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level override: trace, debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format override: console or json")

	root.AddCommand(
		a.olapCmd(),
		a.documentsCmd(),
		a.reportCmd(),
		a.allCmd(),
		a.validateCmd(),
		a.inspectCmd(),
	)
	return root
}

// setup loads the config, initializes logging and installs the metrics
// backend.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.cfgPath)
	if err != nil {
		return a.fail(err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	a.cfg = cfg

	out := a.logOutput
	if out == nil {
		out = cmd.ErrOrStderr()
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: out})

	if cmd.Name() == "validate" {
		return nil
	}
	if err := config.Errors(config.ValidateConfig(cfg)); err != nil {
		return a.fail(fmt.Errorf("invalid configuration: %w", err))
	}
	flush, err := setupMetrics(cfg)
	if err != nil {
		return a.fail(err)
	}
	a.flush = flush
	return nil
}

func (a *app) fail(err error) error {
	l := logging.Logger()
	l.Error().Err(err).Msg("etl failed")
	return err
}

// setupMetrics installs the configured backend and returns its flush.
func setupMetrics(cfg config.Config) (func(), error) {
	var b metrics.Backend
	switch strings.ToLower(cfg.Metrics.Backend) {
	case "", "none":
		return func() {}, nil
	case "prometheus":
		pb, err := prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:      cfg.Metrics.DatadogAddr,
			Namespace: cfg.Metrics.Namespace,
			Tags:      append([]string{"job:" + cfg.Job}, cfg.Metrics.Tags...),
		})
		if err != nil {
			return nil, err
		}
		b = db
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", cfg.Metrics.Backend)
	}

	metrics.SetBackend(b)
	l := logging.Logger()
	l.Debug().Str("backend", cfg.Metrics.Backend).Msg("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			l := logging.Logger()
			l.Warn().Err(err).Msg("metrics flush")
		}
	}, nil
}

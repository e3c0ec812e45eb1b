package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gpetl/internal/config"
	"gpetl/internal/inspect"
)

func (a *app) olapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "olap",
		Short: "Load the star schema (fact_pat_gp, dim_gp_practice, dim_patient)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := newRunner(a.cfg).OLAP(cmd.Context())
			return a.done(err)
		},
	}
}

func (a *app) documentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "Load one nested document per patient into the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := newRunner(a.cfg).Documents(cmd.Context())
			return a.done(err)
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Aggregate the star schema and render the xlsx and pdf reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := newRunner(a.cfg).Report(cmd.Context())
			return a.done(err)
		},
	}
}

func (a *app) allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run olap and documents, then report once olap has succeeded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.done(runAll(cmd.Context(), newRunner(a.cfg), a.cfg.Runtime.Parallel))
		},
	}
}

// runAll runs every pipeline and joins their errors. A failed olap run
// skips the report, which reads what olap wrote.
func runAll(ctx context.Context, r runner, parallel bool) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) error {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
		return err
	}
	olapThenReport := func() error {
		if _, err := r.OLAP(ctx); err != nil {
			return record(fmt.Errorf("olap: %w", err))
		}
		_, err := r.Report(ctx)
		return record(wrap("report", err))
	}
	documents := func() error {
		_, err := r.Documents(ctx)
		return record(wrap("documents", err))
	}

	if !parallel {
		_ = olapThenReport()
		_ = documents()
		return errors.Join(errs...)
	}
	var g errgroup.Group
	g.Go(olapThenReport)
	g.Go(documents)
	_ = g.Wait()
	return errors.Join(errs...)
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print every issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := config.ValidateConfig(a.cfg)
			out := cmd.OutOrStdout()
			for _, iss := range issues {
				fmt.Fprintf(out, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if err := config.Errors(issues); err != nil {
				return a.fail(errors.New("configuration is invalid"))
			}
			fmt.Fprintln(out, "configuration is valid")
			return nil
		},
	}
}

func (a *app) inspectCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Sample the source queries and print the columns they return",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reps, err := newRunner(a.cfg).Inspect(cmd.Context(), limit)
			printReports(cmd, reps)
			return a.done(err)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", inspect.DefaultLimit, "rows sampled per query")
	return cmd
}

func printReports(cmd *cobra.Command, reps []inspect.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, r := range reps {
		fmt.Fprintf(w, "%s (%d rows sampled)\n", r.Query, r.Rows)
		for _, c := range r.Columns {
			fmt.Fprintf(w, "  %s\t%s\tnulls=%d\t%s\n", c.Name, c.Type, c.Nulls, c.Example)
		}
		for _, m := range r.Missing {
			fmt.Fprintf(w, "  MISSING\t%s\n", m)
		}
	}
}

func (a *app) done(err error) error {
	if err != nil {
		return a.fail(err)
	}
	return nil
}

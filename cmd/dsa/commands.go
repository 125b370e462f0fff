package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/core/ingest"
	"debt_sustainability/pkg/core/metrics"
	"debt_sustainability/pkg/core/pipeline"
	"debt_sustainability/pkg/core/report"
	"debt_sustainability/pkg/core/simulation"
	"debt_sustainability/pkg/core/store"
	"debt_sustainability/pkg/core/stress"
	"debt_sustainability/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Output file names.
const (
	fileBaseline      = "dsa_analysis_results.csv"
	fileMonteCarlo    = "monte_carlo_percentiles.csv"
	fileDecomposition = "debt_decomposition_results.csv"
	fileAffordability = "dsa_full_analysis.csv"
	fileRevenue       = "revenue_composition_gdp.csv"
	fileReportMD      = "dsa_report.md"
	fileReportHTML    = "dsa_report.html"
)

func stressFile(name string) string { return "stress_" + name + ".csv" }

// output is one table file of a run.
type output struct {
	name  string
	write func(io.Writer) error
}

func loadInput() (models.Series, error) {
	series, err := ingest.ReadTableFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inputPath, err)
	}
	logger.WithFields(logrus.Fields{"input": inputPath, "years": len(series)}).Debug("input loaded")
	return series, nil
}

func scenarios() ([]stress.Scenario, error) {
	if scenariosPath != "" {
		return stress.LoadScenarios(scenariosPath)
	}
	return cfg.Scenarios(), nil
}

func resolveSeed() uint64 {
	s, generated := cfg.ResolveSeed()
	if generated {
		logger.WithField("seed", s).Info("no seed configured, using time-based seed")
	}
	return s
}

func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

func written(cmd *cobra.Command, path string, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runBaseline(cmd *cobra.Command, args []string) error {
	series, err := loadInput()
	if err != nil {
		return err
	}
	path, err := ingest.WriteSeriesFile(outDir, fileBaseline, series)
	return written(cmd, path, err)
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	series, err := loadInput()
	if err != nil {
		return err
	}
	simCfg := cfg.Simulation()
	cal, err := simulation.CalibrateBefore(series, simCfg.Horizon[0])
	if err != nil {
		return err
	}
	s := resolveSeed()
	logger.WithFields(logrus.Fields{"paths": simCfg.NumPaths, "seed": s}).Info("simulating")
	ens, err := simulation.NewEngine(simulation.NewSeededSource(s)).Run(ctx, series, cal, simCfg)
	if err != nil {
		return err
	}
	table, err := simulation.Aggregate(ens, cfg.Percentiles)
	if err != nil {
		return err
	}
	table.WithBaseline(series)
	path, err := ingest.WriteFile(outDir, fileMonteCarlo, func(w io.Writer) error {
		return ingest.WritePercentiles(w, table)
	})
	return written(cmd, path, err)
}

func runStress(cmd *cobra.Command, args []string) error {
	series, err := loadInput()
	if err != nil {
		return err
	}
	list, err := scenarios()
	if err != nil {
		return err
	}
	results, err := stress.RunAll(series, list)
	if err != nil {
		return err
	}
	for _, res := range results {
		path, err := ingest.WriteSeriesFile(outDir, stressFile(res.Scenario.Name), res.Series)
		if err := written(cmd, path, err); err != nil {
			return err
		}
	}
	return nil
}

func runDecompose(cmd *cobra.Command, args []string) error {
	series, err := loadInput()
	if err != nil {
		return err
	}
	records, err := calc.Decompose(series)
	if err != nil {
		return err
	}
	path, err := ingest.WriteFile(outDir, fileDecomposition, func(w io.Writer) error {
		return ingest.WriteDecomposition(w, records)
	})
	return written(cmd, path, err)
}

func runAffordability(cmd *cobra.Command, args []string) error {
	series, err := loadInput()
	if err != nil {
		return err
	}
	revenue := cfg.Revenue()
	if len(revenue) == 0 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "revenue", "no revenue series in "+cfg.ConfigFile)
	}
	res, err := calc.DebtAffordability(series, revenue)
	if err != nil {
		return err
	}
	path, err := ingest.WriteFile(outDir, fileAffordability, func(w io.Writer) error {
		return ingest.WriteAffordability(w, res)
	})
	if err := written(cmd, path, err); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "peak: %.2f%% of revenue in %d\n", res.PeakRate, res.PeakYear)

	if rows := cfg.RevenueComposition(); len(rows) > 0 {
		comp, err := calc.RevenueComposition(rows, series)
		if err != nil {
			return err
		}
		path, err := ingest.WriteFile(outDir, fileRevenue, func(w io.Writer) error {
			return ingest.WriteRevenueComposition(w, comp)
		})
		return written(cmd, path, err)
	}
	return nil
}

func runFull(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	series, err := loadInput()
	if err != nil {
		return err
	}
	list, err := scenarios()
	if err != nil {
		return err
	}

	if cfg.DatabaseURL != "" {
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx, store.GetPool()); err != nil {
			return err
		}
	}

	orch := pipeline.NewOrchestrator(logger, metrics.New(prometheus.NewRegistry()))
	orch.SetRepository(store.NewRunStore(store.GetPool(), cfg.CacheDir, logger))
	run, err := orch.Execute(ctx, pipeline.Request{
		Name:               strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)),
		Baseline:           series,
		Simulation:         cfg.Simulation(),
		Percentiles:        cfg.Percentiles,
		Seed:               resolveSeed(),
		Scenarios:          list,
		Revenue:            cfg.Revenue(),
		RevenueComposition: cfg.RevenueComposition(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", run.ID)
	return writeRun(cmd, run)
}

// writeRun writes every table of run plus the Markdown and HTML report.
func writeRun(cmd *cobra.Command, run *pipeline.Run) error {
	writers := []output{
		{fileBaseline, func(w io.Writer) error { return ingest.WriteSeries(w, run.Baseline) }},
		{fileMonteCarlo, func(w io.Writer) error { return ingest.WritePercentiles(w, run.Percentiles) }},
		{fileDecomposition, func(w io.Writer) error { return ingest.WriteDecomposition(w, run.Decomposition) }},
	}
	for _, res := range run.Scenarios {
		series := res.Series
		writers = append(writers, output{stressFile(res.Scenario.Name), func(w io.Writer) error { return ingest.WriteSeries(w, series) }})
	}
	if run.Affordability != nil {
		writers = append(writers, output{fileAffordability, func(w io.Writer) error { return ingest.WriteAffordability(w, run.Affordability) }})
	}
	if len(run.RevenueComposition) > 0 {
		writers = append(writers, output{fileRevenue, func(w io.Writer) error { return ingest.WriteRevenueComposition(w, run.RevenueComposition) }})
	}

	for _, wr := range writers {
		path, err := ingest.WriteFile(outDir, wr.name, wr.write)
		if err := written(cmd, path, err); err != nil {
			return err
		}
	}

	path, err := ingest.WriteFile(outDir, fileReportMD, func(w io.Writer) error {
		_, err := io.WriteString(w, report.Markdown(run))
		return err
	})
	if err := written(cmd, path, err); err != nil {
		return err
	}
	page, err := report.HTML(run)
	if err != nil {
		return err
	}
	path, err = ingest.WriteFile(outDir, fileReportHTML, func(w io.Writer) error {
		_, err := io.WriteString(w, page)
		return err
	})
	return written(cmd, path, err)
}

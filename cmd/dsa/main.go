package main

import (
	"fmt"
	"os"
	"time"

	"debt_sustainability/pkg/core/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	inputPath string
	outDir    string
	verbose   bool
	timeout   time.Duration

	// Simulation overrides; zero keeps the configured value
	numPaths      int
	seed          uint64
	workers       int
	horizonStart  int
	horizonEnd    int
	scenariosPath string

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dsa",
	Short: "Debt sustainability analysis on a fiscal table",
	Long: `dsa projects public sector net debt from a CSV table of nominal GDP,
PSND, PSNB and debt interest.

Settings come from the environment (DSA_*), .env and config/dsa.yaml; flags
override them for a single invocation. Every command writes CSV tables to --out.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		applyFlags(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger = config.NewLogger(level, os.Stderr)
		return nil
	},
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Write the baseline table with derived ratios",
	RunE:  runBaseline,
}

var monteCarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Simulate stochastic debt paths and write the percentile table",
	Long: `Calibrates shock volatilities on the years before the horizon, simulates
DSA_NUM_PATHS paths and writes the debt-to-GDP percentiles per forecast year.`,
	RunE: runMonteCarlo,
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run deterministic stress scenarios",
	Long: `Runs the scenarios of --scenarios (JSON or Hjson), of config/dsa.yaml, or
the standard set: baseline, interest rate +1pp, nominal growth -1pp.`,
	RunE: runStress,
}

var decomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Attribute yearly debt ratio changes to primary balance, snowball and stock-flow",
	RunE:  runDecompose,
}

var affordabilityCmd = &cobra.Command{
	Use:   "affordability",
	Short: "Debt interest as a share of revenue",
	RunE:  runAffordability,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis, persist it and write every table plus a report",
	RunE:  runFull,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "i", "data/obr_data.csv", "Input fiscal table (CSV)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "out", "Output directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	for _, c := range []*cobra.Command{monteCarloCmd, runCmd} {
		c.Flags().IntVar(&numPaths, "paths", 0, "Number of simulated paths")
		c.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 = configured or time-based)")
		c.Flags().IntVar(&workers, "workers", 0, "Parallel path workers")
	}
	for _, c := range []*cobra.Command{monteCarloCmd, stressCmd, runCmd} {
		c.Flags().IntVar(&horizonStart, "horizon-start", 0, "First forecast year")
		c.Flags().IntVar(&horizonEnd, "horizon-end", 0, "Last forecast year")
	}
	for _, c := range []*cobra.Command{stressCmd, runCmd} {
		c.Flags().StringVar(&scenariosPath, "scenarios", "", "Scenario file (JSON or Hjson)")
	}

	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(monteCarloCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(affordabilityCmd)
	rootCmd.AddCommand(runCmd)
}

func applyFlags(c *config.Config) {
	if numPaths != 0 {
		c.NumPaths = numPaths
	}
	if seed != 0 {
		c.Seed = seed
	}
	if workers != 0 {
		c.Workers = workers
	}
	if horizonStart != 0 {
		c.HorizonStart = horizonStart
	}
	if horizonEnd != 0 {
		c.HorizonEnd = horizonEnd
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

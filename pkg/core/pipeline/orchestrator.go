package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/core/metrics"
	"debt_sustainability/pkg/core/simulation"
	"debt_sustainability/pkg/core/store"
	"debt_sustainability/pkg/core/stress"
	"debt_sustainability/pkg/core/validate"
	"debt_sustainability/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Repository persists finished runs.
type Repository interface {
	Save(ctx context.Context, rec store.Record) error
	Load(ctx context.Context, id string) (*store.Record, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// ValidationConfig controls the identity checks run on every produced path.
type ValidationConfig struct {
	EnableStrictValidation bool    // identity failures abort the run
	IdentityTolerance      float64 // relative, default validate.DefaultTolerance
	OutlierThresholdPct    float64 // year-over-year move flagged in the input
}

// Request is everything one analysis run needs.
type Request struct {
	Name               string               `json:"name"`
	Baseline           models.Series        `json:"baseline"`
	Simulation         simulation.Config    `json:"simulation"`
	Percentiles        []float64            `json:"percentiles"`
	Seed               uint64               `json:"seed"`
	Scenarios          []stress.Scenario    `json:"scenarios"`
	Revenue            map[int]float64      `json:"revenue,omitempty"`
	RevenueComposition []calc.RevenueShares `json:"revenue_composition,omitempty"`
}

// Run is a finished analysis.
type Run struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Seed      uint64    `json:"seed"`

	Simulation    simulation.Config           `json:"simulation"`
	Baseline      models.Series               `json:"baseline"`
	Calibration   simulation.Calibration      `json:"calibration"`
	Percentiles   *simulation.PercentileTable `json:"percentiles"`
	Scenarios     []stress.Result             `json:"scenarios"`
	Decomposition []calc.DecompositionRecord  `json:"decomposition"`

	Affordability      *calc.AffordabilityResult    `json:"affordability,omitempty"`
	RevenueComposition []calc.RevenueCompositionRow `json:"revenue_composition,omitempty"`

	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Orchestrator runs the full analysis:
// validate input -> calibrate -> Monte Carlo -> percentiles -> stress ->
// decomposition -> affordability -> persist.
type Orchestrator struct {
	repo             Repository
	log              logrus.FieldLogger
	metrics          *metrics.Metrics
	validationConfig ValidationConfig
	newSource        func(seed uint64) simulation.Source
}

// NewOrchestrator creates an orchestrator without persistence.
func NewOrchestrator(log logrus.FieldLogger, m *metrics.Metrics) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		log:     log,
		metrics: m,
		validationConfig: ValidationConfig{
			IdentityTolerance:   validate.DefaultTolerance,
			OutlierThresholdPct: 50,
		},
		newSource: func(seed uint64) simulation.Source { return simulation.NewSeededSource(seed) },
	}
}

// SetRepository enables persistence of finished runs.
func (o *Orchestrator) SetRepository(repo Repository) {
	o.repo = repo
}

// SetValidationConfig updates the validation configuration
func (o *Orchestrator) SetValidationConfig(config ValidationConfig) {
	o.validationConfig = config
}

// SetSourceFactory replaces the random source, e.g. with a fixed sequence.
func (o *Orchestrator) SetSourceFactory(f func(seed uint64) simulation.Source) {
	o.newSource = f
}

// Execute runs every stage and, with a repository set, saves the result.
// Input problems are reported as taxonomy errors before any simulation.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Run, error) {
	run, err := o.execute(ctx, req)
	switch {
	case err == nil:
		o.metrics.IncrementOutcome("ok")
	case models.IsInputError(err):
		o.metrics.IncrementOutcome("invalid")
	default:
		o.metrics.IncrementOutcome("error")
	}
	return run, err
}

func (o *Orchestrator) execute(ctx context.Context, req Request) (*Run, error) {
	start := time.Now()
	run := &Run{
		ID:         uuid.NewString(),
		Name:       req.Name,
		CreatedAt:  start.UTC(),
		Seed:       req.Seed,
		Simulation: req.Simulation,
		Baseline:   req.Baseline.Sorted(),
	}
	log := o.log.WithFields(logrus.Fields{"run_id": run.ID, "name": run.Name})

	if err := o.checkInput(run, req); err != nil {
		return nil, err
	}
	horizon := req.Simulation.Horizon
	log.WithFields(logrus.Fields{
		"years":   len(run.Baseline),
		"horizon": fmt.Sprintf("%d-%d", horizon[0], horizon[len(horizon)-1]),
		"paths":   req.Simulation.NumPaths,
		"seed":    req.Seed,
	}).Info("starting analysis")

	for _, c := range validate.ScanSeries(run.Baseline, o.validationConfig.OutlierThresholdPct) {
		w := fmt.Sprintf("%s %d: %s", c.Item, c.Year, c.Reason)
		run.Warnings = append(run.Warnings, w)
		log.WithField("stage", "input").Warn(w)
	}

	var err error
	if err = o.stage(log, "calibrate", func() error {
		run.Calibration, err = simulation.CalibrateBefore(run.Baseline, horizon[0])
		return err
	}); err != nil {
		return nil, err
	}

	if err = o.stage(log, "montecarlo", func() error {
		ens, err := simulation.NewEngine(o.newSource(req.Seed)).Run(ctx, run.Baseline, run.Calibration, req.Simulation)
		if err != nil {
			return err
		}
		o.metrics.AddPaths(req.Simulation.NumPaths)
		table, err := simulation.Aggregate(ens, req.Percentiles)
		if err != nil {
			return err
		}
		run.Percentiles = table.WithBaseline(run.Baseline)
		return nil
	}); err != nil {
		return nil, err
	}
	if v, ok := run.Percentiles.Value(horizon[len(horizon)-1], 50); ok {
		o.metrics.SetTerminalMedian(run.Name, v)
	}

	if err = o.stage(log, "stress", func() error {
		run.Scenarios, err = stress.RunAll(run.Baseline, req.Scenarios)
		if err != nil {
			return err
		}
		for _, res := range run.Scenarios {
			if res.Scenario.Target == stress.None {
				continue
			}
			report, err := validate.CheckProjectedYears(res.Series, res.Scenario.StartYear, o.validationConfig.IdentityTolerance)
			if err != nil {
				return err
			}
			if err := o.checkReport(run, log, res.Scenario.Name, report); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err = o.stage(log, "decompose", func() error {
		run.Decomposition, err = calc.Decompose(run.Baseline)
		if err != nil {
			return err
		}
		return o.checkReport(run, log, "decomposition", validate.CheckDecomposition(run.Decomposition, o.validationConfig.IdentityTolerance))
	}); err != nil {
		return nil, err
	}

	if len(req.Revenue) > 0 {
		if run.Affordability, err = calc.DebtAffordability(run.Baseline, req.Revenue); err != nil {
			return nil, err
		}
	}
	if len(req.RevenueComposition) > 0 {
		if run.RevenueComposition, err = calc.RevenueComposition(req.RevenueComposition, run.Baseline); err != nil {
			return nil, err
		}
	}

	run.Duration = time.Since(start)
	if o.repo != nil {
		if err := o.stage(log, "persist", func() error { return o.save(ctx, run) }); err != nil {
			return nil, err
		}
	}

	log.WithField("duration", run.Duration.String()).Info("analysis complete")
	return run, nil
}

// checkInput fails fast on anything the later stages would reject.
func (o *Orchestrator) checkInput(run *Run, req Request) error {
	if err := run.Baseline.Validate(); err != nil {
		return err
	}
	if err := req.Simulation.Validate(); err != nil {
		return err
	}
	if err := simulation.ValidatePercentiles(req.Percentiles); err != nil {
		return err
	}
	if len(req.Scenarios) == 0 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "scenarios", "no stress scenarios")
	}
	for _, s := range req.Scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) stage(log logrus.FieldLogger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	o.metrics.ObserveStage(name, d)
	entry := log.WithFields(logrus.Fields{"stage": name, "duration": d.String()})
	if err != nil {
		entry.WithError(err).Error("stage failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	entry.Debug("stage done")
	return nil
}

func (o *Orchestrator) checkReport(run *Run, log logrus.FieldLogger, label string, report *validate.PathReport) error {
	if report.OK() {
		return nil
	}
	err := report.Err()
	if o.validationConfig.EnableStrictValidation {
		return err
	}
	run.Warnings = append(run.Warnings, fmt.Sprintf("%s: %v", label, err))
	log.WithField("check", label).Warn(err.Error())
	return nil
}

func (o *Orchestrator) save(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	return o.repo.Save(ctx, store.Record{
		ID:        run.ID,
		Name:      run.Name,
		NumPaths:  run.Simulation.NumPaths,
		CreatedAt: run.CreatedAt,
		Data:      data,
	})
}

// Load fetches a persisted run.
func (o *Orchestrator) Load(ctx context.Context, id string) (*Run, error) {
	if o.repo == nil {
		return nil, fmt.Errorf("%w: persistence disabled", store.ErrNotFound)
	}
	rec, err := o.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(rec.Data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}
	return &run, nil
}

// List returns recent run summaries.
func (o *Orchestrator) List(ctx context.Context, limit int) ([]store.Record, error) {
	if o.repo == nil {
		return nil, nil
	}
	return o.repo.List(ctx, limit)
}

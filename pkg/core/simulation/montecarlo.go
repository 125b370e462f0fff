package simulation

import (
	"context"
	"runtime"

	"debt_sustainability/pkg/core/projection"
	"debt_sustainability/pkg/models"

	"golang.org/x/sync/errgroup"
)

// DefaultNumPaths is the production path count.
const DefaultNumPaths = 10000

// Config bounds one Monte Carlo run.
type Config struct {
	NumPaths int   `json:"num_paths" yaml:"num_paths"`
	Horizon  []int `json:"horizon" yaml:"horizon"`
	// Workers caps parallel path workers; 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// Validate checks the path count and horizon shape.
func (c Config) Validate() error {
	if c.NumPaths < 1 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "num_paths", "at least one path is required")
	}
	return projection.ValidateHorizon(c.Horizon)
}

// Ensemble is the per-year distribution of simulated debt-to-GDP ratios (%).
// Outcomes[i][p] is path p in year Years[i].
type Ensemble struct {
	Years    []int       `json:"years"`
	Outcomes [][]float64 `json:"outcomes"`
}

// Year returns the outcome vector for year, or nil.
func (e *Ensemble) Year(year int) []float64 {
	for i, y := range e.Years {
		if y == year {
			return e.Outcomes[i]
		}
	}
	return nil
}

// NumPaths is the ensemble width.
func (e *Ensemble) NumPaths() int {
	if len(e.Outcomes) == 0 {
		return 0
	}
	return len(e.Outcomes[0])
}

// Engine runs stochastic debt paths around a baseline.
type Engine struct {
	source Source
}

// NewEngine creates an engine drawing shocks from source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Run simulates cfg.NumPaths independent paths over cfg.Horizon. Each path
// starts from its own copy of the last pre-horizon baseline year and feeds
// its own projected state into the next year, so shocks compound.
//
// All inputs are checked before any path is simulated.
func (e *Engine) Run(ctx context.Context, baseline models.Series, cal Calibration, cfg Config) (*Ensemble, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if err := baseline.Validate(); err != nil {
		return nil, err
	}
	drivers, err := projection.BaselineDrivers(baseline, cfg.Horizon)
	if err != nil {
		return nil, err
	}
	anchor, _ := baseline.Find(cfg.Horizon[0] - 1)

	ens := &Ensemble{
		Years:    append([]int(nil), cfg.Horizon...),
		Outcomes: make([][]float64, len(cfg.Horizon)),
	}
	for i := range ens.Outcomes {
		ens.Outcomes[i] = make([]float64, cfg.NumPaths)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, cfg.NumPaths)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			// Worker w owns paths w, w+workers, ...; each writes only its own column.
			for p := w; p < cfg.NumPaths; p += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				path, err := SimulatePath(anchor, drivers, cal, e.source.ForPath(p))
				if err != nil {
					return err
				}
				for i, st := range path {
					ens.Outcomes[i][p] = st.DebtToGDPPercent()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ens, nil
}

// SimulatePath runs one stochastic path. For every year the shocked drivers are
//
//	g'  = g_baseline  + shock_g
//	r'  = r_baseline  + shock_r
//	pb' = pb_baseline + shock_pb
//
// and the projection step uses the path's own previous state.
func SimulatePath(anchor models.FiscalState, drivers []projection.Drivers, cal Calibration, s Sampler) (models.Series, error) {
	path := make(models.Series, 0, len(drivers))
	prior := anchor
	for _, d := range drivers {
		shock := cal.Draw(s)
		next, err := projection.ProjectDrivers(prior, projection.Drivers{
			Year:                d.Year,
			GDPGrowth:           d.GDPGrowth + shock.GDPGrowth,
			InterestRate:        d.InterestRate + shock.InterestRate,
			PrimaryBalanceRatio: d.PrimaryBalanceRatio + shock.PrimaryBalance,
		})
		if err != nil {
			return nil, err
		}
		path = append(path, next)
		prior = next
	}
	return path, nil
}

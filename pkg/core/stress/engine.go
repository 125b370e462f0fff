package stress

import (
	"debt_sustainability/pkg/core/projection"
	"debt_sustainability/pkg/models"
)

// Result is one scenario's full path: history copied from the baseline,
// shocked years re-projected.
type Result struct {
	Scenario Scenario      `json:"scenario"`
	Series   models.Series `json:"series"`
}

// Run applies one scenario to baseline. Years before StartYear are copied
// unchanged. From StartYear onward every baseline year is re-projected from
// the scenario's own previous state with the shocked drivers:
//
//	InterestRate: r = DebtInterest_t/PSND_{t-1} (baseline) + Magnitude
//	GDPGrowth:    g = GDP_t/GDP_{t-1} - 1 (baseline) + Magnitude
//
// On growth shocks with a FiscalSensitivity the primary balance becomes
//
//	PB = PB_baseline - sensitivity * (GDP_shocked - GDP_baseline) * 1000
//
// so weaker output raises borrowing. A scenario without a target returns the
// published baseline as is. The baseline is not modified.
func Run(baseline models.Series, s Scenario) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	if err := baseline.Validate(); err != nil {
		return Result{}, err
	}
	if len(baseline) == 0 || baseline[0].Year >= s.StartYear {
		return Result{}, models.NewFiscalError(models.ErrMissingBaselineYear, s.StartYear-1, "", "no baseline year before the shock start")
	}
	if s.Target == None {
		return Result{Scenario: s, Series: baseline.Clone()}, nil
	}

	shocked := baseline.Before(s.StartYear)
	years := baseline.Between(s.StartYear, baseline[len(baseline)-1].Year+1).Years()
	if len(years) == 0 {
		return Result{}, models.NewFiscalError(models.ErrMissingBaselineYear, s.StartYear, "", "no baseline rows from the shock start")
	}
	if err := projection.ValidateHorizon(years); err != nil {
		return Result{}, err
	}
	drivers, err := projection.BaselineDrivers(baseline, years)
	if err != nil {
		return Result{}, err
	}

	prior := shocked[len(shocked)-1]
	for _, d := range drivers {
		d = shockDrivers(d, s, prior, baseline)
		next, err := projection.ProjectDrivers(prior, d)
		if err != nil {
			return Result{}, err
		}
		shocked = append(shocked, next)
		prior = next
	}
	return Result{Scenario: s, Series: shocked}, nil
}

func shockDrivers(d projection.Drivers, s Scenario, prior models.FiscalState, baseline models.Series) projection.Drivers {
	switch s.Target {
	case InterestRate:
		d.InterestRate += s.Magnitude
	case GDPGrowth:
		d.GDPGrowth += s.Magnitude
		if s.FiscalSensitivity != 0 {
			base, _ := baseline.Find(d.Year)
			gdp := projection.NextGDP(prior, d.GDPGrowth)
			pb := base.PrimaryBalance() - s.FiscalSensitivity*models.GDPMillions(gdp-base.NominalGDP)
			d.PrimaryBalanceRatio = pb / models.GDPMillions(gdp)
		}
	}
	return d
}

// RunAll runs every scenario against the same baseline, in order.
func RunAll(baseline models.Series, scenarios []Scenario) ([]Result, error) {
	out := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		r, err := Run(baseline, s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

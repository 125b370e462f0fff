package projection

import (
	"math"

	"debt_sustainability/pkg/models"
)

// Project advances the fiscal identity by one year. It is the only place the
// debt recursion is written down; stress and Monte Carlo paths call it.
//
// Order of operations (fixed for reproducibility):
//  1. GDP_t        = GDP_{t-1} * (1 + g)
//  2. Interest_t   = PSND_{t-1} * r
//  3. PB_t         = pb * GDP_t (converted to millions)
//  4. PSNB_t       = PB_t + Interest_t
//  5. PSND_t       = PSND_{t-1} + PSNB_t
//
// The ratios are derived from the result, never stored.
func Project(prior models.FiscalState, gdpGrowth, interestRate, primaryBalanceRatio float64) (models.FiscalState, error) {
	if !finite(gdpGrowth, interestRate, primaryBalanceRatio) || !prior.Finite() {
		return models.FiscalState{}, models.NewFiscalError(models.ErrNumericOverflow, prior.Year+1, "", "non-finite projection input")
	}

	gdp := NextGDP(prior, gdpGrowth)
	interest := prior.NetDebt * interestRate
	primaryBalance := primaryBalanceRatio * models.GDPMillions(gdp)
	borrowing := primaryBalance + interest
	debt := prior.NetDebt + borrowing

	next := models.FiscalState{
		Year:         prior.Year + 1,
		NominalGDP:   gdp,
		NetDebt:      debt,
		NetBorrowing: borrowing,
		DebtInterest: interest,
	}
	if !next.Finite() {
		return models.FiscalState{}, models.NewFiscalError(models.ErrNumericOverflow, next.Year, "", "projection overflowed")
	}
	return next, nil
}

// ProjectDrivers is Project with a Drivers value; the drivers' year must
// follow prior.
func ProjectDrivers(prior models.FiscalState, d Drivers) (models.FiscalState, error) {
	if d.Year != prior.Year+1 {
		return models.FiscalState{}, models.NewFiscalError(models.ErrInvalidConfiguration, d.Year, "Year", "drivers do not follow the prior year")
	}
	return Project(prior, d.GDPGrowth, d.InterestRate, d.PrimaryBalanceRatio)
}

// ProjectPath chains Project from anchor through every driver year. The
// returned series holds only the projected years and shares no memory with
// anchor or drivers.
func ProjectPath(anchor models.FiscalState, drivers []Drivers) (models.Series, error) {
	path := make(models.Series, 0, len(drivers))
	prior := anchor
	for _, d := range drivers {
		next, err := ProjectDrivers(prior, d)
		if err != nil {
			return nil, err
		}
		path = append(path, next)
		prior = next
	}
	return path, nil
}

// NextGDP is step 1 of Project.
func NextGDP(prior models.FiscalState, gdpGrowth float64) float64 {
	return prior.NominalGDP * (1 + gdpGrowth)
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

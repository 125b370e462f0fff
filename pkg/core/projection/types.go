package projection

import (
	"debt_sustainability/pkg/models"
)

// Drivers are the inputs of one projection step for a target year.
type Drivers struct {
	Year                int     `json:"year"`
	GDPGrowth           float64 `json:"gdp_growth"`            // decimal
	InterestRate        float64 `json:"interest_rate"`         // decimal, on prior-year PSND
	PrimaryBalanceRatio float64 `json:"primary_balance_ratio"` // fraction of GDP
}

// BaselineDrivers reads the unshocked drivers for each year out of a
// baseline series:
//
//	g_t  = GDP_t / GDP_{t-1} - 1
//	r_t  = DebtInterest_t / PSND_{t-1}
//	pb_t = PrimaryBalance_t / GDP_t
//
// Every year and its predecessor must be present in the baseline.
func BaselineDrivers(baseline models.Series, years []int) ([]Drivers, error) {
	out := make([]Drivers, 0, len(years))
	for _, year := range years {
		cur, ok := baseline.Find(year)
		if !ok {
			return nil, models.NewFiscalError(models.ErrMissingBaselineYear, year, "", "no baseline row for forecast year")
		}
		prev, ok := baseline.Find(year - 1)
		if !ok {
			return nil, models.NewFiscalError(models.ErrMissingBaselineYear, year-1, "", "no baseline row for prior year")
		}
		if prev.NominalGDP == 0 {
			return nil, models.NewFiscalError(models.ErrDivisionByZero, prev.Year, "Nominal GDP", "prior-year GDP is zero")
		}
		if prev.NetDebt == 0 {
			return nil, models.NewFiscalError(models.ErrDivisionByZero, prev.Year, "PSND", "prior-year net debt is zero")
		}
		if cur.NominalGDP == 0 {
			return nil, models.NewFiscalError(models.ErrDivisionByZero, cur.Year, "Nominal GDP", "GDP is zero")
		}
		out = append(out, Drivers{
			Year:                year,
			GDPGrowth:           cur.NominalGDP/prev.NominalGDP - 1,
			InterestRate:        cur.DebtInterest / prev.NetDebt,
			PrimaryBalanceRatio: cur.PrimaryBalanceRatio(),
		})
	}
	return out, nil
}

// Horizon returns the consecutive years from..to inclusive.
func Horizon(from, to int) []int {
	if to < from {
		return nil
	}
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}

// ValidateHorizon requires a non-empty, consecutive, increasing list of years.
func ValidateHorizon(years []int) error {
	if len(years) == 0 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "horizon", "forecast horizon is empty")
	}
	for i := 1; i < len(years); i++ {
		if years[i] != years[i-1]+1 {
			return models.NewFiscalError(models.ErrInvalidConfiguration, years[i], "horizon", "forecast years must be consecutive and increasing")
		}
	}
	return nil
}

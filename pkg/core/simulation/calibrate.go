package simulation

import (
	"math"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/models"
)

// Calibration holds the shock standard deviations estimated from history.
// Shocks are zero-mean; the means are kept for reporting only. A Calibration
// is computed once per run and shared read-only by every path.
type Calibration struct {
	GDPGrowthStd      float64 `json:"gdp_growth_std"`
	InterestRateStd   float64 `json:"interest_rate_std"`
	PrimaryBalanceStd float64 `json:"primary_balance_std"`

	GDPGrowthMean      float64 `json:"gdp_growth_mean"`
	InterestRateMean   float64 `json:"interest_rate_mean"`
	PrimaryBalanceMean float64 `json:"primary_balance_mean"`

	FromYear     int `json:"from_year"`
	ToYear       int `json:"to_year"`
	Observations int `json:"observations"`
}

// Calibrate estimates shock volatilities from a historical window, using the
// sample (n-1) standard deviation of
//
//	g_t  = GDP_t / GDP_{t-1} - 1
//	r_t  = DebtInterest_t / PSND_{t-1}
//	pb_t = PrimaryBalance_t / GDP_t (fraction)
//
// The first year only serves as a denominator. At least three consecutive
// years (two year-over-year deltas) are required.
func Calibrate(history models.Series) (Calibration, error) {
	if len(history) < 3 {
		return Calibration{}, models.NewFiscalError(models.ErrInsufficientHistory, 0, "", "calibration needs at least 3 historical years")
	}
	for i := 1; i < len(history); i++ {
		if history[i].Year != history[i-1].Year+1 {
			return Calibration{}, models.NewFiscalError(models.ErrInsufficientHistory, history[i].Year, "Year", "historical window must be consecutive years")
		}
	}

	growth, err := calc.NominalGrowth(history)
	if err != nil {
		return Calibration{}, err
	}
	rates, err := calc.ImpliedInterestRates(history)
	if err != nil {
		return Calibration{}, err
	}
	pb := calc.PrimaryBalanceRatios(history)

	cal := Calibration{
		GDPGrowthMean:      calc.Mean(growth),
		InterestRateMean:   calc.Mean(rates),
		PrimaryBalanceMean: calc.Mean(pb),
		FromYear:           history[0].Year,
		ToYear:             history[len(history)-1].Year,
		Observations:       len(growth),
	}
	if cal.GDPGrowthStd, err = calc.SampleStd(growth); err != nil {
		return Calibration{}, err
	}
	if cal.InterestRateStd, err = calc.SampleStd(rates); err != nil {
		return Calibration{}, err
	}
	if cal.PrimaryBalanceStd, err = calc.SampleStd(pb); err != nil {
		return Calibration{}, err
	}
	return cal, cal.Validate()
}

// CalibrateBefore calibrates on every year of series strictly before
// horizonStart.
func CalibrateBefore(series models.Series, horizonStart int) (Calibration, error) {
	return Calibrate(series.Before(horizonStart))
}

// Validate requires finite, non-negative standard deviations.
func (c Calibration) Validate() error {
	for _, f := range []struct {
		field string
		v     float64
	}{
		{"gdp_growth_std", c.GDPGrowthStd},
		{"interest_rate_std", c.InterestRateStd},
		{"primary_balance_std", c.PrimaryBalanceStd},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return models.NewFiscalError(models.ErrNumericOverflow, 0, f.field, "non-finite standard deviation")
		}
		if f.v < 0 {
			return models.NewFiscalError(models.ErrInvalidConfiguration, 0, f.field, "standard deviation is negative")
		}
	}
	return nil
}

// Scaled returns a copy with every standard deviation multiplied by factor.
// Scaled(0) switches the shocks off.
func (c Calibration) Scaled(factor float64) Calibration {
	c.GDPGrowthStd *= factor
	c.InterestRateStd *= factor
	c.PrimaryBalanceStd *= factor
	return c
}

// ShockDraw is one year's shocks for one path. It is consumed immediately.
type ShockDraw struct {
	GDPGrowth      float64
	InterestRate   float64
	PrimaryBalance float64
}

// Draw samples the three shocks in fixed order: growth, rate, primary balance.
func (c Calibration) Draw(s Sampler) ShockDraw {
	return ShockDraw{
		GDPGrowth:      s.Normal(c.GDPGrowthStd),
		InterestRate:   s.Normal(c.InterestRateStd),
		PrimaryBalance: s.Normal(c.PrimaryBalanceStd),
	}
}

package calc

import (
	"math"

	"debt_sustainability/pkg/models"
)

// =============================================================================
// YEAR-OVER-YEAR SERIES
// Each helper returns one value per year that has a predecessor, so the
// result is one shorter than the input.
// =============================================================================

// NominalGrowth returns g_t = GDP_t / GDP_{t-1} - 1 for t = 1..n-1.
func NominalGrowth(s models.Series) ([]float64, error) {
	out := make([]float64, 0, max(len(s)-1, 0))
	for i := 1; i < len(s); i++ {
		prior := s[i-1].NominalGDP
		if prior == 0 {
			return nil, models.NewFiscalError(models.ErrDivisionByZero, s[i-1].Year, "Nominal GDP", "prior-year GDP is zero")
		}
		out = append(out, s[i].NominalGDP/prior-1)
	}
	return out, nil
}

// ImpliedInterestRates returns r_t = DebtInterest_t / PSND_{t-1} for t = 1..n-1.
// This is an effective-rate proxy, not a contractual rate.
func ImpliedInterestRates(s models.Series) ([]float64, error) {
	out := make([]float64, 0, max(len(s)-1, 0))
	for i := 1; i < len(s); i++ {
		prior := s[i-1].NetDebt
		if prior == 0 {
			return nil, models.NewFiscalError(models.ErrDivisionByZero, s[i-1].Year, "PSND", "prior-year net debt is zero")
		}
		out = append(out, s[i].DebtInterest/prior)
	}
	return out, nil
}

// PrimaryBalanceRatios returns primaryBalance/GDP as fractions for t = 1..n-1.
func PrimaryBalanceRatios(s models.Series) []float64 {
	out := make([]float64, 0, max(len(s)-1, 0))
	for i := 1; i < len(s); i++ {
		out = append(out, s[i].PrimaryBalanceRatio())
	}
	return out
}

// =============================================================================
// MOMENTS
// =============================================================================

// Mean of xs; 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStd is the n-1 (Bessel corrected) standard deviation, matching the
// pandas default. Returns ErrInsufficientHistory for fewer than 2 values.
func SampleStd(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, models.NewFiscalError(models.ErrInsufficientHistory, 0, "", "need at least 2 observations for a standard deviation")
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), nil
}

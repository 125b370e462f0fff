package calc

import (
	"debt_sustainability/pkg/models"
)

// =============================================================================
// DEBT DYNAMICS DECOMPOSITION
// d_t - d_{t-1} = -pb_t + ((r_t - g_t) / (1 + g_t)) * d_{t-1} + sfa_t
// sfa_t is the residual, so the identity reconciles by construction.
// =============================================================================

// DecompositionRecord holds one year's terms in percentage points.
type DecompositionRecord struct {
	Year                 int     `json:"Year"`
	PrimaryBalanceEffect float64 `json:"Primary Balance Effect"`
	SnowballEffect       float64 `json:"Snowball Effect"`
	StockFlowAdjustment  float64 `json:"Stock-Flow Adjustment"`
	DebtRatioChange      float64 `json:"Debt Ratio Change"`
}

// Explained is the sum of the three components; equals DebtRatioChange.
func (r DecompositionRecord) Explained() float64 {
	return r.PrimaryBalanceEffect + r.SnowballEffect + r.StockFlowAdjustment
}

// DecomposeYear decomposes the ratio change from prev to cur.
func DecomposeYear(prev, cur models.FiscalState) (DecompositionRecord, error) {
	if prev.Year != cur.Year-1 {
		return DecompositionRecord{}, models.NewFiscalError(models.ErrMissingPredecessor, cur.Year, "Year", "no consecutive prior year")
	}
	if prev.NominalGDP == 0 {
		return DecompositionRecord{}, models.NewFiscalError(models.ErrDivisionByZero, prev.Year, "Nominal GDP", "prior-year GDP is zero")
	}
	if prev.NetDebt == 0 {
		return DecompositionRecord{}, models.NewFiscalError(models.ErrDivisionByZero, prev.Year, "PSND", "prior-year net debt is zero")
	}
	if cur.NominalGDP == 0 {
		return DecompositionRecord{}, models.NewFiscalError(models.ErrDivisionByZero, cur.Year, "Nominal GDP", "GDP is zero")
	}

	debtRatio := cur.DebtRatio()
	debtRatioLag := prev.DebtRatio()
	pbRatio := cur.PrimaryBalanceRatio()

	g := cur.NominalGDP/prev.NominalGDP - 1
	r := cur.DebtInterest / prev.NetDebt

	// Work in percentage points so the residual is taken on the reported values.
	pbEffect := -pbRatio * 100
	snowball := ((r - g) / (1 + g)) * debtRatioLag * 100
	change := (debtRatio - debtRatioLag) * 100

	return DecompositionRecord{
		Year:                 cur.Year,
		PrimaryBalanceEffect: pbEffect,
		SnowballEffect:       snowball,
		StockFlowAdjustment:  change - pbEffect - snowball,
		DebtRatioChange:      change,
	}, nil
}

// Decompose returns one record per year that has a predecessor. The first
// year never gets a record; a series shorter than two years, or with a gap,
// fails with ErrMissingPredecessor.
func Decompose(s models.Series) ([]DecompositionRecord, error) {
	if len(s) < 2 {
		year := 0
		if len(s) == 1 {
			year = s[0].Year
		}
		return nil, models.NewFiscalError(models.ErrMissingPredecessor, year, "", "decomposition needs at least two consecutive years")
	}

	records := make([]DecompositionRecord, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		rec, err := DecomposeYear(s[i-1], s[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecomposeFor decomposes a single year of the series.
func DecomposeFor(s models.Series, year int) (DecompositionRecord, error) {
	i := s.Index(year)
	if i < 0 {
		return DecompositionRecord{}, models.NewFiscalError(models.ErrMissingBaselineYear, year, "Year", "year not in series")
	}
	if i == 0 {
		return DecompositionRecord{}, models.NewFiscalError(models.ErrMissingPredecessor, year, "Year", "first year has no predecessor")
	}
	return DecomposeYear(s[i-1], s[i])
}

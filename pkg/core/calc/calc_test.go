package calc

import (
	"math"
	"testing"

	"debt_sustainability/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// UK PUBLIC FINANCES FIXTURE (OBR, millions / GDP billions)
// =============================================================================

var ukHistory = models.Series{
	{Year: 2019, NominalGDP: 2233.9, NetDebt: 1776900, NetBorrowing: 44267, DebtInterest: 36845},
	{Year: 2020, NominalGDP: 2103.5, NetDebt: 1815000, NetBorrowing: 61453, DebtInterest: 25132},
	{Year: 2021, NominalGDP: 2285.4, NetDebt: 2152900, NetBorrowing: 312942, DebtInterest: 47552},
	{Year: 2022, NominalGDP: 2526.4, NetDebt: 2381900, NetBorrowing: 121091, DebtInterest: 114670},
	{Year: 2023, NominalGDP: 2717.3, NetDebt: 2530400, NetBorrowing: 139213, DebtInterest: 111300},
}

func TestNominalGrowth(t *testing.T) {
	g, err := NominalGrowth(ukHistory)
	require.NoError(t, err)
	require.Len(t, g, 4)
	// 2020: 2103.5 / 2233.9 - 1 = -0.05837...
	assert.InDelta(t, 2103.5/2233.9-1, g[0], 1e-12)
	// 2023: 2717.3 / 2526.4 - 1 = 0.07556...
	assert.InDelta(t, 2717.3/2526.4-1, g[3], 1e-12)
}

func TestImpliedInterestRates(t *testing.T) {
	r, err := ImpliedInterestRates(ukHistory)
	require.NoError(t, err)
	require.Len(t, r, 4)
	// 2022: 114670 / 2152900 = 0.05326...
	assert.InDelta(t, 114670/2152900.0, r[2], 1e-12)
}

func TestSeriesHelpersGuardZeroDenominators(t *testing.T) {
	s := ukHistory.Clone()
	s[1].NetDebt = 0
	_, err := ImpliedInterestRates(s)
	assert.ErrorIs(t, err, models.ErrDivisionByZero)

	s = ukHistory.Clone()
	s[0].NominalGDP = 0
	_, err = NominalGrowth(s)
	var fe *models.FiscalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2019, fe.Year)
}

func TestSampleStd(t *testing.T) {
	// xs = 2, 4, 4, 4, 5, 5, 7, 9 -> mean 5, SS = 32, sample var = 32/7
	std, err := SampleStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(32.0/7.0), std, 1e-12)

	_, err = SampleStd([]float64{1})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

// =============================================================================
// DECOMPOSITION
// =============================================================================

func TestDecomposeReconciles(t *testing.T) {
	recs, err := Decompose(ukHistory)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, 2020, recs[0].Year)

	for _, r := range recs {
		assert.InDelta(t, r.DebtRatioChange, r.Explained(), 1e-9, "year %d", r.Year)
	}
}

func TestDecomposeYearTerms(t *testing.T) {
	prev, cur := ukHistory[3], ukHistory[4]
	rec, err := DecomposeYear(prev, cur)
	require.NoError(t, err)

	// d_2022 = 2381900 / 2526400, d_2023 = 2530400 / 2717300
	dPrev := 2381900 / 2526400.0
	dCur := 2530400 / 2717300.0
	g := 2717.3/2526.4 - 1
	r := 111300 / 2381900.0

	assert.InDelta(t, (dCur-dPrev)*100, rec.DebtRatioChange, 1e-9)
	// pb_2023 = (139213 - 111300) / 2717300
	assert.InDelta(t, -27913/2717300.0*100, rec.PrimaryBalanceEffect, 1e-9)
	assert.InDelta(t, (r-g)/(1+g)*dPrev*100, rec.SnowballEffect, 1e-9)
}

func TestDecomposeMissingPredecessor(t *testing.T) {
	_, err := Decompose(ukHistory[:1])
	assert.ErrorIs(t, err, models.ErrMissingPredecessor)

	_, err = DecomposeFor(ukHistory, 2019)
	var fe *models.FiscalError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, models.ErrMissingPredecessor)
	assert.Equal(t, 2019, fe.Year)

	gap := models.Series{ukHistory[0], ukHistory[2]}
	_, err = Decompose(gap)
	assert.ErrorIs(t, err, models.ErrMissingPredecessor)

	rec, err := DecomposeFor(ukHistory, 2021)
	require.NoError(t, err)
	assert.Equal(t, 2021, rec.Year)
}

// =============================================================================
// AFFORDABILITY / REVENUE
// =============================================================================

func TestDebtAffordability(t *testing.T) {
	revenue := map[int]float64{
		2021: 793539,
		2022: 919925,
		2023: 1017488,
	}
	res, err := DebtAffordability(ukHistory, revenue)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	// 2022: 114670 / 919925 = 12.465%
	assert.InDelta(t, 114670/919925.0*100, res.Rows[1].Ratio, 1e-9)
	assert.Equal(t, 2022, res.PeakYear)

	_, err = DebtAffordability(ukHistory, map[int]float64{2023: 0})
	assert.ErrorIs(t, err, models.ErrDivisionByZero)
}

func TestRevenueComposition(t *testing.T) {
	gdp := models.Series{{Year: 2024, NominalGDP: 2848.0}}
	rows := []RevenueShares{
		{Year: 2024, Personal: 424.2, Business: 346.5, Consumption: 347.6, Total: 1141.2, InBillions: true},
		{Year: 2023, Personal: 17.9, Business: 4.3, Consumption: 10.5, Total: 40.3},
	}
	out, err := RevenueComposition(rows, gdp)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 2023, out[0].Year)
	// 40.3 - 17.9 - 4.3 - 10.5 = 7.6
	assert.InDelta(t, 7.6, out[0].Other, 1e-9)

	// 1141.2 / 2848 * 100 = 40.07%
	assert.InDelta(t, 1141.2/2848.0*100, out[1].Total, 1e-9)
	assert.InDelta(t, out[1].Total-out[1].Personal-out[1].Business-out[1].Consumption, out[1].Other, 1e-12)

	_, err = RevenueComposition([]RevenueShares{{Year: 2030, InBillions: true}}, gdp)
	assert.ErrorIs(t, err, models.ErrMissingBaselineYear)
}

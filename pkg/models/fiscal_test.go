package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// UK 2023 outturn (OBR): GDP 2717.3bn, PSND 2530400m, PSNB 139213m, interest 111300m.
var uk2023 = FiscalState{Year: 2023, NominalGDP: 2717.3, NetDebt: 2530400, NetBorrowing: 139213, DebtInterest: 111300}

func TestFiscalStateDerivedColumns(t *testing.T) {
	// Primary Balance = 139213 - 111300 = 27913
	assert.InDelta(t, 27913.0, uk2023.PrimaryBalance(), 1e-9)

	// Debt-to-GDP = 2530400 / 27173 = 93.121...%
	assert.InDelta(t, 2530400/27173.0, uk2023.DebtToGDPPercent(), 1e-9)
	assert.InDelta(t, uk2023.DebtToGDPPercent()/100, uk2023.DebtRatio(), 1e-12)

	// PB-to-GDP = 27913 / 27173 = 1.0272...%
	assert.InDelta(t, 27913/27173.0, uk2023.PrimaryBalanceToGDPPercent(), 1e-9)
	assert.InDelta(t, uk2023.PrimaryBalanceToGDPPercent()/100, uk2023.PrimaryBalanceRatio(), 1e-12)

	// netBorrowing == primaryBalance + debtInterest
	assert.InDelta(t, uk2023.NetBorrowing, uk2023.PrimaryBalance()+uk2023.DebtInterest, 1e-9)
}

func TestNetDebtFromRatio(t *testing.T) {
	// 95.5% of 2848.0bn = 2719840m
	assert.InDelta(t, 2719840.0, NetDebtFromRatio(95.5, 2848.0), 1e-6)
}

func TestSeriesLookups(t *testing.T) {
	s := Series{
		{Year: 2024, NominalGDP: 2848.0},
		{Year: 2022, NominalGDP: 2526.4},
		{Year: 2023, NominalGDP: 2717.3},
	}.Sorted()

	assert.Equal(t, []int{2022, 2023, 2024}, s.Years())
	assert.Equal(t, 1, s.Index(2023))
	assert.Equal(t, -1, s.Index(2030))

	st, ok := s.Find(2024)
	require.True(t, ok)
	assert.Equal(t, 2848.0, st.NominalGDP)

	assert.Equal(t, []int{2022, 2023}, s.Before(2024).Years())
	assert.Equal(t, []int{2023}, s.Between(2023, 2024).Years())
	assert.Empty(t, s.Between(2025, 2024))
}

func TestSeriesCloneIsIndependent(t *testing.T) {
	s := Series{uk2023}
	c := s.Clone()
	c[0].NetDebt = 0
	assert.Equal(t, 2530400.0, s[0].NetDebt)
}

func TestSeriesValidate(t *testing.T) {
	t.Run("duplicate year", func(t *testing.T) {
		err := Series{uk2023, uk2023}.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})

	t.Run("zero gdp", func(t *testing.T) {
		bad := uk2023
		bad.NominalGDP = 0
		err := Series{bad}.Validate()
		var fe *FiscalError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, 2023, fe.Year)
		assert.Equal(t, "Nominal GDP", fe.Field)
		assert.ErrorIs(t, err, ErrDivisionByZero)
	})

	t.Run("valid", func(t *testing.T) {
		next := uk2023
		next.Year = 2024
		assert.NoError(t, Series{uk2023, next}.Validate())
	})
}

func TestRowRoundTripRecomputesDerived(t *testing.T) {
	row := RowOf(uk2023)
	row.PrimaryBalance = -1 // stale derived value is ignored
	got := SeriesFromRows([]Row{row})
	require.Len(t, got, 1)
	assert.Equal(t, uk2023, got[0])
	assert.InDelta(t, 27913.0, got[0].PrimaryBalance(), 1e-9)
}

func TestFiscalErrorMessage(t *testing.T) {
	err := NewFiscalError(ErrMissingBaselineYear, 2027, "PSND", "no baseline row")
	assert.Equal(t, `missing baseline year: year 2027: field "PSND": no baseline row`, err.Error())
}

package models

import (
	"math"
	"sort"
)

// Unit conversion. Money stocks and flows are millions, nominal GDP is billions.
const (
	MillionsPerBillion = 1000.0
	// PercentScale turns netDebt(mn) / GDP(bn) into a percentage: x / (gdp*10).
	PercentScale = MillionsPerBillion / 100
)

// GDPMillions converts nominal GDP in billions to millions.
func GDPMillions(gdpBillions float64) float64 {
	return gdpBillions * MillionsPerBillion
}

// NetDebtFromRatio converts a debt-to-GDP percentage into PSND in millions.
// Used when forecast debt is published as a share of GDP.
func NetDebtFromRatio(percentOfGDP, gdpBillions float64) float64 {
	return percentOfGDP / 100 * GDPMillions(gdpBillions)
}

// FiscalState is one year of the stock-flow fiscal identity.
// Primary balance and both ratios are derived, never stored.
type FiscalState struct {
	Year         int     `json:"year"`
	NominalGDP   float64 `json:"nominal_gdp"`   // billions
	NetDebt      float64 `json:"psnd"`          // millions
	NetBorrowing float64 `json:"psnb"`          // millions
	DebtInterest float64 `json:"debt_interest"` // millions
}

// PrimaryBalance = PSNB - Debt Interest (millions).
func (s FiscalState) PrimaryBalance() float64 {
	return s.NetBorrowing - s.DebtInterest
}

// DebtRatio is netDebt / GDP as a fraction.
func (s FiscalState) DebtRatio() float64 {
	return s.NetDebt / GDPMillions(s.NominalGDP)
}

// PrimaryBalanceRatio is primaryBalance / GDP as a fraction.
func (s FiscalState) PrimaryBalanceRatio() float64 {
	return s.PrimaryBalance() / GDPMillions(s.NominalGDP)
}

// DebtToGDPPercent = PSND / (Nominal GDP * 10).
func (s FiscalState) DebtToGDPPercent() float64 {
	return s.NetDebt / (s.NominalGDP * PercentScale)
}

// PrimaryBalanceToGDPPercent = Primary Balance / (Nominal GDP * 10).
func (s FiscalState) PrimaryBalanceToGDPPercent() float64 {
	return s.PrimaryBalance() / (s.NominalGDP * PercentScale)
}

// Finite reports whether every stored field is a finite number.
func (s FiscalState) Finite() bool {
	for _, v := range []float64{s.NominalGDP, s.NetDebt, s.NetBorrowing, s.DebtInterest} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// =============================================================================
// SERIES
// =============================================================================

// Series is a year-ordered sequence of fiscal states.
type Series []FiscalState

// Clone returns an independently allocated copy. FiscalState holds no
// pointers, so a slice copy is a deep copy.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Sorted returns a copy ordered by year.
func (s Series) Sorted() Series {
	out := s.Clone()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Index returns the position of year, or -1.
func (s Series) Index(year int) int {
	i := sort.Search(len(s), func(i int) bool { return s[i].Year >= year })
	if i < len(s) && s[i].Year == year {
		return i
	}
	return -1
}

// Find returns the state for year.
func (s Series) Find(year int) (FiscalState, bool) {
	if i := s.Index(year); i >= 0 {
		return s[i], true
	}
	return FiscalState{}, false
}

// Before returns the states with Year < year.
func (s Series) Before(year int) Series {
	i := sort.Search(len(s), func(i int) bool { return s[i].Year >= year })
	return s[:i].Clone()
}

// Between returns the states with from <= Year < to.
func (s Series) Between(from, to int) Series {
	lo := sort.Search(len(s), func(i int) bool { return s[i].Year >= from })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Year >= to })
	if hi < lo {
		hi = lo
	}
	return s[lo:hi].Clone()
}

// Years lists the series' years in order.
func (s Series) Years() []int {
	years := make([]int, len(s))
	for i, st := range s {
		years[i] = st.Year
	}
	return years
}

// Validate checks the input table contract: strictly increasing years,
// positive GDP and finite values.
func (s Series) Validate() error {
	for i, st := range s {
		if i > 0 && st.Year <= s[i-1].Year {
			return NewFiscalError(ErrInvalidConfiguration, st.Year, "Year", "years must be strictly increasing")
		}
		if !st.Finite() {
			return NewFiscalError(ErrNumericOverflow, st.Year, "", "non-finite value in input row")
		}
		if st.NominalGDP == 0 {
			return NewFiscalError(ErrDivisionByZero, st.Year, "Nominal GDP", "nominal GDP is zero")
		}
	}
	return nil
}

// =============================================================================
// TABLE ROWS (input/stress output contract)
// =============================================================================

// Row is the flat table form of a FiscalState including derived columns.
type Row struct {
	Year                   int     `json:"Year"`
	NominalGDP             float64 `json:"Nominal GDP"`
	PSND                   float64 `json:"PSND"`
	PSNB                   float64 `json:"PSNB"`
	DebtInterest           float64 `json:"Debt Interest"`
	PrimaryBalance         float64 `json:"Primary Balance"`
	DebtToGDPPercent       float64 `json:"Debt-to-GDP Ratio (%)"`
	PrimaryBalanceToGDPPct float64 `json:"Primary Balance-to-GDP Ratio (%)"`
}

// RowOf derives a table row from a state.
func RowOf(s FiscalState) Row {
	return Row{
		Year:                   s.Year,
		NominalGDP:             s.NominalGDP,
		PSND:                   s.NetDebt,
		PSNB:                   s.NetBorrowing,
		DebtInterest:           s.DebtInterest,
		PrimaryBalance:         s.PrimaryBalance(),
		DebtToGDPPercent:       s.DebtToGDPPercent(),
		PrimaryBalanceToGDPPct: s.PrimaryBalanceToGDPPercent(),
	}
}

// Rows converts the series to table rows.
func (s Series) Rows() []Row {
	rows := make([]Row, len(s))
	for i, st := range s {
		rows[i] = RowOf(st)
	}
	return rows
}

// State drops the derived columns; they are recomputed from the source fields.
func (r Row) State() FiscalState {
	return FiscalState{
		Year:         r.Year,
		NominalGDP:   r.NominalGDP,
		NetDebt:      r.PSND,
		NetBorrowing: r.PSNB,
		DebtInterest: r.DebtInterest,
	}
}

// SeriesFromRows builds a year-sorted series from table rows.
func SeriesFromRows(rows []Row) Series {
	s := make(Series, len(rows))
	for i, r := range rows {
		s[i] = r.State()
	}
	return s.Sorted()
}

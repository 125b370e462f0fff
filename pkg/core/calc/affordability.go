package calc

import (
	"debt_sustainability/pkg/models"
)

// AffordabilityRow is interest payments as a share of total revenue.
type AffordabilityRow struct {
	Year         int     `json:"Year"`
	DebtInterest float64 `json:"Debt Interest"` // millions
	TotalRevenue float64 `json:"Total Revenue"` // millions
	Ratio        float64 `json:"Debt Affordability Ratio (%)"`
}

// AffordabilityResult holds the table and its peak year.
type AffordabilityResult struct {
	Rows     []AffordabilityRow `json:"rows"`
	PeakYear int                `json:"peak_year"`
	PeakRate float64            `json:"peak_ratio"`
}

// DebtAffordability computes Debt Interest / Total Revenue * 100 for every
// year that has a revenue figure. revenue is year -> millions.
func DebtAffordability(s models.Series, revenue map[int]float64) (*AffordabilityResult, error) {
	res := &AffordabilityResult{Rows: make([]AffordabilityRow, 0, len(s))}
	for _, st := range s {
		rev, ok := revenue[st.Year]
		if !ok {
			continue
		}
		if rev == 0 {
			return nil, models.NewFiscalError(models.ErrDivisionByZero, st.Year, "Total Revenue", "revenue is zero")
		}
		row := AffordabilityRow{
			Year:         st.Year,
			DebtInterest: st.DebtInterest,
			TotalRevenue: rev,
			Ratio:        st.DebtInterest / rev * 100,
		}
		if len(res.Rows) == 0 || row.Ratio > res.PeakRate {
			res.PeakYear = row.Year
			res.PeakRate = row.Ratio
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

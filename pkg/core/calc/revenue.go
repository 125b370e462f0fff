package calc

import (
	"sort"

	"debt_sustainability/pkg/models"
)

// RevenueShares is one year of receipts. Historical rows are published as %
// of GDP; forecast rows arrive in currency billions (InBillions = true).
type RevenueShares struct {
	Year        int     `json:"year" yaml:"year"`
	Personal    float64 `json:"personal" yaml:"personal"`
	Business    float64 `json:"business" yaml:"business"`
	Consumption float64 `json:"consumption" yaml:"consumption"`
	Total       float64 `json:"total" yaml:"total"`
	InBillions  bool    `json:"in_billions" yaml:"in_billions"`
}

// RevenueCompositionRow is a year of receipts as % of GDP with the residual.
type RevenueCompositionRow struct {
	Year        int     `json:"Year"`
	Personal    float64 `json:"Personal Taxes"`
	Business    float64 `json:"Business Taxes"`
	Consumption float64 `json:"Consumption Taxes"`
	Total       float64 `json:"Total Receipts"`
	Other       float64 `json:"Other Revenue"`
}

// RevenueComposition normalises every input row to % of GDP and derives
// Other Revenue = Total - Personal - Business - Consumption. Rows given in
// billions need that year's nominal GDP in gdp.
func RevenueComposition(rows []RevenueShares, gdp models.Series) ([]RevenueCompositionRow, error) {
	out := make([]RevenueCompositionRow, 0, len(rows))
	for _, r := range rows {
		scale := 1.0
		if r.InBillions {
			st, ok := gdp.Find(r.Year)
			if !ok {
				return nil, models.NewFiscalError(models.ErrMissingBaselineYear, r.Year, "Nominal GDP", "no GDP to convert forecast receipts")
			}
			if st.NominalGDP == 0 {
				return nil, models.NewFiscalError(models.ErrDivisionByZero, r.Year, "Nominal GDP", "GDP is zero")
			}
			scale = 100 / st.NominalGDP
		}
		row := RevenueCompositionRow{
			Year:        r.Year,
			Personal:    r.Personal * scale,
			Business:    r.Business * scale,
			Consumption: r.Consumption * scale,
			Total:       r.Total * scale,
		}
		row.Other = row.Total - row.Personal - row.Business - row.Consumption
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

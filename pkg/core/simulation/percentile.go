package simulation

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"debt_sustainability/pkg/models"
)

// DefaultPercentiles are the fan-chart bands.
var DefaultPercentiles = []float64{5, 25, 50, 75, 95}

// PercentileRow is one forecast year of a PercentileTable. Values are
// debt-to-GDP ratios in percent, ordered like the table's Percentiles.
type PercentileRow struct {
	Year     int       `json:"year"`
	Values   []float64 `json:"values"`
	Baseline *float64  `json:"baseline,omitempty"`
}

// PercentileTable is the reduced Monte Carlo output.
type PercentileTable struct {
	Percentiles []float64       `json:"percentiles"`
	Rows        []PercentileRow `json:"rows"`
}

// Quantile estimates the p-th percentile (0..100) of xs with linear
// interpolation between closest ranks (Hyndman-Fan type 7, numpy "linear"):
//
//	h = (n-1) * p/100
//	Q = x[floor(h)] + (h - floor(h)) * (x[floor(h)+1] - x[floor(h)])
//
// xs must be sorted ascending and non-empty.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// ValidatePercentiles requires a non-empty list of values in [0, 100].
func ValidatePercentiles(ps []float64) error {
	if len(ps) == 0 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "percentiles", "no percentiles requested")
	}
	for _, p := range ps {
		if math.IsNaN(p) || p < 0 || p > 100 {
			return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "percentiles", fmt.Sprintf("percentile %v outside [0, 100]", p))
		}
	}
	return nil
}

// Aggregate reduces each year of the ensemble to the requested percentiles.
// The ensemble is not modified.
func Aggregate(ens *Ensemble, percentiles []float64) (*PercentileTable, error) {
	if err := ValidatePercentiles(percentiles); err != nil {
		return nil, err
	}
	if ens == nil || len(ens.Years) == 0 || ens.NumPaths() == 0 {
		return nil, models.NewFiscalError(models.ErrInvalidConfiguration, 0, "ensemble", "empty ensemble")
	}

	table := &PercentileTable{
		Percentiles: slices.Clone(percentiles),
		Rows:        make([]PercentileRow, len(ens.Years)),
	}
	for i, year := range ens.Years {
		sorted := slices.Clone(ens.Outcomes[i])
		slices.Sort(sorted)
		row := PercentileRow{Year: year, Values: make([]float64, len(percentiles))}
		for j, p := range percentiles {
			row.Values[j] = Quantile(sorted, p)
		}
		table.Rows[i] = row
	}
	return table, nil
}

// WithBaseline attaches the deterministic baseline ratio (%) to every row
// whose year appears in baseline.
func (t *PercentileTable) WithBaseline(baseline models.Series) *PercentileTable {
	for i := range t.Rows {
		if st, ok := baseline.Find(t.Rows[i].Year); ok {
			v := st.DebtToGDPPercent()
			t.Rows[i].Baseline = &v
		}
	}
	return t
}

// Labels returns the column names, e.g. "P5", "P50", "P97.5".
func (t *PercentileTable) Labels() []string {
	out := make([]string, len(t.Percentiles))
	for i, p := range t.Percentiles {
		out[i] = Label(p)
	}
	return out
}

// Label names one percentile column.
func Label(p float64) string {
	return "P" + strconv.FormatFloat(p, 'f', -1, 64)
}

// Value returns the percentile value for year, if present.
func (t *PercentileTable) Value(year int, p float64) (float64, bool) {
	j := slices.Index(t.Percentiles, p)
	if j < 0 {
		return 0, false
	}
	for _, row := range t.Rows {
		if row.Year == year {
			return row.Values[j], true
		}
	}
	return 0, false
}

// Records flattens the table into label -> value maps keyed by year, the
// shape of the Monte Carlo output contract.
func (t *PercentileTable) Records() []map[string]float64 {
	labels := t.Labels()
	out := make([]map[string]float64, len(t.Rows))
	for i, row := range t.Rows {
		rec := map[string]float64{"Year": float64(row.Year)}
		for j, l := range labels {
			rec[l] = row.Values[j]
		}
		if row.Baseline != nil {
			rec["Baseline"] = *row.Baseline
		}
		out[i] = rec
	}
	return out
}

package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/core/simulation"
	"debt_sustainability/pkg/models"
)

// WritePercentiles writes the Monte Carlo output: Year, P5..P95 and, when
// present, the Baseline ratio.
func WritePercentiles(w io.Writer, t *simulation.PercentileTable) error {
	header := append([]string{ColYear}, t.Labels()...)
	withBaseline := len(t.Rows) > 0 && t.Rows[0].Baseline != nil
	if withBaseline {
		header = append(header, "Baseline")
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := []string{strconv.Itoa(r.Year)}
		for _, v := range r.Values {
			row = append(row, FormatFloat(v))
		}
		if withBaseline {
			b := ""
			if r.Baseline != nil {
				b = FormatFloat(*r.Baseline)
			}
			row = append(row, b)
		}
		rows = append(rows, row)
	}
	return writeCSV(w, header, rows)
}

// WriteDecomposition writes the decomposition contract in percentage points.
func WriteDecomposition(w io.Writer, records []calc.DecompositionRecord) error {
	header := []string{ColYear, "Primary Balance Effect", "Snowball Effect", "Stock-Flow Adjustment", "Debt Ratio Change"}
	rows := make([][]string, 0, len(records))
	for _, d := range records {
		rows = append(rows, []string{
			strconv.Itoa(d.Year),
			FormatFloat(d.PrimaryBalanceEffect),
			FormatFloat(d.SnowballEffect),
			FormatFloat(d.StockFlowAdjustment),
			FormatFloat(d.DebtRatioChange),
		})
	}
	return writeCSV(w, header, rows)
}

// WriteAffordability writes interest as a share of revenue.
func WriteAffordability(w io.Writer, res *calc.AffordabilityResult) error {
	header := []string{ColYear, ColDebtInterest, "Total Revenue", "Debt Affordability Ratio (%)"}
	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows, []string{
			strconv.Itoa(r.Year),
			FormatFloat(r.DebtInterest),
			FormatFloat(r.TotalRevenue),
			FormatFloat(r.Ratio),
		})
	}
	return writeCSV(w, header, rows)
}

// WriteRevenueComposition writes receipts as % of GDP.
func WriteRevenueComposition(w io.Writer, rows []calc.RevenueCompositionRow) error {
	header := []string{ColYear, "Personal Taxes", "Business Taxes", "Consumption Taxes", "Other Revenue", "Total Receipts"}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			strconv.Itoa(r.Year),
			FormatFloat(r.Personal),
			FormatFloat(r.Business),
			FormatFloat(r.Consumption),
			FormatFloat(r.Other),
			FormatFloat(r.Total),
		})
	}
	return writeCSV(w, header, out)
}

// WriteFile creates dir/name and hands it to write.
func WriteFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, f.Close()
}

// WriteSeriesFile writes one series table to dir/name.
func WriteSeriesFile(dir, name string, s models.Series) (string, error) {
	return WriteFile(dir, name, func(w io.Writer) error { return WriteSeries(w, s) })
}

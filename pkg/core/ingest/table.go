package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"debt_sustainability/pkg/models"
)

// Input contract column names.
const (
	ColYear             = "Year"
	ColNominalGDP       = "Nominal GDP"
	ColPSND             = "PSND"
	ColPSNDPercent      = "PSND (% GDP)"
	ColPSNB             = "PSNB"
	ColDebtInterest     = "Debt Interest"
	ColPrimaryBalance   = "Primary Balance"
	ColDebtRatio        = "Debt-to-GDP Ratio (%)"
	ColPrimaryBalanceTo = "Primary Balance-to-GDP Ratio (%)"
)

// SeriesHeader is the column order of every series table written.
var SeriesHeader = []string{
	ColYear, ColNominalGDP, ColPSND, ColPSNB, ColDebtInterest,
	ColPrimaryBalance, ColDebtRatio, ColPrimaryBalanceTo,
}

// ReadTable parses the fiscal input table. Required columns are Year,
// Nominal GDP, PSNB and Debt Interest plus PSND or PSND (% GDP); a blank PSND
// cell is filled from the percent column. Derived columns are ignored and
// recomputed. The result is sorted by year and validated.
func ReadTable(r io.Reader) (models.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[normalize(h)] = i
	}
	col := func(name string) int {
		if i, ok := idx[normalize(name)]; ok {
			return i
		}
		return -1
	}
	for _, name := range []string{ColYear, ColNominalGDP, ColPSNB, ColDebtInterest} {
		if col(name) < 0 {
			return nil, models.NewFiscalError(models.ErrInvalidConfiguration, 0, name, "missing required column")
		}
	}
	if col(ColPSND) < 0 && col(ColPSNDPercent) < 0 {
		return nil, models.NewFiscalError(models.ErrInvalidConfiguration, 0, ColPSND, "missing PSND or PSND (% GDP) column")
	}

	var series models.Series
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		st, err := parseRow(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		series = append(series, st)
	}

	series = series.Sorted()
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

func parseRow(rec []string, col func(string) int) (models.FiscalState, error) {
	cell := func(name string) string {
		i := col(name)
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	year, err := strconv.Atoi(cell(ColYear))
	if err != nil {
		return models.FiscalState{}, models.NewFiscalError(models.ErrInvalidConfiguration, 0, ColYear, fmt.Sprintf("bad year %q", cell(ColYear)))
	}
	num := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(cell(name), ",", ""), 64)
		if err != nil {
			return 0, models.NewFiscalError(models.ErrInvalidConfiguration, year, name, fmt.Sprintf("bad number %q", cell(name)))
		}
		return v, nil
	}

	st := models.FiscalState{Year: year}
	if st.NominalGDP, err = num(ColNominalGDP); err != nil {
		return st, err
	}
	if st.NetBorrowing, err = num(ColPSNB); err != nil {
		return st, err
	}
	if st.DebtInterest, err = num(ColDebtInterest); err != nil {
		return st, err
	}
	if cell(ColPSND) != "" {
		st.NetDebt, err = num(ColPSND)
		return st, err
	}
	if cell(ColPSNDPercent) == "" {
		return st, models.NewFiscalError(models.ErrInvalidConfiguration, year, ColPSND, "PSND and PSND (% GDP) both blank")
	}
	pct, err := num(ColPSNDPercent)
	if err != nil {
		return st, err
	}
	st.NetDebt = models.NetDebtFromRatio(pct, st.NominalGDP)
	return st, nil
}

func normalize(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// ReadTableFile opens path and calls ReadTable.
func ReadTableFile(path string) (models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

// WriteSeries writes s with the derived columns.
func WriteSeries(w io.Writer, s models.Series) error {
	rows := make([][]string, 0, len(s))
	for _, r := range s.Rows() {
		rows = append(rows, []string{
			strconv.Itoa(r.Year),
			FormatFloat(r.NominalGDP),
			FormatFloat(r.PSND),
			FormatFloat(r.PSNB),
			FormatFloat(r.DebtInterest),
			FormatFloat(r.PrimaryBalance),
			FormatFloat(r.DebtToGDPPercent),
			FormatFloat(r.PrimaryBalanceToGDPPct),
		})
	}
	return writeCSV(w, SeriesHeader, rows)
}

// FormatFloat is the shortest representation that parses back exactly.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

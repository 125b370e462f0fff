// Package report renders a finished run as Markdown and HTML.
package report

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"debt_sustainability/pkg/core/pipeline"
	"debt_sustainability/pkg/core/utils"
	"debt_sustainability/pkg/core/validate"
)

func pct(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
func pp(v float64) string  { return strconv.FormatFloat(v, 'f', 2, 64) }
func num(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) }

// Markdown renders run with one table per output.
func Markdown(run *pipeline.Run) string {
	var sb strings.Builder
	title := run.Name
	if title == "" {
		title = "Debt Sustainability Analysis"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "Run `%s`, %s. %d Monte Carlo paths, seed %d.\n\n",
		run.ID, run.CreatedAt.Format("2006-01-02 15:04 MST"), run.Simulation.NumPaths, run.Seed)

	if n := len(run.Baseline); n > 1 {
		first, last := run.Baseline[0], run.Baseline[n-1]
		fmt.Fprintf(&sb, "Debt moves from %s%% of GDP in %d to %s%% in %d; nominal GDP grows %s%% a year.\n\n",
			pct(first.DebtToGDPPercent()), first.Year, pct(last.DebtToGDPPercent()), last.Year,
			pct(validate.CalculateCAGR(first.NominalGDP, last.NominalGDP, last.Year-first.Year)))
	}

	sb.WriteString("## Baseline\n\n")
	var rows [][]string
	for _, r := range run.Baseline.Rows() {
		rows = append(rows, []string{
			strconv.Itoa(r.Year), pct(r.NominalGDP), num(r.PSND), num(r.PSNB),
			num(r.DebtInterest), num(r.PrimaryBalance), pct(r.DebtToGDPPercent), pp(r.PrimaryBalanceToGDPPct),
		})
	}
	sb.WriteString(utils.MarkdownTable([]string{
		"Year", "Nominal GDP (bn)", "PSND", "PSNB", "Debt Interest", "Primary Balance", "Debt-to-GDP (%)", "PB-to-GDP (%)",
	}, rows))

	c := run.Calibration
	sb.WriteString("\n## Shock calibration\n\n")
	fmt.Fprintf(&sb, "Sample standard deviations over %d-%d (%d observations).\n\n", c.FromYear, c.ToYear, c.Observations)
	sb.WriteString(utils.MarkdownTable([]string{"Driver", "Mean (%)", "Std (pp)"}, [][]string{
		{"Nominal GDP growth", pp(c.GDPGrowthMean * 100), pp(c.GDPGrowthStd * 100)},
		{"Implied interest rate", pp(c.InterestRateMean * 100), pp(c.InterestRateStd * 100)},
		{"Primary balance / GDP", pp(c.PrimaryBalanceMean * 100), pp(c.PrimaryBalanceStd * 100)},
	}))

	if t := run.Percentiles; t != nil {
		sb.WriteString("\n## Monte Carlo debt-to-GDP (%)\n\n")
		header := append([]string{"Year"}, t.Labels()...)
		header = append(header, "Baseline")
		rows = rows[:0]
		for _, r := range t.Rows {
			row := []string{strconv.Itoa(r.Year)}
			for _, v := range r.Values {
				row = append(row, pct(v))
			}
			b := ""
			if r.Baseline != nil {
				b = pct(*r.Baseline)
			}
			rows = append(rows, append(row, b))
		}
		sb.WriteString(utils.MarkdownTable(header, rows))
	}

	if len(run.Scenarios) > 0 {
		sb.WriteString("\n## Stress scenarios: debt-to-GDP (%)\n\n")
		header := []string{"Year"}
		for _, s := range run.Scenarios {
			header = append(header, s.Scenario.Name)
		}
		rows = rows[:0]
		for i, st := range run.Scenarios[0].Series {
			row := []string{strconv.Itoa(st.Year)}
			for _, s := range run.Scenarios {
				if i < len(s.Series) {
					row = append(row, pct(s.Series[i].DebtToGDPPercent()))
				} else {
					row = append(row, "")
				}
			}
			rows = append(rows, row)
		}
		sb.WriteString(utils.MarkdownTable(header, rows))
	}

	if len(run.Decomposition) > 0 {
		sb.WriteString("\n## Debt dynamics decomposition (pp)\n\n")
		rows = rows[:0]
		for _, d := range run.Decomposition {
			rows = append(rows, []string{
				strconv.Itoa(d.Year), pp(d.PrimaryBalanceEffect), pp(d.SnowballEffect), pp(d.StockFlowAdjustment), pp(d.DebtRatioChange),
			})
		}
		sb.WriteString(utils.MarkdownTable([]string{
			"Year", "Primary Balance Effect", "Snowball Effect", "Stock-Flow Adjustment", "Debt Ratio Change",
		}, rows))
	}

	if a := run.Affordability; a != nil && len(a.Rows) > 0 {
		sb.WriteString("\n## Debt affordability\n\n")
		fmt.Fprintf(&sb, "Interest peaks at %s%% of revenue in %d.\n\n", pp(a.PeakRate), a.PeakYear)
		rows = rows[:0]
		for _, r := range a.Rows {
			rows = append(rows, []string{strconv.Itoa(r.Year), num(r.DebtInterest), num(r.TotalRevenue), pp(r.Ratio)})
		}
		sb.WriteString(utils.MarkdownTable([]string{"Year", "Debt Interest", "Total Revenue", "Interest / Revenue (%)"}, rows))
	}

	if len(run.RevenueComposition) > 0 {
		sb.WriteString("\n## Revenue composition (% of GDP)\n\n")
		rows = rows[:0]
		for _, r := range run.RevenueComposition {
			rows = append(rows, []string{strconv.Itoa(r.Year), pp(r.Personal), pp(r.Business), pp(r.Consumption), pp(r.Other), pp(r.Total)})
		}
		sb.WriteString(utils.MarkdownTable([]string{"Year", "Personal", "Business", "Consumption", "Other", "Total"}, rows))
	}

	if len(run.Warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")
		for _, w := range run.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	return sb.String()
}

// HTML renders run as a standalone page.
func HTML(run *pipeline.Run) (string, error) {
	body, err := utils.MarkdownToHTML(Markdown(run))
	if err != nil {
		return "", err
	}
	title := run.Name
	if title == "" {
		title = "Debt Sustainability Analysis"
	}
	return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>" + html.EscapeString(title) +
		"</title></head>\n<body>\n" + body + "</body></html>\n", nil
}

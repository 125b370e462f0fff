// Package validate checks the fiscal accounting identities on any path
// (baseline, stress, simulated) and flags suspicious input rows.
// These functions can be called from tests, API handlers or the pipeline.
package validate

import (
	"fmt"
	"math"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/models"
)

// DefaultTolerance is the relative tolerance for identity checks.
const DefaultTolerance = 1e-6

// =============================================================================
// YEAR-OVER-YEAR
// =============================================================================

// CalculateYoY returns (current - prior) / prior * 100.
func CalculateYoY(current, prior float64) float64 {
	if prior == 0 {
		if current == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return (current - prior) / prior * 100
}

// CalculateCAGR = ((end / start) ^ (1/years)) - 1, as a percentage.
func CalculateCAGR(startValue, endValue float64, years int) float64 {
	if startValue <= 0 || years <= 0 {
		return 0
	}
	return (math.Pow(endValue/startValue, 1.0/float64(years)) - 1) * 100
}

// =============================================================================
// ACCOUNTING IDENTITIES
// =============================================================================

// IdentityCheck is one identity evaluated for one year.
type IdentityCheck struct {
	Year       int     `json:"year"`
	Identity   string  `json:"identity"`
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
	Difference float64 `json:"difference"`
	IsBalanced bool    `json:"is_balanced"`
	Tolerance  float64 `json:"tolerance"`
}

const (
	IdentityBorrowing      = "PSNB = Primary Balance + Debt Interest"
	IdentityAccumulation   = "PSND_t = PSND_t-1 + PSNB_t"
	IdentityReconciliation = "Change = PB Effect + Snowball + SFA"
)

func check(year int, identity string, expected, actual, relTol float64) IdentityCheck {
	diff := actual - expected
	scale := math.Max(math.Abs(expected), 1)
	return IdentityCheck{
		Year:       year,
		Identity:   identity,
		Expected:   expected,
		Actual:     actual,
		Difference: diff,
		IsBalanced: math.Abs(diff) <= relTol*scale,
		Tolerance:  relTol,
	}
}

// CheckBorrowing validates PSNB = PB + DI within relTol. PB is derived from
// PSNB, so this guards against states built outside the projector.
func CheckBorrowing(s models.FiscalState, relTol float64) IdentityCheck {
	return check(s.Year, IdentityBorrowing, s.PrimaryBalance()+s.DebtInterest, s.NetBorrowing, relTol)
}

// CheckAccumulation validates PSND_t = PSND_{t-1} + PSNB_t within relTol.
func CheckAccumulation(prior, cur models.FiscalState, relTol float64) IdentityCheck {
	return check(cur.Year, IdentityAccumulation, prior.NetDebt+cur.NetBorrowing, cur.NetDebt, relTol)
}

// PathReport collects the identity checks of one projected path.
type PathReport struct {
	Checks   []IdentityCheck `json:"checks"`
	Failures []IdentityCheck `json:"failures,omitempty"`
}

// OK reports whether every identity held.
func (r *PathReport) OK() bool { return len(r.Failures) == 0 }

// Err summarizes the first failure as a NumericOverflow error, or nil.
func (r *PathReport) Err() error {
	if r.OK() {
		return nil
	}
	f := r.Failures[0]
	return models.NewFiscalError(models.ErrNumericOverflow, f.Year, f.Identity,
		fmt.Sprintf("identity off by %.6g (%d failing checks)", f.Difference, len(r.Failures)))
}

func (r *PathReport) add(c IdentityCheck) {
	r.Checks = append(r.Checks, c)
	if !c.IsBalanced {
		r.Failures = append(r.Failures, c)
	}
}

// CheckPath verifies both identities for every projected year of path,
// chained from anchor (the last state before the path).
func CheckPath(anchor models.FiscalState, path models.Series, relTol float64) *PathReport {
	r := &PathReport{}
	prior := anchor
	for _, st := range path {
		r.add(CheckBorrowing(st, relTol))
		r.add(CheckAccumulation(prior, st, relTol))
		prior = st
	}
	return r
}

// CheckProjectedYears runs CheckPath over the years of series from
// startYear on, anchored on the year before.
func CheckProjectedYears(series models.Series, startYear int, relTol float64) (*PathReport, error) {
	anchor, ok := series.Find(startYear - 1)
	if !ok {
		return nil, models.NewFiscalError(models.ErrMissingBaselineYear, startYear-1, "", "no anchor year for identity check")
	}
	return CheckPath(anchor, series.Between(startYear, math.MaxInt), relTol), nil
}

// CheckDecomposition verifies that the three terms add up to the change.
func CheckDecomposition(records []calc.DecompositionRecord, relTol float64) *PathReport {
	r := &PathReport{}
	for _, d := range records {
		r.add(check(d.Year, IdentityReconciliation, d.DebtRatioChange, d.Explained(), relTol))
	}
	return r
}

// =============================================================================
// OUTLIER DETECTION
// =============================================================================

// OutlierCheck identifies a suspicious input value.
type OutlierCheck struct {
	Year       int     `json:"year"`
	Item       string  `json:"item"`
	Value      float64 `json:"value"`
	PriorValue float64 `json:"prior_value"`
	ChangePct  float64 `json:"change_pct"`
	IsOutlier  bool    `json:"is_outlier"`
	Reason     string  `json:"reason,omitempty"`
	Threshold  float64 `json:"threshold"`
}

// CheckForOutlier flags a value that dropped to zero or moved more than
// thresholdPct against the prior year.
func CheckForOutlier(item string, year int, current, prior, thresholdPct float64) *OutlierCheck {
	changePct := CalculateYoY(current, prior)
	c := &OutlierCheck{
		Year:       year,
		Item:       item,
		Value:      current,
		PriorValue: prior,
		ChangePct:  changePct,
		Threshold:  thresholdPct,
	}

	// likely a unit or extraction error
	if current == 0 && prior != 0 {
		c.IsOutlier = true
		c.Reason = "Value dropped to zero"
		return c
	}
	if math.Abs(changePct) > thresholdPct {
		c.IsOutlier = true
		c.Reason = fmt.Sprintf("Change of %.1f%% exceeds threshold of %.1f%%", changePct, thresholdPct)
	}
	return c
}

// ScanSeries runs CheckForOutlier on the GDP and PSND columns. Stock
// variables move slowly, so a large jump usually means mixed units (e.g. a
// PSND row in billions).
func ScanSeries(s models.Series, thresholdPct float64) []OutlierCheck {
	var out []OutlierCheck
	for i := 1; i < len(s); i++ {
		for _, c := range []*OutlierCheck{
			CheckForOutlier("Nominal GDP", s[i].Year, s[i].NominalGDP, s[i-1].NominalGDP, thresholdPct),
			CheckForOutlier("PSND", s[i].Year, s[i].NetDebt, s[i-1].NetDebt, thresholdPct),
		} {
			if c.IsOutlier {
				out = append(out, *c)
			}
		}
	}
	return out
}

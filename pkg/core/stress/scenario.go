package stress

import (
	"fmt"
	"math"
	"os"

	"debt_sustainability/pkg/core/utils"
	"debt_sustainability/pkg/models"
)

// Target selects the driver a scenario shocks.
type Target string

const (
	None         Target = ""
	InterestRate Target = "interest_rate"
	GDPGrowth    Target = "gdp_growth"
)

// DefaultFiscalSensitivity is the primary-balance response to lost output:
// 0.5% of the GDP gap.
const DefaultFiscalSensitivity = 0.005

// Scenario is one deterministic shock. Magnitude is an additive offset in
// decimal (0.01 = one percentage point) applied to every year >= StartYear.
type Scenario struct {
	Name      string  `json:"name" yaml:"name"`
	Target    Target  `json:"target" yaml:"target"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
	StartYear int     `json:"start_year" yaml:"start_year"`
	// FiscalSensitivity moves the primary balance with the GDP gap on growth
	// shocks. Zero holds the baseline primary-balance ratio.
	FiscalSensitivity float64 `json:"fiscal_sensitivity,omitempty" yaml:"fiscal_sensitivity,omitempty"`
}

// Validate checks the target and that every number is finite.
func (s Scenario) Validate() error {
	switch s.Target {
	case None, InterestRate, GDPGrowth:
	default:
		return models.NewFiscalError(models.ErrInvalidConfiguration, s.StartYear, "target", fmt.Sprintf("unknown shock target %q", s.Target))
	}
	if math.IsNaN(s.Magnitude) || math.IsInf(s.Magnitude, 0) || math.IsNaN(s.FiscalSensitivity) || math.IsInf(s.FiscalSensitivity, 0) {
		return models.NewFiscalError(models.ErrNumericOverflow, s.StartYear, "magnitude", "non-finite scenario parameter")
	}
	if s.Target == None && s.Magnitude != 0 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, s.StartYear, "target", "magnitude given without a target")
	}
	return nil
}

// Baseline is the unshocked scenario starting at startYear.
func Baseline(startYear int) Scenario {
	return Scenario{Name: "Baseline", StartYear: startYear}
}

// StandardScenarios is the published set: baseline, rates +1pp and nominal
// growth -1pp, all from startYear.
func StandardScenarios(startYear int) []Scenario {
	return []Scenario{
		Baseline(startYear),
		{Name: "Interest_Rate_Shock", Target: InterestRate, Magnitude: 0.01, StartYear: startYear},
		{Name: "GDP_Growth_Shock", Target: GDPGrowth, Magnitude: -0.01, StartYear: startYear, FiscalSensitivity: DefaultFiscalSensitivity},
	}
}

// ScenarioFile is the on-disk scenario list.
type ScenarioFile struct {
	Scenarios []Scenario `json:"scenarios"`
}

// ParseScenarios decodes a JSON or Hjson scenario list. Hand-edited files
// with trailing commas or comments are accepted.
func ParseScenarios(data string) ([]Scenario, error) {
	var f ScenarioFile
	if _, err := utils.SmartParse(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	for i, s := range f.Scenarios {
		if s.Name == "" {
			f.Scenarios[i].Name = fmt.Sprintf("scenario_%d", i+1)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i+1, err)
		}
	}
	return f.Scenarios, nil
}

// LoadScenarios reads a scenario file from disk.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return ParseScenarios(string(data))
}

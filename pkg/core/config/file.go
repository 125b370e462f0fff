package config

import (
	"fmt"
	"os"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/core/stress"

	"gopkg.in/yaml.v2"
)

// FileConfig is config/dsa.yaml. Unset simulation fields keep the
// environment's values.
type FileConfig struct {
	Simulation struct {
		NumPaths     *int      `yaml:"num_paths"`
		Seed         *uint64   `yaml:"seed"`
		Workers      *int      `yaml:"workers"`
		HorizonStart *int      `yaml:"horizon_start"`
		HorizonEnd   *int      `yaml:"horizon_end"`
		Percentiles  []float64 `yaml:"percentiles"`
	} `yaml:"simulation"`

	Scenarios []stress.Scenario `yaml:"scenarios"`

	// Revenue is total receipts per year, millions.
	Revenue map[int]float64 `yaml:"revenue"`

	RevenueComposition []calc.RevenueShares `yaml:"revenue_composition"`
}

// LoadFile parses a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, s := range fc.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%s: scenario %d: %w", path, i+1, err)
		}
	}
	return &fc, nil
}

// Apply copies the file's simulation overrides onto cfg.
func (fc *FileConfig) Apply(cfg *Config) {
	s := fc.Simulation
	if s.NumPaths != nil {
		cfg.NumPaths = *s.NumPaths
	}
	if s.Seed != nil {
		cfg.Seed = *s.Seed
	}
	if s.Workers != nil {
		cfg.Workers = *s.Workers
	}
	if s.HorizonStart != nil {
		cfg.HorizonStart = *s.HorizonStart
	}
	if s.HorizonEnd != nil {
		cfg.HorizonEnd = *s.HorizonEnd
	}
	if len(s.Percentiles) > 0 {
		cfg.Percentiles = s.Percentiles
	}
}

// Scenarios returns the file's scenarios, or the standard set starting at
// the first forecast year.
func (c *Config) Scenarios() []stress.Scenario {
	if c.file != nil && len(c.file.Scenarios) > 0 {
		return c.file.Scenarios
	}
	return stress.StandardScenarios(c.HorizonStart)
}

// Revenue returns total receipts by year, nil without a config file.
func (c *Config) Revenue() map[int]float64 {
	if c.file == nil {
		return nil
	}
	return c.file.Revenue
}

// RevenueComposition returns the receipts breakdown rows, if configured.
func (c *Config) RevenueComposition() []calc.RevenueShares {
	if c.file == nil {
		return nil
	}
	return c.file.RevenueComposition
}

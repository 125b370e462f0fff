package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"debt_sustainability/pkg/core/projection"
	"debt_sustainability/pkg/core/simulation"
	"debt_sustainability/pkg/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	APIAddr     string `env:"API_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	NumPaths     int       `env:"DSA_NUM_PATHS" envDefault:"10000"`
	Seed         uint64    `env:"DSA_SEED" envDefault:"0"`
	Workers      int       `env:"DSA_WORKERS" envDefault:"0"`
	HorizonStart int       `env:"DSA_HORIZON_START" envDefault:"2025"`
	HorizonEnd   int       `env:"DSA_HORIZON_END" envDefault:"2029"`
	Percentiles  []float64 `env:"DSA_PERCENTILES" envDefault:"5,25,50,75,95" envSeparator:","`

	CacheDir   string `env:"DSA_CACHE_DIR" envDefault:".cache/dsa/runs"`
	ConfigFile string `env:"DSA_CONFIG_FILE" envDefault:"config/dsa.yaml"`

	// file holds the optional YAML overrides; nil when no file was found.
	file *FileConfig
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads .env (if present), the environment and the YAML file named by
// DSA_CONFIG_FILE (if present), in that order of increasing precedence.
// The result is not validated; callers apply their overrides first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}

	fc, err := LoadFile(cfg.ConfigFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		cfg.file = fc
		fc.Apply(&cfg)
	}
	return &cfg, nil
}

// File returns the loaded YAML file, or nil.
func (c *Config) File() *FileConfig { return c.file }

// Horizon is the forecast years HorizonStart..HorizonEnd.
func (c *Config) Horizon() []int {
	return projection.Horizon(c.HorizonStart, c.HorizonEnd)
}

// Validate checks the simulation settings.
func (c *Config) Validate() error {
	if c.NumPaths < 1 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "DSA_NUM_PATHS", "must be at least 1")
	}
	if c.Workers < 0 {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "DSA_WORKERS", "must not be negative")
	}
	if err := projection.ValidateHorizon(c.Horizon()); err != nil {
		return err
	}
	return simulation.ValidatePercentiles(c.Percentiles)
}

// Simulation returns the Monte Carlo settings.
func (c *Config) Simulation() simulation.Config {
	return simulation.Config{NumPaths: c.NumPaths, Horizon: c.Horizon(), Workers: c.Workers}
}

// ResolveSeed returns the configured seed, or a time-based one when it is 0.
// generated reports which case applied so the caller can log the seed.
func (c *Config) ResolveSeed() (seed uint64, generated bool) {
	if c.Seed != 0 {
		return c.Seed, false
	}
	return uint64(time.Now().UnixNano()), true
}

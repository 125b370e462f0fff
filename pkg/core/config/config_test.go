package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"debt_sustainability/pkg/core/stress"
	"debt_sustainability/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DSA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, 10000, cfg.NumPaths)
	assert.Equal(t, []int{2025, 2026, 2027, 2028, 2029}, cfg.Horizon())
	assert.Equal(t, []float64{5, 25, 50, 75, 95}, cfg.Percentiles)
	assert.Nil(t, cfg.File())
	assert.Nil(t, cfg.Revenue())
	assert.Equal(t, stress.StandardScenarios(2025), cfg.Scenarios())
}

func TestLoad_EnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dsa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
simulation:
  num_paths: 250
  horizon_end: 2027
scenarios:
  - name: rates
    target: interest_rate
    magnitude: 0.02
    start_year: 2026
revenue:
  2025: 1231000
`), 0o644))
	t.Setenv("DSA_CONFIG_FILE", path)
	t.Setenv("DSA_NUM_PATHS", "500")
	t.Setenv("DSA_SEED", "7")
	t.Setenv("DSA_PERCENTILES", "10,50,90")

	cfg, err := Load()
	require.NoError(t, err)
	// file wins over env
	assert.Equal(t, 250, cfg.NumPaths)
	assert.Equal(t, []float64{10, 50, 90}, cfg.Percentiles)
	assert.Equal(t, []int{2025, 2026, 2027}, cfg.Simulation().Horizon)

	seed, generated := cfg.ResolveSeed()
	assert.Equal(t, uint64(7), seed)
	assert.False(t, generated)

	assert.Equal(t, []stress.Scenario{{Name: "rates", Target: stress.InterestRate, Magnitude: 0.02, StartYear: 2026}}, cfg.Scenarios())
	assert.Equal(t, map[int]float64{2025: 1231000}, cfg.Revenue())
}

func TestLoad_ValidationLeftToCaller(t *testing.T) {
	t.Setenv("DSA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	// Load leaves validation to the caller so overrides can repair a bad value.
	t.Setenv("DSA_NUM_PATHS", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), models.ErrInvalidConfiguration)
	cfg.NumPaths = 50
	assert.NoError(t, cfg.Validate())

	t.Setenv("DSA_NUM_PATHS", "10")
	t.Setenv("DSA_HORIZON_END", "2020")
	cfg, err = Load()
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), models.ErrInvalidConfiguration)

	t.Setenv("DSA_HORIZON_END", "2029")
	t.Setenv("DSA_NUM_PATHS", "many")
	_, err = Load()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"))
}

func TestLoadFile_RepoConfig(t *testing.T) {
	fc, err := LoadFile("../../../config/dsa.yaml")
	require.NoError(t, err)
	require.Len(t, fc.Scenarios, 3)
	assert.Equal(t, stress.GDPGrowth, fc.Scenarios[2].Target)
	assert.Equal(t, 0.005, fc.Scenarios[2].FiscalSensitivity)
	assert.Equal(t, 1095000.0, fc.Revenue[2023])
	require.Len(t, fc.RevenueComposition, 3)
	assert.True(t, fc.RevenueComposition[2].InBillions)
}

func TestLoadFile_RejectsBadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dsa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios:\n  - target: fx\n    magnitude: 0.1\n"), 0o644))
	_, err := LoadFile(path)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.WithField("run_id", "abc").Debug("hello")
	assert.Contains(t, buf.String(), `"run_id":"abc"`)

	assert.Equal(t, logrus.InfoLevel, NewLogger("loud", nil).GetLevel())
}

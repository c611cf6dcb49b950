package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "pipeline:\n  mode: dry-run\n"))
	require.NoError(t, err)

	assert.Equal(t, ModeDryRun, cfg.Pipeline.Mode)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 3, cfg.Pipeline.RetryBudget)
	assert.Equal(t, 0.20, cfg.Discovery.MinGrowthRate)
	assert.Equal(t, 0.7, cfg.Discovery.GrowthWeight)
	assert.Equal(t, 0.3, cfg.Discovery.EngagementWeight)
	assert.Equal(t, "9:16", cfg.Production.AspectRatio)
	assert.Equal(t, 5*time.Second, cfg.Production.PollInterval)
	assert.Equal(t, "private", cfg.Publishing.Visibility)
}

func TestLoadOverridesSurvive(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
pipeline:
  mode: live
  concurrency: 8
discovery:
  min_growth_rate: 0.35
  growth_weight: 0.5
  engagement_weight: 0.5
production:
  backends:
    runway:
      affinity:
        "cinematic slow": 0.9
      rate_per_minute: 10
`))
	require.NoError(t, err)

	assert.Equal(t, ModeLive, cfg.Pipeline.Mode)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, 0.35, cfg.Discovery.MinGrowthRate)
	assert.Equal(t, 0.5, cfg.Discovery.GrowthWeight)
	require.Contains(t, cfg.Production.Backends, "runway")
	assert.Equal(t, 10, cfg.Production.Backends["runway"].RatePerMinute)
	assert.Equal(t, 0.9, cfg.Production.Backends["runway"].Affinity["cinematic slow"])
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	_, err := Load(writeConfig(t, "pipeline:\n  mode: rehearsal\n"))
	assert.ErrorContains(t, err, "unknown pipeline mode")
}

func TestLoadRejectsEmptyAffinity(t *testing.T) {
	_, err := Load(writeConfig(t, `
production:
  backends:
    runway:
      rate_per_minute: 10
`))
	assert.ErrorContains(t, err, "no affinity table")
}

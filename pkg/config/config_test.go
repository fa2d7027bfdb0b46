package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.InDelta(t, 0.30, cfg.Scoring.Weights.Reversibility, 0.001)
	assert.InDelta(t, 0.35, cfg.Scoring.Weights.Precedent, 0.001)
	assert.InDelta(t, 0.35, cfg.Scoring.Weights.BlastRadius, 0.001)
	assert.InDelta(t, 0.75, cfg.Scoring.Thresholds.Act, 0.001)
	assert.InDelta(t, 0.40, cfg.Scoring.Thresholds.Deliberate, 0.001)
	assert.InDelta(t, 30.0, cfg.Precedent.DecayHalfLifeDays, 0.001)
	assert.Equal(t, 10, cfg.Audit.RubberStampThreshold)
	assert.Equal(t, time.Hour, cfg.Deliberation.UrgencyHorizon.Std())
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("partial file overrides only named fields", func(t *testing.T) {
		path := writeConfig(t, `
scoring:
  thresholds:
    act: 0.8
    deliberate: 0.5
deliberation:
  urgency_horizon: 90m
storage:
  backend: sqlite
  path: /tmp/ace.db
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.InDelta(t, 0.8, cfg.Scoring.Thresholds.Act, 0.001)
		assert.InDelta(t, 0.5, cfg.Scoring.Thresholds.Deliberate, 0.001)
		assert.Equal(t, 90*time.Minute, cfg.Deliberation.UrgencyHorizon.Std())
		assert.Equal(t, "sqlite", cfg.Storage.Backend)

		// Untouched sections keep their defaults.
		assert.InDelta(t, 0.35, cfg.Scoring.Weights.Precedent, 0.001)
		assert.Equal(t, 10, cfg.Audit.RubberStampThreshold)
	})

	t.Run("malformed yaml rejected", func(t *testing.T) {
		path := writeConfig(t, "scoring: [not a map")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad duration rejected", func(t *testing.T) {
		path := writeConfig(t, "deliberation:\n  urgency_horizon: yesterday\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		assert.Error(t, Validate(nil))
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scoring.Weights.Precedent = 0.5

		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sum to 1")
	})

	t.Run("act must exceed deliberate", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scoring.Thresholds.Act = 0.3

		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "act threshold")
	})

	t.Run("unknown storage backend", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.Backend = "redis"
		assert.Error(t, Validate(cfg))
	})

	t.Run("unknown log severity", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Severity = "loud"
		assert.Error(t, Validate(cfg))
	})

	t.Run("collects every failure", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scoring.Weights.Precedent = 2.0
		cfg.Audit.RubberStampThreshold = 0

		err := Validate(cfg)
		require.Error(t, err)
		verrs, ok := err.(ValidationErrors)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(verrs), 2)
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 252, cfg.LookbackDays)
	assert.Equal(t, 60, cfg.MinTrainingDays)
	assert.Equal(t, RebalanceMonthly, cfg.RebalanceFrequency)
	assert.Equal(t, 0.35, cfg.MaxNameWeight)
	assert.Equal(t, 0.60, cfg.MaxSectorWeight)
	assert.Equal(t, 1.5, cfg.TurnoverBudget)
	assert.Equal(t, 5.0, cfg.TransactionCostBps)
	assert.Equal(t, 5, cfg.TopKPositions)
	assert.Equal(t, 0.25, cfg.KellyCap)
	assert.Equal(t, 0.5, cfg.MinRobustness)
	assert.Equal(t, 1_000_000.0, cfg.MinAvgVolume)
	assert.Equal(t, 0.10, cfg.MaxMissingFrac)
	assert.Equal(t, 0.04, cfg.RiskFreeRate)
	assert.Equal(t, 1.0, cfg.TargetGross)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QF_LOOKBACK_DAYS", "126")
	t.Setenv("QF_KELLY_CAP", "0.10")
	t.Setenv("QF_REBALANCE_FREQUENCY", "weekly")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 126, cfg.LookbackDays)
	assert.Equal(t, 0.10, cfg.KellyCap)
	assert.Equal(t, RebalanceWeekly, cfg.RebalanceFrequency)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"non-positive lookback", func(c *Config) { c.LookbackDays = 0 }, "LookbackDays"},
		{"min training above lookback", func(c *Config) { c.MinTrainingDays = 500 }, "MinTrainingDays"},
		{"kelly cap above one", func(c *Config) { c.KellyCap = 1.5 }, "KellyCap"},
		{"negative name cap", func(c *Config) { c.MaxNameWeight = -0.1 }, "MaxNameWeight"},
		{"sector cap below name cap", func(c *Config) { c.MaxSectorWeight = 0.10 }, "MaxSectorWeight"},
		{"zero turnover budget", func(c *Config) { c.TurnoverBudget = 0 }, "TurnoverBudget"},
		{"zero top k", func(c *Config) { c.TopKPositions = 0 }, "TopKPositions"},
		{"bad frequency", func(c *Config) { c.RebalanceFrequency = "hourly" }, "RebalanceFrequency"},
		{"shrinkage out of range", func(c *Config) { c.ShrinkageDelta = 1.2 }, "ShrinkageDelta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

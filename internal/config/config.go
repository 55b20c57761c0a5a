package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/quantfolio/internal/domain"
)

// RebalanceFrequency selects the rebalance schedule granularity.
type RebalanceFrequency string

const (
	RebalanceWeekly    RebalanceFrequency = "weekly"
	RebalanceMonthly   RebalanceFrequency = "monthly"
	RebalanceQuarterly RebalanceFrequency = "quarterly"
)

// Config holds application configuration. All values are overridable via
// environment variables; defaults are documented per field.
type Config struct {
	// Signal generation
	LookbackDays    int     // QF_LOOKBACK_DAYS, default 252
	MinTrainingDays int     // QF_MIN_TRAINING_DAYS, default 60
	MinRobustness   float64 // QF_MIN_ROBUSTNESS, default 0.5

	// Safety gate
	MinAvgVolume   float64 // QF_MIN_AVG_VOLUME, default 1e6 shares
	MaxMissingFrac float64 // QF_MAX_MISSING_FRAC, default 0.10

	// Position sizing
	KellyCap       float64 // QF_KELLY_CAP, default 0.25
	RiskFreeRate   float64 // QF_RISK_FREE_RATE, default 0.04 annual
	MinKellySample int     // QF_MIN_KELLY_SAMPLE, default 20

	// Allocation
	MaxNameWeight     float64 // QF_MAX_NAME_WEIGHT, default 0.35
	MaxSectorWeight   float64 // QF_MAX_SECTOR_WEIGHT, default 0.60
	TurnoverBudget    float64 // QF_TURNOVER_BUDGET, default 1.5
	TargetGross       float64 // QF_TARGET_GROSS, default 1.0
	CorrelationTarget float64 // QF_CORRELATION_TARGET, default 0.3
	ShrinkageDelta    float64 // QF_SHRINKAGE_DELTA, default 0.2

	// Backtest
	RebalanceFrequency RebalanceFrequency // QF_REBALANCE_FREQUENCY, default monthly
	TransactionCostBps float64            // QF_TRANSACTION_COST_BPS, default 5
	TopKPositions      int                // QF_TOP_K_POSITIONS, default 5
	Workers            int                // QF_WORKERS, default NumCPU

	// Storage and logging
	HistoryDir      string // QF_HISTORY_DIR, default ./data/history
	DatabasePath    string // QF_DATABASE_PATH, default ./data/quantfolio.db
	RefreshSchedule string // QF_REFRESH_SCHEDULE, default nightly at 02:30
	LogLevel        string // LOG_LEVEL, default info
}

// Load reads configuration from environment variables and validates it.
// Validation failures are fatal: they surface before any rebalance runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LookbackDays:    getEnvAsInt("QF_LOOKBACK_DAYS", 252),
		MinTrainingDays: getEnvAsInt("QF_MIN_TRAINING_DAYS", 60),
		MinRobustness:   getEnvAsFloat("QF_MIN_ROBUSTNESS", 0.5),

		MinAvgVolume:   getEnvAsFloat("QF_MIN_AVG_VOLUME", 1_000_000),
		MaxMissingFrac: getEnvAsFloat("QF_MAX_MISSING_FRAC", 0.10),

		KellyCap:       getEnvAsFloat("QF_KELLY_CAP", 0.25),
		RiskFreeRate:   getEnvAsFloat("QF_RISK_FREE_RATE", 0.04),
		MinKellySample: getEnvAsInt("QF_MIN_KELLY_SAMPLE", 20),

		MaxNameWeight:     getEnvAsFloat("QF_MAX_NAME_WEIGHT", 0.35),
		MaxSectorWeight:   getEnvAsFloat("QF_MAX_SECTOR_WEIGHT", 0.60),
		TurnoverBudget:    getEnvAsFloat("QF_TURNOVER_BUDGET", 1.5),
		TargetGross:       getEnvAsFloat("QF_TARGET_GROSS", 1.0),
		CorrelationTarget: getEnvAsFloat("QF_CORRELATION_TARGET", 0.3),
		ShrinkageDelta:    getEnvAsFloat("QF_SHRINKAGE_DELTA", 0.2),

		RebalanceFrequency: RebalanceFrequency(getEnv("QF_REBALANCE_FREQUENCY", string(RebalanceMonthly))),
		TransactionCostBps: getEnvAsFloat("QF_TRANSACTION_COST_BPS", 5),
		TopKPositions:      getEnvAsInt("QF_TOP_K_POSITIONS", 5),
		Workers:            getEnvAsInt("QF_WORKERS", runtime.NumCPU()),

		HistoryDir:      getEnv("QF_HISTORY_DIR", "./data/history"),
		DatabasePath:    getEnv("QF_DATABASE_PATH", "./data/quantfolio.db"),
		RefreshSchedule: getEnv("QF_REFRESH_SCHEDULE", "0 30 2 * * *"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants. It returns a
// domain.ConfigurationError describing the first violation found.
func (c *Config) Validate() error {
	switch {
	case c.LookbackDays <= 0:
		return &domain.ConfigurationError{Field: "LookbackDays", Reason: "must be positive"}
	case c.MinTrainingDays <= 0:
		return &domain.ConfigurationError{Field: "MinTrainingDays", Reason: "must be positive"}
	case c.MinTrainingDays > c.LookbackDays:
		return &domain.ConfigurationError{Field: "MinTrainingDays", Reason: "cannot exceed LookbackDays"}
	case c.MinRobustness < 0 || c.MinRobustness > 1:
		return &domain.ConfigurationError{Field: "MinRobustness", Reason: "must be in [0, 1]"}
	case c.MinAvgVolume < 0:
		return &domain.ConfigurationError{Field: "MinAvgVolume", Reason: "must be non-negative"}
	case c.MaxMissingFrac < 0 || c.MaxMissingFrac >= 1:
		return &domain.ConfigurationError{Field: "MaxMissingFrac", Reason: "must be in [0, 1)"}
	case c.KellyCap <= 0 || c.KellyCap > 1:
		return &domain.ConfigurationError{Field: "KellyCap", Reason: "must be in (0, 1]"}
	case c.MinKellySample < 2:
		return &domain.ConfigurationError{Field: "MinKellySample", Reason: "must be at least 2"}
	case c.MaxNameWeight <= 0 || c.MaxNameWeight > 1:
		return &domain.ConfigurationError{Field: "MaxNameWeight", Reason: "must be in (0, 1]"}
	case c.MaxSectorWeight <= 0 || c.MaxSectorWeight > 1:
		return &domain.ConfigurationError{Field: "MaxSectorWeight", Reason: "must be in (0, 1]"}
	case c.MaxSectorWeight < c.MaxNameWeight:
		return &domain.ConfigurationError{Field: "MaxSectorWeight", Reason: "cannot be below MaxNameWeight"}
	case c.TurnoverBudget <= 0:
		return &domain.ConfigurationError{Field: "TurnoverBudget", Reason: "must be positive"}
	case c.TargetGross <= 0:
		return &domain.ConfigurationError{Field: "TargetGross", Reason: "must be positive"}
	case c.CorrelationTarget <= 0 || c.CorrelationTarget >= 1:
		return &domain.ConfigurationError{Field: "CorrelationTarget", Reason: "must be in (0, 1)"}
	case c.ShrinkageDelta < 0 || c.ShrinkageDelta > 1:
		return &domain.ConfigurationError{Field: "ShrinkageDelta", Reason: "must be in [0, 1]"}
	case c.TransactionCostBps < 0:
		return &domain.ConfigurationError{Field: "TransactionCostBps", Reason: "must be non-negative"}
	case c.TopKPositions < 1:
		return &domain.ConfigurationError{Field: "TopKPositions", Reason: "must be at least 1"}
	case c.Workers < 1:
		return &domain.ConfigurationError{Field: "Workers", Reason: "must be at least 1"}
	}

	switch c.RebalanceFrequency {
	case RebalanceWeekly, RebalanceMonthly, RebalanceQuarterly:
	default:
		return &domain.ConfigurationError{Field: "RebalanceFrequency", Reason: "must be weekly, monthly or quarterly"}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

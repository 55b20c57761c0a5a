package domain

import (
	"fmt"
	"time"
)

// DataInsufficientError signals that a training window was too short for a
// given rebalance. The rebalance is skipped; the run continues.
type DataInsufficientError struct {
	Date time.Time
	Have int
	Need int
}

func (e *DataInsufficientError) Error() string {
	return fmt.Sprintf("insufficient data at %s: have %d days, need %d", e.Date.Format("2006-01-02"), e.Have, e.Need)
}

// SafetyRejectedError signals that a ticker failed the liquidity/quality
// gate for a period. The ticker is excluded from that period only.
type SafetyRejectedError struct {
	Ticker string
	Reason string
}

func (e *SafetyRejectedError) Error() string {
	return fmt.Sprintf("safety rejected %s: %s", e.Ticker, e.Reason)
}

// OptimizationInfeasibleError signals that allocation constraints could not
// be jointly satisfied. The allocator falls back to the equal-weight
// heuristic and flags it in the constraint report.
type OptimizationInfeasibleError struct {
	Reason string
}

func (e *OptimizationInfeasibleError) Error() string {
	return fmt.Sprintf("optimization infeasible: %s", e.Reason)
}

// ConfigurationError signals invalid configuration. It is fatal at setup,
// before any rebalance runs.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

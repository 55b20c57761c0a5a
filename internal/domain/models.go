package domain

import "time"

// Regime is a discrete market-condition label inferred from trailing
// benchmark trend and volatility statistics.
type Regime string

const (
	RegimeExpansion Regime = "Expansion" // bull trend, low volatility
	RegimeParabolic Regime = "Parabolic" // bull trend, high volatility
	RegimeDeflation Regime = "Deflation" // bear trend, low volatility
	RegimeCrisis    Regime = "Crisis"    // bear trend, high volatility
)

// FactorScore is the composite per-ticker signal for a single evaluation
// date. It is computed strictly from data before AsOf and never mutated
// after creation.
type FactorScore struct {
	Ticker    string    `json:"ticker"`
	AsOf      time.Time `json:"as_of"`
	Composite float64   `json:"composite"` // 0-100

	// Factor family sub-scores, each 0-100.
	Trend         float64 `json:"trend"`
	MeanReversion float64 `json:"mean_reversion"`
	CapitalFlow   float64 `json:"capital_flow"`
	Risk          float64 `json:"risk"`

	Regime           Regime  `json:"regime"`
	RegimeConfidence float64 `json:"regime_confidence"`

	// Robustness measures score stability across sub-windows, 0-1.
	// Nil when fewer than the minimum number of sub-windows were available.
	Robustness *float64 `json:"robustness,omitempty"`

	// Flags carries data-quality annotations (e.g. "filled_gaps").
	Flags []string `json:"flags,omitempty"`
}

// KellyResult is a capped, edge-maximizing fractional position size for a
// single ticker, recomputed each rebalance from the trailing window only.
type KellyResult struct {
	Ticker     string  `json:"ticker"`
	Fraction   float64 `json:"fraction"` // clipped to [0, kelly_cap]
	Edge       float64 `json:"edge"`     // mean daily excess return
	Variance   float64 `json:"variance"` // variance of daily excess returns
	SampleSize int     `json:"sample_size"`
	Fallback   bool    `json:"fallback"` // true when sized from the composite score
}

// ConstraintBinding records how a single constraint interacted with an
// allocation: whether it bound, and how much slack remained.
type ConstraintBinding struct {
	Constraint string  `json:"constraint"` // "name_cap", "sector_cap", "long_only", "turnover_budget"
	Scope      string  `json:"scope"`      // ticker, sector name, or "portfolio"
	Limit      float64 `json:"limit"`
	Value      float64 `json:"value"`
	Slack      float64 `json:"slack"` // Limit - Value; negative means the raw value exceeded the limit
	Bound      bool    `json:"bound"`
}

// AllocationResult is a constrained portfolio weight vector for one
// rebalance date, in force until the next rebalance.
type AllocationResult struct {
	Weights map[string]float64 `json:"weights"` // non-negative, sum in {0} or ~1
	Method  string             `json:"method"`

	// Feasible is false when fewer than two eligible tickers were available
	// and no allocation was produced.
	Feasible bool `json:"feasible"`

	// FallbackApplied is true when constraints were jointly infeasible and
	// the allocator degraded to the equal-weight heuristic.
	FallbackApplied bool `json:"fallback_applied"`

	Report   []ConstraintBinding `json:"constraint_report"`
	Warnings []string            `json:"warnings,omitempty"`
}

// WeightSum returns the total allocated weight.
func (a AllocationResult) WeightSum() float64 {
	var sum float64
	for _, w := range a.Weights {
		sum += w
	}
	return sum
}

// Turnover returns the sum of absolute weight changes against a previous
// weight vector. Tickers absent from either side count at weight zero.
func (a AllocationResult) Turnover(prev map[string]float64) float64 {
	var turnover float64
	seen := make(map[string]bool, len(a.Weights))
	for ticker, w := range a.Weights {
		turnover += abs(w - prev[ticker])
		seen[ticker] = true
	}
	for ticker, w := range prev {
		if !seen[ticker] {
			turnover += abs(w)
		}
	}
	return turnover
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

package backtest

import (
	"time"

	"github.com/aristath/quantfolio/internal/domain"
)

// State tracks run progress through the walk-forward state machine.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateTraining    State = "TRAINING"
	StateAllocating  State = "ALLOCATING"
	StateHolding     State = "HOLDING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// RebalanceSnapshot records one rebalance date's full decision: the scores
// it saw, the sizing and allocation it produced, and any skip or fallback.
// Scores are retained for the IC-decay diagnostic.
type RebalanceSnapshot struct {
	Date   time.Time
	Index  int // position in the panel's date index
	Regime domain.Regime

	Scores   map[string]domain.FactorScore
	Kelly    map[string]domain.KellyResult
	Eligible []string
	Rejected map[string]string // ticker -> safety rejection reason

	Allocation domain.AllocationResult
	Turnover   float64

	// Skipped rebalances carry forward prior weights; SkipReason explains
	// why (insufficient training window, zero eligible tickers). Trained
	// is true when the training window was sufficient, whether or not an
	// allocation resulted.
	Skipped    bool
	Trained    bool
	SkipReason string
}

// Metrics aggregates run-level performance statistics.
type Metrics struct {
	AnnualReturn      float64 `json:"annual_return"`
	AnnualVolatility  float64 `json:"annual_volatility"`
	Sharpe            float64 `json:"sharpe"`
	Sortino           float64 `json:"sortino"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	Calmar            float64 `json:"calmar"`
	Alpha             float64 `json:"alpha"` // vs benchmark, annualized
	InformationRatio  float64 `json:"information_ratio"`
	TotalReturn       float64 `json:"total_return"`
	TotalTurnover     float64 `json:"total_turnover"`
	TotalCost         float64 `json:"total_cost"`
	Rebalances        int     `json:"rebalances"`
	SkippedRebalances int     `json:"skipped_rebalances"`
}

// Result is the immutable output of one walk-forward run.
type Result struct {
	RunID string
	State State

	Snapshots []RebalanceSnapshot

	// Daily series aligned with Dates, covering the whole panel.
	Dates         []time.Time
	GrossReturns  []float64
	NetReturns    []float64
	Equity        []float64
	Drawdown      []float64
	DailyTurnover []float64

	Metrics Metrics

	// MonthlyReturns maps "2006-01" to that month's compounded net return.
	MonthlyReturns map[string]float64

	// Diagnostics logs every skip, fallback and recovery for audit.
	Diagnostics []string
}

// FinalWeights returns the weights in force at the end of the run.
func (r *Result) FinalWeights() map[string]float64 {
	for i := len(r.Snapshots) - 1; i >= 0; i-- {
		if !r.Snapshots[i].Skipped && r.Snapshots[i].Allocation.Feasible {
			return r.Snapshots[i].Allocation.Weights
		}
	}
	return map[string]float64{}
}

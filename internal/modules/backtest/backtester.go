// Package backtest orchestrates the walk-forward simulation: repeated,
// strictly causal scoring, safety gating, sizing and allocation across a
// rebalance schedule, with realized returns and transaction costs applied
// under a one-day decision lag.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/config"
	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/allocation"
	"github.com/aristath/quantfolio/internal/modules/safety"
	"github.com/aristath/quantfolio/internal/modules/scoring"
	"github.com/aristath/quantfolio/internal/modules/sizing"
	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// Config holds the backtester's run parameters.
type Config struct {
	LookbackDays    int
	MinTrainingDays int
	Frequency       config.RebalanceFrequency
	TopK            int
	CostBps         float64
	TargetGross     float64
	TurnoverBudget  float64
	Workers         int
}

// Backtester runs walk-forward simulations over an immutable panel.
type Backtester struct {
	cfg       Config
	engine    *scoring.Engine
	filter    *safety.Filter
	sizer     *sizing.Sizer
	allocator allocation.Allocator
	log       zerolog.Logger
}

// New creates a walk-forward backtester. All collaborators are injected;
// the backtester holds no hidden state between runs.
func New(cfg Config, engine *scoring.Engine, filter *safety.Filter, sizer *sizing.Sizer, allocator allocation.Allocator, log zerolog.Logger) (*Backtester, error) {
	if cfg.LookbackDays <= 0 || cfg.MinTrainingDays <= 0 {
		return nil, &domain.ConfigurationError{Field: "LookbackDays/MinTrainingDays", Reason: "must be positive"}
	}
	if cfg.TopK < 1 {
		return nil, &domain.ConfigurationError{Field: "TopK", Reason: "must be at least 1"}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.TargetGross <= 0 {
		cfg.TargetGross = 1.0
	}
	return &Backtester{
		cfg:       cfg,
		engine:    engine,
		filter:    filter,
		sizer:     sizer,
		allocator: allocator,
		log:       log.With().Str("component", "backtester").Logger(),
	}, nil
}

// Run executes the full walk-forward simulation. Per-rebalance decisions
// are computed on a bounded worker pool; each reads only its own trailing
// window of the immutable panel. Decisions are merged in date order, which
// is the only ordering barrier. Cancellation is cooperative: it is checked
// between iterations, never mid-iteration.
func (b *Backtester) Run(ctx context.Context, p *panel.Panel) (*Result, error) {
	result := &Result{
		RunID: uuid.New().String(),
		State: StateInitialized,
	}

	schedule := scheduleIndices(p, b.cfg.Frequency)
	if len(schedule) == 0 {
		result.State = StateFailed
		return result, fmt.Errorf("no rebalance dates in panel")
	}

	b.log.Info().
		Str("run_id", result.RunID).
		Int("days", p.Len()).
		Int("rebalances", len(schedule)).
		Int("workers", b.cfg.Workers).
		Msg("Starting walk-forward run")

	snapshots := make([]RebalanceSnapshot, len(schedule))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < b.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				snapshots[i] = b.decideOne(p, schedule[i])
			}
		}()
	}

feed:
	for i := range schedule {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		result.State = StateFailed
		return result, err
	}

	// Merge in date order and apply returns.
	result.Snapshots = snapshots
	b.applyReturns(p, result)

	trained := 0
	for i := range result.Snapshots {
		snap := &result.Snapshots[i]
		if snap.Trained {
			trained++
		}
		if snap.Skipped {
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("%s: skipped (%s)", snap.Date.Format("2006-01-02"), snap.SkipReason))
			continue
		}
		if snap.Allocation.FallbackApplied {
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("%s: allocation fallback (%v)", snap.Date.Format("2006-01-02"), snap.Allocation.Warnings))
		}
		for ticker, reason := range snap.Rejected {
			rej := &domain.SafetyRejectedError{Ticker: ticker, Reason: reason}
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("%s: %s", snap.Date.Format("2006-01-02"), rej.Error()))
		}
	}

	if trained == 0 {
		result.State = StateFailed
		return result, &domain.DataInsufficientError{
			Date: p.Dates()[schedule[0]],
			Have: schedule[0],
			Need: b.cfg.MinTrainingDays,
		}
	}

	b.computeMetrics(p, result)
	result.State = StateCompleted

	b.log.Info().
		Str("run_id", result.RunID).
		Float64("annual_return", result.Metrics.AnnualReturn).
		Float64("sharpe", result.Metrics.Sharpe).
		Float64("max_drawdown", result.Metrics.MaxDrawdown).
		Msg("Walk-forward run completed")

	return result, nil
}

// decideOne runs the full TRAINING → ALLOCATING pipeline for one rebalance
// date. The training window is the trailing LookbackDays strictly before
// the rebalance index; nothing at or after t is visible to the decision.
// Per-ticker failures exclude the ticker, never abort the rebalance.
func (b *Backtester) decideOne(p *panel.Panel, t int) RebalanceSnapshot {
	snap := RebalanceSnapshot{
		Date:  p.Dates()[t],
		Index: t,
	}

	lo := t - b.cfg.LookbackDays
	if lo < 0 {
		lo = 0
	}
	if t-lo < b.cfg.MinTrainingDays {
		snap.Skipped = true
		snap.SkipReason = (&domain.DataInsufficientError{
			Date: snap.Date, Have: t - lo, Need: b.cfg.MinTrainingDays,
		}).Error()
		return snap
	}

	view, err := p.Window(lo, t)
	if err != nil {
		snap.Skipped = true
		snap.SkipReason = err.Error()
		return snap
	}
	snap.Trained = true

	snap.Scores = b.engine.ComputeScores(view)
	snap.Regime = b.engine.Regime(view).Label

	snap.Rejected = make(map[string]string)
	for _, ticker := range sortedKeys(snap.Scores) {
		ok, reason := b.filter.Check(view, ticker)
		if !ok {
			snap.Rejected[ticker] = reason
			continue
		}
		snap.Eligible = append(snap.Eligible, ticker)
	}

	if len(snap.Eligible) == 0 {
		snap.Skipped = true
		snap.SkipReason = "zero eligible tickers, carrying forward prior weights"
		return snap
	}

	snap.Kelly = make(map[string]domain.KellyResult, len(snap.Eligible))
	returns := make(map[string][]float64, len(snap.Eligible))
	volatility := make(map[string]float64, len(snap.Eligible))
	for _, ticker := range snap.Eligible {
		rets := formulas.CalculateReturns(view.Closes(ticker))
		returns[ticker] = rets
		volatility[ticker] = formulas.AnnualizedVolatility(rets)
		snap.Kelly[ticker] = b.sizer.Size(ticker, rets, snap.Scores[ticker].Composite)
	}

	alloc, err := b.allocator.Allocate(allocation.Input{
		Tickers:     snap.Eligible,
		Kelly:       snap.Kelly,
		Scores:      snap.Scores,
		Returns:     returns,
		Volatility:  volatility,
		Sectors:     sectorsFor(p, snap.Eligible),
		PrevWeights: nil, // resolved during the ordered merge
	})
	if err != nil {
		snap.Skipped = true
		snap.SkipReason = fmt.Sprintf("allocation failed: %v", err)
		return snap
	}
	if !alloc.Feasible {
		snap.Skipped = true
		snap.SkipReason = "allocation infeasible: " + firstWarning(alloc)
		return snap
	}

	snap.Allocation = b.capTopK(alloc, snap.Scores, volatility)
	return snap
}

// capTopK keeps the top K names by weight and renormalizes to the target
// gross. Weight ties break by score rank.
func (b *Backtester) capTopK(alloc domain.AllocationResult, scores map[string]domain.FactorScore, volatility map[string]float64) domain.AllocationResult {
	if len(alloc.Weights) <= b.cfg.TopK {
		return alloc
	}

	ranked := allocation.RankTickers(sortedKeysW(alloc.Weights), scores, volatility)
	sort.SliceStable(ranked, func(i, j int) bool {
		return alloc.Weights[ranked[i]] > alloc.Weights[ranked[j]]
	})

	kept := make(map[string]float64, b.cfg.TopK)
	var keptSum float64
	for _, ticker := range ranked[:b.cfg.TopK] {
		kept[ticker] = alloc.Weights[ticker]
		keptSum += alloc.Weights[ticker]
	}
	if keptSum > 0 {
		for ticker := range kept {
			kept[ticker] *= b.cfg.TargetGross / keptSum
		}
	}

	alloc.Weights = kept
	alloc.Warnings = append(alloc.Warnings, fmt.Sprintf("capped to top %d positions", b.cfg.TopK))
	return alloc
}

// applyReturns merges decisions in date order and builds the daily return,
// equity, drawdown and turnover series under the one-day lag: day d uses
// the weights of the most recent rebalance strictly before d, and the
// turnover cost hits the day the weights change.
func (b *Backtester) applyReturns(p *panel.Panel, result *Result) {
	n := p.Len()
	dates := p.Dates()
	full := p.Full()

	result.Dates = dates
	result.GrossReturns = make([]float64, n)
	result.NetReturns = make([]float64, n)
	result.Equity = make([]float64, n)
	result.DailyTurnover = make([]float64, n)

	// Effective weights per day, resolved from the snapshots.
	type change struct {
		day      int
		weights  map[string]float64
		turnover float64
	}
	var changes []change
	prev := map[string]float64{}
	for i := range result.Snapshots {
		snap := &result.Snapshots[i]
		if snap.Skipped {
			// Carry-forward policy: prior weights stay in force.
			snap.Allocation = domain.AllocationResult{
				Weights:  prev,
				Method:   "carry_forward",
				Feasible: len(prev) > 0,
			}
			continue
		}
		if b.cfg.TurnoverBudget > 0 {
			trimmed, binding := allocation.EnforceTurnoverBudget(snap.Allocation.Weights, prev, b.cfg.TurnoverBudget, b.cfg.TargetGross)
			if binding.Bound {
				snap.Allocation.Weights = trimmed
				snap.Allocation.Report = append(snap.Allocation.Report, binding)
			}
		}
		snap.Turnover = snap.Allocation.Turnover(prev)
		effective := snap.Index + 1
		if effective < n {
			changes = append(changes, change{day: effective, weights: snap.Allocation.Weights, turnover: snap.Turnover})
		}
		prev = snap.Allocation.Weights
	}

	costRate := b.cfg.CostBps / 10000

	weights := map[string]float64{}
	next := 0
	equity := 1.0
	for d := 0; d < n; d++ {
		var cost float64
		if next < len(changes) && changes[next].day == d {
			weights = changes[next].weights
			result.DailyTurnover[d] = changes[next].turnover
			cost = costRate * changes[next].turnover
			next++
		}

		var gross float64
		if d > 0 {
			for ticker, w := range weights {
				closes := full.Closes(ticker)
				if closes[d-1] > 0 {
					gross += w * (closes[d]/closes[d-1] - 1)
				}
			}
		}

		net := gross - cost
		result.GrossReturns[d] = gross
		result.NetReturns[d] = net
		equity *= 1 + net
		result.Equity[d] = equity
	}

	result.Drawdown = formulas.DrawdownSeries(result.Equity)
	result.MonthlyReturns = monthlyReturns(dates, result.NetReturns)
}

func sectorsFor(p *panel.Panel, tickers []string) map[string]string {
	out := make(map[string]string, len(tickers))
	for _, t := range tickers {
		out[t] = p.Sector(t)
	}
	return out
}

func firstWarning(alloc domain.AllocationResult) string {
	if len(alloc.Warnings) > 0 {
		return alloc.Warnings[0]
	}
	return "no eligible allocation"
}

func sortedKeys(m map[string]domain.FactorScore) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysW(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package backtest

import (
	"time"

	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

const tradingDaysPerYear = 252

// computeMetrics aggregates the daily series into run-level statistics.
func (b *Backtester) computeMetrics(p *panel.Panel, result *Result) {
	n := len(result.NetReturns)
	if n == 0 {
		return
	}

	m := &result.Metrics

	growth := result.Equity[n-1]
	m.TotalReturn = growth - 1
	m.AnnualReturn = formulas.AnnualizeReturn(growth, n, tradingDaysPerYear)
	m.AnnualVolatility = formulas.AnnualizedVolatility(result.NetReturns)

	if m.AnnualVolatility > 0 {
		m.Sharpe = m.AnnualReturn / m.AnnualVolatility
	}

	if s := formulas.CalculateSortinoRatio(result.NetReturns, 0, 0, tradingDaysPerYear); s != nil {
		m.Sortino = *s
	}

	if dd := formulas.CalculateMaxDrawdown(result.Equity); dd != nil {
		m.MaxDrawdown = *dd
	}
	m.Calmar = formulas.CalculateCalmarRatio(m.AnnualReturn, m.MaxDrawdown)

	benchRets := formulas.CalculateReturns(p.Full().Benchmark())
	benchGrowth := 1.0
	for _, r := range benchRets {
		benchGrowth *= 1 + r
	}
	benchAnnual := formulas.AnnualizeReturn(benchGrowth, n, tradingDaysPerYear)
	m.Alpha = m.AnnualReturn - benchAnnual

	// Align: net returns include day 0 (always zero), benchmark returns
	// start at day 1.
	if te := formulas.TrackingError(result.NetReturns[1:], benchRets, tradingDaysPerYear); te != nil {
		m.InformationRatio = formulas.CalculateInformationRatio(m.Alpha, *te)
	}

	for _, t := range result.DailyTurnover {
		m.TotalTurnover += t
	}
	m.TotalCost = b.cfg.CostBps / 10000 * m.TotalTurnover

	for _, snap := range result.Snapshots {
		if snap.Skipped {
			m.SkippedRebalances++
		} else {
			m.Rebalances++
		}
	}
}

// monthlyReturns compounds daily net returns within each calendar month.
func monthlyReturns(dates []time.Time, netReturns []float64) map[string]float64 {
	out := make(map[string]float64)
	growth := make(map[string]float64)
	for i, d := range dates {
		key := d.Format("2006-01")
		if _, ok := growth[key]; !ok {
			growth[key] = 1
		}
		growth[key] *= 1 + netReturns[i]
	}
	for key, g := range growth {
		out[key] = g - 1
	}
	return out
}

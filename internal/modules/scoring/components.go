package scoring

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

const (
	momentumHorizon  = 126 // half a trading year
	stabilityPeriod  = 50  // SMA length for trend stability
	flowHorizon      = 63  // quarter for volume/flow metrics
	breakoutShort    = 21
	bollingerPeriod  = 20
	rsiPeriod        = 14
	minMetricHistory = 30
)

// rawMetrics holds one ticker's raw factor inputs over a window, before any
// cross-sectional normalization.
type rawMetrics struct {
	// Trend family
	riskAdjMomentum float64 // horizon return / annualized vol
	relStrength     float64 // horizon return minus benchmark return
	trendStability  float64 // fraction of days above the 50-SMA

	// Mean-reversion family
	bollingerReversion float64 // 0.5 - %B, positive when stretched low
	rsiReversion       float64 // (50 - RSI) / 50

	// Capital-flow family
	volumePriceTrend float64 // volume-weighted mean daily return
	volumeBreakout   float64 // short/long average volume ratio - 1
	flowBalance      float64 // signed volume balance, up minus down

	// Risk family raw material
	annVolatility float64
	maxDrawdown   float64 // magnitude, >= 0
	ulcer         float64
}

// computeRawMetrics extracts all raw factor inputs for one ticker. Horizons
// shrink with the window so short sub-windows (robustness resampling) still
// yield comparable metrics. Returns false when the window is too short.
func computeRawMetrics(view *panel.View, ticker string) (rawMetrics, bool) {
	closes := view.Closes(ticker)
	volumes := view.Volumes(ticker)
	benchmark := view.Benchmark()
	n := len(closes)
	if n < minMetricHistory {
		return rawMetrics{}, false
	}

	var m rawMetrics

	horizon := minInt(momentumHorizon, n-1)
	rets := formulas.CalculateReturns(closes)
	vol := formulas.AnnualizedVolatility(rets)

	mom := horizonReturn(closes, horizon)
	benchMom := horizonReturn(benchmark, horizon)
	m.riskAdjMomentum = mom / math.Max(vol, 1e-6)
	m.relStrength = mom - benchMom
	m.trendStability = stabilityAboveSMA(closes, minInt(stabilityPeriod, n/2))

	if pb := formulas.CalculateBollingerPercentB(closes, minInt(bollingerPeriod, n-1), 2.0); pb != nil {
		m.bollingerReversion = 0.5 - *pb
	}
	if rsi := formulas.CalculateRSI(closes, minInt(rsiPeriod, n-1)); rsi != nil {
		m.rsiReversion = (50 - *rsi) / 50
	}

	flowN := minInt(flowHorizon, len(rets))
	m.volumePriceTrend = volumeWeightedReturn(rets[len(rets)-flowN:], volumes[len(volumes)-flowN:])
	m.volumeBreakout = volumeRatio(volumes, minInt(breakoutShort, n/2), minInt(momentumHorizon, n))
	m.flowBalance = signedFlowBalance(rets[len(rets)-flowN:], volumes[len(volumes)-flowN:])

	m.annVolatility = vol
	if dd := formulas.CalculateMaxDrawdown(closes); dd != nil {
		m.maxDrawdown = math.Abs(*dd)
	}
	if u := formulas.CalculateUlcerIndex(closes, minInt(momentumHorizon, n)); u != nil {
		m.ulcer = *u
	}

	return m, true
}

// horizonReturn is the fractional return over the trailing horizon days,
// shrinking the horizon to fit short windows.
func horizonReturn(prices []float64, horizon int) float64 {
	n := len(prices)
	if horizon <= 0 || n <= horizon {
		horizon = n - 1
	}
	if m := formulas.CalculateMomentum(prices, horizon); m != nil {
		return *m
	}
	return 0
}

// stabilityAboveSMA is the fraction of bars closing above their SMA.
func stabilityAboveSMA(closes []float64, period int) float64 {
	if period < 2 || len(closes) <= period {
		return 0.5
	}
	sma := talib.Sma(closes, period)
	above, total := 0, 0
	for i := period - 1; i < len(closes); i++ {
		if sma[i] == 0 {
			continue
		}
		total++
		if closes[i] > sma[i] {
			above++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(above) / float64(total)
}

// volumeWeightedReturn is the volume-weighted mean of daily returns. The
// last len(rets) volume bars are aligned with the returns.
func volumeWeightedReturn(rets, volumes []float64) float64 {
	volumes = volumes[len(volumes)-len(rets):]
	var num, den float64
	for i, r := range rets {
		num += r * volumes[i]
		den += volumes[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// volumeRatio compares short-window to long-window average volume.
func volumeRatio(volumes []float64, short, long int) float64 {
	if short < 1 || long <= short || len(volumes) < long {
		return 0
	}
	shortAvg := formulas.Mean(volumes[len(volumes)-short:])
	longAvg := formulas.Mean(volumes[len(volumes)-long:])
	if longAvg == 0 {
		return 0
	}
	return shortAvg/longAvg - 1
}

// signedFlowBalance is the net up-day volume fraction, an accumulation/
// distribution proxy built from closes only.
func signedFlowBalance(rets, volumes []float64) float64 {
	volumes = volumes[len(volumes)-len(rets):]
	var signed, total float64
	for i, r := range rets {
		switch {
		case r > 0:
			signed += volumes[i]
		case r < 0:
			signed -= volumes[i]
		}
		total += volumes[i]
	}
	if total == 0 {
		return 0
	}
	return signed / total
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

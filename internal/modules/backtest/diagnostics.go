package backtest

import (
	"math"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/safety"
	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// ICHorizons are the forward-return horizons, in trading days, probed by
// the IC-decay diagnostic.
var ICHorizons = []int{1, 5, 21, 63, 126}

// HorizonIC is the information coefficient at one forward horizon.
type HorizonIC struct {
	Horizon     int     `json:"horizon"`
	MeanIC      float64 `json:"mean_ic"`
	TStat       float64 `json:"t_stat"`
	Significant bool    `json:"significant"` // |t| > 2
	Samples     int     `json:"samples"`
}

// ICDecayReport summarizes how signal predictiveness fades with horizon.
type ICDecayReport struct {
	Horizons  []HorizonIC `json:"horizons"`
	DecayRate float64     `json:"decay_rate"` // (first - last) / |first|
}

// ICDecay computes the per-date cross-sectional Pearson correlation between
// composite scores and forward returns at each horizon, averaged across
// rebalance dates, with a t-statistic per horizon.
func ICDecay(result *Result, p *panel.Panel) ICDecayReport {
	report := ICDecayReport{}
	full := p.Full()

	for _, horizon := range ICHorizons {
		var ics []float64
		for _, snap := range result.Snapshots {
			if snap.Skipped || len(snap.Scores) < 2 {
				continue
			}
			start := snap.Index + 1
			end := start + horizon
			if end >= p.Len() {
				continue
			}

			var scores, fwd []float64
			for ticker, fs := range snap.Scores {
				closes := full.Closes(ticker)
				if closes == nil || closes[start] <= 0 {
					continue
				}
				scores = append(scores, fs.Composite)
				fwd = append(fwd, closes[end]/closes[start]-1)
			}
			if len(scores) < 2 {
				continue
			}
			ic := formulas.Correlation(scores, fwd)
			if !math.IsNaN(ic) {
				ics = append(ics, ic)
			}
		}

		h := HorizonIC{Horizon: horizon, Samples: len(ics)}
		if len(ics) > 1 {
			h.MeanIC = formulas.Mean(ics)
			h.TStat = formulas.TStat(ics)
			h.Significant = math.Abs(h.TStat) > 2
		}
		report.Horizons = append(report.Horizons, h)
	}

	if len(report.Horizons) >= 2 {
		first := report.Horizons[0].MeanIC
		last := report.Horizons[len(report.Horizons)-1].MeanIC
		if first != 0 {
			report.DecayRate = (first - last) / math.Abs(first)
		}
	}
	return report
}

// StressResult is the outcome of the black-swan stress test.
type StressResult struct {
	ShockStart       int      `json:"shock_start"` // panel index of the first shock day
	RejectedFraction float64  `json:"rejected_fraction"`
	RejectedTickers  []string `json:"rejected_tickers"`
	PortfolioLoss    float64  `json:"portfolio_loss"` // over the shock days, with held weights
}

// StressTest applies a synthetic two-day crash at the panel midpoint: the
// benchmark loses 20% over two days, stocks fall 1.2x the benchmark move,
// and traded volume dries up to 15% afterward. It measures what fraction
// of names the safety filter excludes in the window immediately after the
// shock, and the loss a portfolio holding the given weights would realize.
func StressTest(p *panel.Panel, filter *safety.Filter, weights map[string]float64, lookbackDays int) (StressResult, error) {
	const (
		shockDays  = 2
		benchShock = -0.20
		stockBeta  = 1.2
		volumeDry  = 0.15
	)

	n := p.Len()
	mid := n / 2
	res := StressResult{ShockStart: mid}

	full := p.Full()
	dailyBench := math.Pow(1+benchShock, 1.0/shockDays) - 1
	dailyStock := stockBeta * dailyBench

	in := panel.Input{
		Dates:   p.Dates(),
		Closes:  make(map[string][]float64, len(p.Tickers())),
		Volumes: make(map[string][]float64, len(p.Tickers())),
		Sectors: p.Sectors(),
	}

	in.Benchmark = applyShock(full.Benchmark(), mid, shockDays, dailyBench)
	if full.HasVolIndex() {
		in.VolIndex = full.VolIndex()
	}

	for _, ticker := range p.Tickers() {
		in.Closes[ticker] = applyShock(full.Closes(ticker), mid, shockDays, dailyStock)

		volumes := append([]float64(nil), full.Volumes(ticker)...)
		for i := mid; i < n; i++ {
			volumes[i] *= volumeDry
		}
		in.Volumes[ticker] = volumes
	}

	shocked, err := panel.New(in)
	if err != nil {
		return res, err
	}

	// Evaluate the gate in the window immediately after the shock.
	lo := mid + shockDays - lookbackDays
	if lo < 0 {
		lo = 0
	}
	hi := mid + shockDays
	view, err := shocked.Window(lo, hi)
	if err != nil {
		return res, err
	}

	rejected := 0
	for _, ticker := range shocked.Tickers() {
		if ok, _ := filter.Check(view, ticker); !ok {
			rejected++
			res.RejectedTickers = append(res.RejectedTickers, ticker)
		}
	}
	res.RejectedFraction = float64(rejected) / float64(len(shocked.Tickers()))

	// Loss of a portfolio holding `weights` through the shock days.
	shockedFull := shocked.Full()
	for ticker, w := range weights {
		closes := shockedFull.Closes(ticker)
		if closes == nil || mid == 0 || closes[mid-1] <= 0 {
			continue
		}
		res.PortfolioLoss += w * (closes[mid+shockDays-1]/closes[mid-1] - 1)
	}

	return res, nil
}

// applyShock multiplies the shock days by the daily shock factor and keeps
// every later price on its original return path from the new base.
func applyShock(prices []float64, start, days int, dailyShock float64) []float64 {
	out := append([]float64(nil), prices...)
	factor := 1.0
	for i := start; i < len(out); i++ {
		if i < start+days {
			factor *= 1 + dailyShock
		}
		out[i] *= factor
	}
	return out
}

// ReturnOnTurnover is net total return divided by total turnover. Low
// values flag a strategy whose edge is consumed by trading costs.
func ReturnOnTurnover(result *Result) float64 {
	if result.Metrics.TotalTurnover == 0 {
		return 0
	}
	return result.Metrics.TotalReturn / result.Metrics.TotalTurnover
}

// ConfusionMatrix counts detected vs actual regime labels.
type ConfusionMatrix struct {
	Counts   map[domain.Regime]map[domain.Regime]int `json:"counts"` // actual -> detected -> n
	Accuracy float64                                 `json:"accuracy"`
}

// RegimeAccuracy builds a confusion matrix between detected and
// ground-truth regime labels. Both slices must be index-aligned.
func RegimeAccuracy(detected, actual []domain.Regime) ConfusionMatrix {
	cm := ConfusionMatrix{Counts: make(map[domain.Regime]map[domain.Regime]int)}
	n := len(detected)
	if len(actual) < n {
		n = len(actual)
	}
	correct := 0
	for i := 0; i < n; i++ {
		row := cm.Counts[actual[i]]
		if row == nil {
			row = make(map[domain.Regime]int)
			cm.Counts[actual[i]] = row
		}
		row[detected[i]]++
		if detected[i] == actual[i] {
			correct++
		}
	}
	if n > 0 {
		cm.Accuracy = float64(correct) / float64(n)
	}
	return cm
}

// RobustnessReport relates robustness scores to realized forward returns.
type RobustnessReport struct {
	Correlation    float64 `json:"correlation"`
	HighBucketMean float64 `json:"high_bucket_mean"` // robustness >= 0.7
	LowBucketMean  float64 `json:"low_bucket_mean"`
	Samples        int     `json:"samples"`
}

// RobustnessForwardReturns correlates each scored ticker's robustness with
// its 21-day forward return after the rebalance.
func RobustnessForwardReturns(result *Result, p *panel.Panel) RobustnessReport {
	const horizon = 21
	const highBucket = 0.7

	full := p.Full()
	var robs, fwds []float64
	var high, low []float64

	for _, snap := range result.Snapshots {
		if snap.Skipped {
			continue
		}
		start := snap.Index + 1
		end := start + horizon
		if end >= p.Len() {
			continue
		}
		for ticker, fs := range snap.Scores {
			if fs.Robustness == nil {
				continue
			}
			closes := full.Closes(ticker)
			if closes == nil || closes[start] <= 0 {
				continue
			}
			fwd := closes[end]/closes[start] - 1
			robs = append(robs, *fs.Robustness)
			fwds = append(fwds, fwd)
			if *fs.Robustness >= highBucket {
				high = append(high, fwd)
			} else {
				low = append(low, fwd)
			}
		}
	}

	report := RobustnessReport{Samples: len(robs)}
	if len(robs) > 1 {
		report.Correlation = formulas.Correlation(robs, fwds)
	}
	if len(high) > 0 {
		report.HighBucketMean = formulas.Mean(high)
	}
	if len(low) > 0 {
		report.LowBucketMean = formulas.Mean(low)
	}
	return report
}

// Package scoring implements the factor-score engine: regime-conditioned
// composite scores per ticker, computed cross-sectionally over a panel
// window, plus regime detection and robustness estimation.
package scoring

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// Config holds the engine's tunables.
type Config struct {
	// MinLookback is the minimum window length required to score at all.
	MinLookback int
	// ClipZ bounds cross-sectional z-scores before the 0-100 mapping.
	ClipZ float64
	// SubWindows is the number of equal sub-windows used for robustness.
	SubWindows int
	// MinSubWindowDays is the shortest usable robustness sub-window.
	MinSubWindowDays int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MinLookback:      252,
		ClipZ:            3.0,
		SubWindows:       4,
		MinSubWindowDays: 21,
	}
}

// familyWeights blends the four factor families into a composite.
type familyWeights struct {
	Trend         float64
	MeanReversion float64
	CapitalFlow   float64
	Risk          float64
}

// regimeWeights conditions the family blend on the detected regime. In calm
// bull markets trend and flow dominate; in stressed markets the risk family
// takes over.
var regimeWeights = map[domain.Regime]familyWeights{
	domain.RegimeExpansion: {Trend: 0.30, MeanReversion: 0.20, CapitalFlow: 0.30, Risk: 0.20},
	domain.RegimeParabolic: {Trend: 0.45, MeanReversion: 0.10, CapitalFlow: 0.30, Risk: 0.15},
	domain.RegimeDeflation: {Trend: 0.20, MeanReversion: 0.30, CapitalFlow: 0.15, Risk: 0.35},
	domain.RegimeCrisis:    {Trend: 0.10, MeanReversion: 0.20, CapitalFlow: 0.10, Risk: 0.60},
}

// Engine computes regime-conditioned factor scores over panel windows.
type Engine struct {
	cfg      Config
	detector *RegimeDetector
	log      zerolog.Logger
}

// NewEngine creates a factor-score engine.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		detector: NewRegimeDetector(),
		log:      log.With().Str("component", "factor_score_engine").Logger(),
	}
}

// familyScores are one ticker's 0-100 family scores plus the composite.
type familyScores struct {
	Trend         float64
	MeanReversion float64
	CapitalFlow   float64
	Risk          float64
	Composite     float64
}

// ComputeScores scores every ticker with sufficient history in the view.
// The view must end strictly before the decision date; scores carry the
// view's last date as their AsOf. Tickers with insufficient history are
// silently excluded. Returns an empty map when the whole window is shorter
// than the configured minimum lookback.
func (e *Engine) ComputeScores(view *panel.View) map[string]domain.FactorScore {
	if view.Len() < e.cfg.MinLookback {
		e.log.Debug().
			Int("window", view.Len()).
			Int("min_lookback", e.cfg.MinLookback).
			Msg("Window below minimum lookback, no scores produced")
		return map[string]domain.FactorScore{}
	}

	regime := e.detector.Detect(view)
	scored := e.scoreWindow(view, regime.Label)
	robustness := e.robustness(view, regime.Label)

	out := make(map[string]domain.FactorScore, len(scored))
	asOf := view.End()
	for ticker, fs := range scored {
		score := domain.FactorScore{
			Ticker:           ticker,
			AsOf:             asOf,
			Composite:        fs.Composite,
			Trend:            fs.Trend,
			MeanReversion:    fs.MeanReversion,
			CapitalFlow:      fs.CapitalFlow,
			Risk:             fs.Risk,
			Regime:           regime.Label,
			RegimeConfidence: regime.Confidence,
			Robustness:       robustness[ticker],
		}
		if view.FilledCount(ticker) > 0 {
			score.Flags = append(score.Flags, "filled_gaps")
		}
		out[ticker] = score
	}

	e.log.Debug().
		Str("as_of", asOf.Format("2006-01-02")).
		Str("regime", string(regime.Label)).
		Int("scored", len(out)).
		Msg("Computed factor scores")

	return out
}

// Regime exposes the detector's classification for a window.
func (e *Engine) Regime(view *panel.View) RegimeDetection {
	return e.detector.Detect(view)
}

// scoreWindow computes family and composite scores cross-sectionally over
// one window, without robustness.
func (e *Engine) scoreWindow(view *panel.View, regime domain.Regime) map[string]familyScores {
	tickers := make([]string, 0, len(view.Tickers()))
	metrics := make([]rawMetrics, 0, len(view.Tickers()))
	for _, ticker := range view.Tickers() {
		m, ok := computeRawMetrics(view, ticker)
		if !ok {
			continue
		}
		tickers = append(tickers, ticker)
		metrics = append(metrics, m)
	}
	if len(tickers) == 0 {
		return map[string]familyScores{}
	}

	extract := func(f func(rawMetrics) float64) []float64 {
		v := make([]float64, len(metrics))
		for i, m := range metrics {
			v[i] = f(m)
		}
		return v
	}

	// Trend: risk-adjusted momentum, relative strength, stability above SMA.
	trendZ := blendZ(
		[]float64{0.50, 0.25, 0.25},
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.riskAdjMomentum })),
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.relStrength })),
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.trendStability })),
	)

	// Mean reversion: Bollinger %B stretch and RSI distance from neutral.
	mrZ := blendZ(
		[]float64{0.60, 0.40},
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.bollingerReversion })),
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.rsiReversion })),
	)

	// Capital flow: volume-price trend, volume breakout, flow balance.
	flowZ := blendZ(
		[]float64{0.40, 0.35, 0.25},
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.volumePriceTrend })),
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.volumeBreakout })),
		formulas.ZScores(extract(func(m rawMetrics) float64 { return m.flowBalance })),
	)

	// Risk: low volatility, drawdown resilience, low ulcer index. Built
	// from cross-sectional percentile ranks so the raw scales drop out.
	volPct := percentileRanks(extract(func(m rawMetrics) float64 { return m.annVolatility }))
	ddPct := percentileRanks(extract(func(m rawMetrics) float64 { return m.maxDrawdown }))
	ulcerPct := percentileRanks(extract(func(m rawMetrics) float64 { return m.ulcer }))
	riskRaw := make([]float64, len(metrics))
	for i := range riskRaw {
		riskRaw[i] = 0.40*(1-volPct[i]) + 0.35*(1-ddPct[i]) + 0.25*(1-ulcerPct[i])
	}
	riskZ := formulas.ZScores(riskRaw)

	weights := regimeWeights[regime]
	out := make(map[string]familyScores, len(tickers))
	for i, ticker := range tickers {
		fs := familyScores{
			Trend:         formulas.ScoreFromZ(trendZ[i], e.cfg.ClipZ),
			MeanReversion: formulas.ScoreFromZ(mrZ[i], e.cfg.ClipZ),
			CapitalFlow:   formulas.ScoreFromZ(flowZ[i], e.cfg.ClipZ),
			Risk:          formulas.ScoreFromZ(riskZ[i], e.cfg.ClipZ),
		}

		composite := weights.Trend*fs.Trend +
			weights.MeanReversion*fs.MeanReversion +
			weights.CapitalFlow*fs.CapitalFlow +
			weights.Risk*fs.Risk

		composite = applyInteractions(composite, fs)
		fs.Composite = clamp(composite, 0, 100)
		out[ticker] = fs
	}
	return out
}

// applyInteractions adjusts the composite for cross-family patterns:
// strong trend without flow support is distribution, very weak risk floors
// the score, and trend confirmed by flow compounds.
func applyInteractions(composite float64, fs familyScores) float64 {
	if fs.Trend > 70 && fs.CapitalFlow < 40 {
		composite *= 0.85
	}
	if fs.Risk < 25 {
		composite *= 0.50
	}
	if fs.Trend > 70 && fs.CapitalFlow > 70 {
		composite *= 1.15
	}
	return composite
}

// blendZ combines z-score vectors with the given weights.
func blendZ(weights []float64, vectors ...[]float64) []float64 {
	out := make([]float64, len(vectors[0]))
	for i := range out {
		for j, v := range vectors {
			out[i] += weights[j] * v[i]
		}
	}
	return out
}

// percentileRanks maps each value to its rank fraction in [0, 1]. Ties
// share the average rank of their run so identical inputs stay identical.
func percentileRanks(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 1 {
		out[0] = 0.5
		return out
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	for start := 0; start < n; {
		end := start + 1
		for end < n && values[idx[end]] == values[idx[start]] {
			end++
		}
		avgRank := float64(start+end-1) / 2 / float64(n-1)
		for k := start; k < end; k++ {
			out[idx[k]] = avgRank
		}
		start = end
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

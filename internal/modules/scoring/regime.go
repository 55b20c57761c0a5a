package scoring

import (
	"fmt"
	"math"
	"sync"

	"github.com/markcheno/go-talib"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

const (
	regimeTrendPeriod = 200 // SMA length for trend direction
	regimeVolWindow   = 21  // realized-vol window when no vol index exists
	regimeVolLookback = 252 // trailing window for the vol median
)

// RegimeDetection is a classified market regime with a confidence level.
type RegimeDetection struct {
	Label      domain.Regime
	Confidence float64
}

// RegimeDetector classifies the market regime from the benchmark trend and
// a volatility measure. Detections are memoized per window; the cache is
// write-once and safe for concurrent read after population.
type RegimeDetector struct {
	mu    sync.Mutex
	cache map[string]RegimeDetection
}

// NewRegimeDetector creates a regime detector with an empty cache.
func NewRegimeDetector() *RegimeDetector {
	return &RegimeDetector{cache: make(map[string]RegimeDetection)}
}

// Detect classifies the regime at the end of the view:
//   - benchmark above its 200-day SMA → bull, below → bear
//   - volatility below its trailing median → calm, above → stressed
//
// Bull+calm = Expansion, bull+stressed = Parabolic, bear+calm = Deflation,
// bear+stressed = Crisis. Confidence is higher when a volatility index
// backs the volatility read.
func (r *RegimeDetector) Detect(view *panel.View) RegimeDetection {
	key := fmt.Sprintf("%s|%s", view.Start().Format("2006-01-02"), view.End().Format("2006-01-02"))

	r.mu.Lock()
	if d, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return d
	}
	r.mu.Unlock()

	d := classify(view)

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		d = cached
	} else {
		r.cache[key] = d
	}
	r.mu.Unlock()

	return d
}

func classify(view *panel.View) RegimeDetection {
	benchmark := view.Benchmark()

	bull := true
	if len(benchmark) >= regimeTrendPeriod {
		sma := talib.Sma(benchmark, regimeTrendPeriod)
		last := sma[len(sma)-1]
		bull = benchmark[len(benchmark)-1] >= last
	} else if len(benchmark) >= 2 {
		bull = benchmark[len(benchmark)-1] >= benchmark[0]
	}

	vol, volHistory, fromIndex := volatilityRead(view)

	stressed := false
	if len(volHistory) > 0 {
		stressed = vol > formulas.Median(volHistory)
	}

	var label domain.Regime
	switch {
	case bull && !stressed:
		label = domain.RegimeExpansion
	case bull && stressed:
		label = domain.RegimeParabolic
	case !bull && !stressed:
		label = domain.RegimeDeflation
	default:
		label = domain.RegimeCrisis
	}

	confidence := 0.6
	if fromIndex {
		confidence = 0.8
	}

	return RegimeDetection{Label: label, Confidence: confidence}
}

// volatilityRead returns the current volatility level, its trailing history
// for the median comparison, and whether a volatility index supplied it.
func volatilityRead(view *panel.View) (float64, []float64, bool) {
	if view.HasVolIndex() {
		vix := view.VolIndex()
		lookback := len(vix)
		if lookback > regimeVolLookback {
			vix = vix[lookback-regimeVolLookback:]
		}
		return vix[len(vix)-1], vix, true
	}

	rets := formulas.CalculateReturns(view.Benchmark())
	if len(rets) < regimeVolWindow {
		return 0, nil, false
	}

	vols := make([]float64, 0, len(rets)-regimeVolWindow+1)
	for i := regimeVolWindow; i <= len(rets); i++ {
		vols = append(vols, formulas.StdDev(rets[i-regimeVolWindow:i])*math.Sqrt(252))
	}
	if len(vols) > regimeVolLookback {
		vols = vols[len(vols)-regimeVolLookback:]
	}
	return vols[len(vols)-1], vols, false
}

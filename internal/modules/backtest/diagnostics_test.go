package backtest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/modules/safety"
	"github.com/aristath/quantfolio/internal/panel"
)

// fakeSnapshots builds non-skipped snapshots every 21 days with composite
// scores produced by the given function of (panel, index, ticker).
func fakeSnapshots(p *panel.Panel, score func(*panel.Panel, int, string) float64) []RebalanceSnapshot {
	var snaps []RebalanceSnapshot
	for idx := 63; idx < p.Len()-130; idx += 21 {
		snap := RebalanceSnapshot{
			Date:    p.Dates()[idx],
			Index:   idx,
			Trained: true,
			Scores:  make(map[string]domain.FactorScore, len(p.Tickers())),
		}
		for _, ticker := range p.Tickers() {
			snap.Scores[ticker] = domain.FactorScore{
				Ticker:    ticker,
				Composite: score(p, idx, ticker),
			}
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

func TestICDecayNoiseScores(t *testing.T) {
	p := testPanel(t, 504)
	rng := rand.New(rand.NewSource(7))

	result := &Result{Snapshots: fakeSnapshots(p, func(*panel.Panel, int, string) float64 {
		return rng.Float64() * 100
	})}

	report := ICDecay(result, p)
	require.Len(t, report.Horizons, len(ICHorizons))
	for _, h := range report.Horizons {
		assert.Greater(t, h.Samples, 5, "horizon %d", h.Horizon)
		assert.Less(t, math.Abs(h.MeanIC), 0.5, "horizon %d", h.Horizon)
		assert.Less(t, math.Abs(h.TStat), 2.0, "horizon %d", h.Horizon)
	}
}

func TestICDecayPerfectForesight(t *testing.T) {
	p := testPanel(t, 504)
	full := p.Full()

	// Scores equal to the next-day forward return are a perfect one-day
	// signal, so the horizon-1 IC must be ~1 and significant.
	result := &Result{Snapshots: fakeSnapshots(p, func(p *panel.Panel, idx int, ticker string) float64 {
		closes := full.Closes(ticker)
		return 50 + 1000*(closes[idx+2]/closes[idx+1]-1)
	})}

	report := ICDecay(result, p)
	require.Len(t, report.Horizons, len(ICHorizons))
	assert.Equal(t, 1, report.Horizons[0].Horizon)
	assert.Greater(t, report.Horizons[0].MeanIC, 0.99)
	assert.True(t, report.Horizons[0].Significant)
	assert.Greater(t, report.DecayRate, 0.5)
}

func TestStressTest(t *testing.T) {
	p := testPanel(t, 504)
	// A floor above any synthetic name's trading volume rejects the whole
	// universe once the gate re-evaluates after the shock.
	filter := safety.NewFilter(2e7, 0.10)

	weights := map[string]float64{"ALPHA": 0.5, "BRAVO": 0.5}
	res, err := StressTest(p, filter, weights, 252)
	require.NoError(t, err)

	assert.Equal(t, p.Len()/2, res.ShockStart)
	assert.InDelta(t, 1.0, res.RejectedFraction, 1e-12)
	assert.Len(t, res.RejectedTickers, len(p.Tickers()))

	// A fully invested portfolio through a -20% benchmark crash at 1.2x
	// beta loses roughly 24%, give or take the organic daily moves.
	assert.Less(t, res.PortfolioLoss, -0.15)
	assert.Greater(t, res.PortfolioLoss, -0.40)
}

func TestReturnOnTurnover(t *testing.T) {
	result := &Result{}
	result.Metrics.TotalReturn = 0.3
	result.Metrics.TotalTurnover = 6.0
	assert.InDelta(t, 0.05, ReturnOnTurnover(result), 1e-12)

	result.Metrics.TotalTurnover = 0
	assert.Zero(t, ReturnOnTurnover(result))
}

func TestRegimeAccuracy(t *testing.T) {
	detected := []domain.Regime{
		domain.RegimeExpansion,
		domain.RegimeExpansion,
		domain.RegimeCrisis,
		domain.RegimeParabolic,
	}
	actual := []domain.Regime{
		domain.RegimeExpansion,
		domain.RegimeDeflation,
		domain.RegimeCrisis,
		domain.RegimeParabolic,
	}

	cm := RegimeAccuracy(detected, actual)
	assert.InDelta(t, 0.75, cm.Accuracy, 1e-12)
	assert.Equal(t, 1, cm.Counts[domain.RegimeExpansion][domain.RegimeExpansion])
	assert.Equal(t, 1, cm.Counts[domain.RegimeDeflation][domain.RegimeExpansion])
	assert.Equal(t, 1, cm.Counts[domain.RegimeCrisis][domain.RegimeCrisis])
}

func TestRobustnessForwardReturns(t *testing.T) {
	p := testPanel(t, 504)
	full := p.Full()
	idx := 63

	high, low := 0.9, 0.3
	snap := RebalanceSnapshot{
		Date:    p.Dates()[idx],
		Index:   idx,
		Trained: true,
		Scores: map[string]domain.FactorScore{
			"ALPHA": {Ticker: "ALPHA", Composite: 70, Robustness: &high},
			"BRAVO": {Ticker: "BRAVO", Composite: 55, Robustness: &low},
		},
	}
	result := &Result{Snapshots: []RebalanceSnapshot{snap}}

	report := RobustnessForwardReturns(result, p)
	require.Equal(t, 2, report.Samples)

	fwd := func(ticker string) float64 {
		closes := full.Closes(ticker)
		return closes[idx+22]/closes[idx+1] - 1
	}
	assert.InDelta(t, fwd("ALPHA"), report.HighBucketMean, 1e-12)
	assert.InDelta(t, fwd("BRAVO"), report.LowBucketMean, 1e-12)
}

package marketdata

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// Synthetic generates a deterministic correlated price panel from a seed.
// Returns follow a one-factor market model with a sector factor layered on
// top, so the correlation structure is realistic enough to exercise the
// allocation penalties.
type Synthetic struct {
	seed    int64
	sectors map[string]string
	log     zerolog.Logger
}

// NewSynthetic creates a synthetic data provider. The sectors map assigns
// each symbol a sector label; symbols absent from the map land in "Unknown".
func NewSynthetic(seed int64, sectors map[string]string, log zerolog.Logger) *Synthetic {
	return &Synthetic{
		seed:    seed,
		sectors: sectors,
		log:     log.With().Str("component", "synthetic_data").Logger(),
	}
}

// Load generates `days` business days of history for the given symbols.
// The same seed and arguments always produce the same panel.
func (s *Synthetic) Load(_ context.Context, symbols []string, days int) (*panel.Panel, error) {
	rng := rand.New(rand.NewSource(s.seed))

	dates := businessDays(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), days)
	n := len(dates)

	// Daily market factor: mild positive drift, ~16% annualized vol.
	market := make([]float64, n)
	for i := range market {
		market[i] = 0.0003 + 0.010*rng.NormFloat64()
	}

	// One factor per sector, drawn once so all members share it.
	sectorSet := map[string][]float64{}
	sectorOf := func(symbol string) string {
		if sec, ok := s.sectors[symbol]; ok {
			return sec
		}
		return "Unknown"
	}
	for _, symbol := range symbols {
		sec := sectorOf(symbol)
		if _, ok := sectorSet[sec]; !ok {
			f := make([]float64, n)
			for i := range f {
				f[i] = 0.006 * rng.NormFloat64()
			}
			sectorSet[sec] = f
		}
	}

	benchmark := priceWalk(100.0, market)

	in := panel.Input{
		Dates:     dates,
		Closes:    make(map[string][]float64, len(symbols)),
		Volumes:   make(map[string][]float64, len(symbols)),
		Benchmark: benchmark,
		Sectors:   make(map[string]string, len(symbols)),
	}

	for _, symbol := range symbols {
		sec := sectorOf(symbol)
		sectorFactor := sectorSet[sec]
		beta := 0.6 + 0.8*rng.Float64()
		idioVol := 0.008 + 0.010*rng.Float64()
		baseVolume := 1e6 * (0.5 + 4.5*rng.Float64())

		rets := make([]float64, n)
		for i := range rets {
			rets[i] = beta*market[i] + 0.5*sectorFactor[i] + idioVol*rng.NormFloat64()
		}

		closes := priceWalk(20.0+180.0*rng.Float64(), rets)
		volumes := make([]float64, n)
		for i := range volumes {
			// Volume spikes with large moves.
			volumes[i] = baseVolume * (1 + 8*math.Abs(rets[i])) * (0.7 + 0.6*rng.Float64())
		}

		in.Closes[symbol] = closes
		in.Volumes[symbol] = volumes
		in.Sectors[symbol] = sec
	}

	in.VolIndex = syntheticVolIndex(benchmark)

	s.log.Debug().
		Int64("seed", s.seed).
		Int("symbols", len(symbols)).
		Int("days", n).
		Msg("Generated synthetic price panel")

	return panel.New(in)
}

// businessDays returns n weekdays starting at or after start.
func businessDays(start time.Time, n int) []time.Time {
	dates := make([]time.Time, 0, n)
	d := start
	for len(dates) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

// priceWalk compounds daily returns into a price series. The first price is
// the starting level itself; rets[i] moves prices[i].
func priceWalk(start float64, rets []float64) []float64 {
	prices := make([]float64, len(rets))
	level := start
	for i, r := range rets {
		level *= 1 + r
		prices[i] = level
	}
	return prices
}

// syntheticVolIndex scales trailing 21-day realized benchmark volatility to
// a VIX-like level. Early bars reuse the first full estimate.
func syntheticVolIndex(benchmark []float64) []float64 {
	const window = 21
	rets := formulas.CalculateReturns(benchmark)
	out := make([]float64, len(benchmark))
	first := -1.0
	for i := range out {
		if i < window {
			continue
		}
		vol := formulas.StdDev(rets[i-window:i]) * math.Sqrt(252) * 100
		out[i] = vol
		if first < 0 {
			first = vol
		}
	}
	for i := 0; i < len(out) && out[i] == 0; i++ {
		out[i] = first
	}
	return out
}

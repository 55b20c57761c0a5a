package safety

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/panel"
)

func buildPanel(t *testing.T, closes, volumes []float64) *panel.View {
	t.Helper()
	n := len(closes)
	dates := make([]time.Time, 0, n)
	d := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	for len(dates) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	bench := make([]float64, n)
	for i := range bench {
		bench[i] = 400
	}
	p, err := panel.New(panel.Input{
		Dates:     dates,
		Closes:    map[string][]float64{"AAA": closes},
		Volumes:   map[string][]float64{"AAA": volumes},
		Benchmark: bench,
	})
	require.NoError(t, err)
	return p.Full()
}

func series(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestCheck(t *testing.T) {
	filter := NewFilter(1_000_000, 0.10)

	t.Run("liquid clean ticker passes", func(t *testing.T) {
		view := buildPanel(t, series(60, 100), series(60, 2e6))
		ok, reason := filter.Check(view, "AAA")
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("volume below floor is rejected", func(t *testing.T) {
		view := buildPanel(t, series(60, 100), series(60, 5e5))
		ok, reason := filter.Check(view, "AAA")
		assert.False(t, ok)
		assert.Contains(t, reason, "below floor")
	})

	t.Run("volume dry-up after a shock is rejected", func(t *testing.T) {
		volumes := series(60, 2e6)
		for i := 30; i < 60; i++ {
			volumes[i] = 2e6 * 0.15
		}
		view := buildPanel(t, series(60, 100), volumes)
		ok, _ := filter.Check(view, "AAA")
		assert.False(t, ok)
	})

	t.Run("excessive missing observations are rejected", func(t *testing.T) {
		closes := series(60, 100)
		for i := 10; i < 14; i++ {
			closes[i] = math.NaN() // gap-filled by the panel, flagged
		}
		volumes := series(60, 2e6)
		for i := 20; i < 24; i++ {
			volumes[i] = 0
		}
		view := buildPanel(t, closes, volumes)
		ok, reason := filter.Check(view, "AAA")
		assert.False(t, ok)
		assert.Contains(t, reason, "missing")
	})

	t.Run("unknown ticker is rejected", func(t *testing.T) {
		view := buildPanel(t, series(60, 100), series(60, 2e6))
		ok, reason := filter.Check(view, "ZZZ")
		assert.False(t, ok)
		assert.Contains(t, reason, "unknown")
	})

	t.Run("short window is rejected", func(t *testing.T) {
		view := buildPanel(t, series(10, 100), series(10, 2e6))
		ok, _ := filter.Check(view, "AAA")
		assert.False(t, ok)
	})
}

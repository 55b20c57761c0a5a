package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/pkg/logger"
)

func TestSyntheticShape(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	sectors := map[string]string{"ALPHA": "Technology", "BRAVO": "Financials"}
	provider := NewSynthetic(42, sectors, log)

	p, err := provider.Load(context.Background(), []string{"ALPHA", "BRAVO", "CHARLIE"}, 300)
	require.NoError(t, err)

	assert.Equal(t, 300, p.Len())
	assert.ElementsMatch(t, []string{"ALPHA", "BRAVO", "CHARLIE"}, p.Tickers())
	assert.Equal(t, "Technology", p.Sector("ALPHA"))
	assert.Equal(t, "Unknown", p.Sector("CHARLIE"))
	assert.True(t, p.HasVolIndex())

	full := p.Full()
	for _, ticker := range p.Tickers() {
		closes := full.Closes(ticker)
		volumes := full.Volumes(ticker)
		require.Len(t, closes, 300)
		require.Len(t, volumes, 300)
		for i := range closes {
			assert.Greater(t, closes[i], 0.0)
			assert.Greater(t, volumes[i], 0.0)
		}
	}
	for _, v := range full.VolIndex() {
		assert.Greater(t, v, 0.0)
	}

	// Only business days, strictly increasing.
	dates := p.Dates()
	for i, d := range dates {
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
		if i > 0 {
			assert.True(t, d.After(dates[i-1]))
		}
	}
}

func TestSyntheticDeterminism(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	sectors := map[string]string{"ALPHA": "Technology", "BRAVO": "Financials"}
	symbols := []string{"ALPHA", "BRAVO"}

	first, err := NewSynthetic(42, sectors, log).Load(context.Background(), symbols, 200)
	require.NoError(t, err)
	second, err := NewSynthetic(42, sectors, log).Load(context.Background(), symbols, 200)
	require.NoError(t, err)

	for _, ticker := range symbols {
		assert.Equal(t, first.Full().Closes(ticker), second.Full().Closes(ticker), ticker)
		assert.Equal(t, first.Full().Volumes(ticker), second.Full().Volumes(ticker), ticker)
	}
	assert.Equal(t, first.Full().Benchmark(), second.Full().Benchmark())
}

func TestSyntheticSeedChangesPanel(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	symbols := []string{"ALPHA", "BRAVO"}

	first, err := NewSynthetic(1, nil, log).Load(context.Background(), symbols, 100)
	require.NoError(t, err)
	second, err := NewSynthetic(2, nil, log).Load(context.Background(), symbols, 100)
	require.NoError(t, err)

	assert.NotEqual(t, first.Full().Closes("ALPHA"), second.Full().Closes("ALPHA"))
}

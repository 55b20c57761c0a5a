package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/pkg/logger"
)

type testBar struct {
	date   string
	close  float64
	volume interface{} // int64 or nil
}

func writeHistoryDB(t *testing.T, dir, symbol string, bars []testBar) {
	t.Helper()
	path := filepath.Join(dir, symbol+".db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			date TEXT PRIMARY KEY,
			open_price REAL,
			high_price REAL,
			low_price REAL,
			close_price REAL,
			volume INTEGER
		)
	`)
	require.NoError(t, err)

	for _, bar := range bars {
		_, err := db.Exec(
			"INSERT INTO daily_prices (date, open_price, high_price, low_price, close_price, volume) VALUES (?, ?, ?, ?, ?, ?)",
			bar.date, bar.close*0.99, bar.close*1.01, bar.close*0.98, bar.close, bar.volume,
		)
		require.NoError(t, err)
	}
}

// testWeek is five consecutive business days.
func testWeek() []string {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // a Monday
	out := make([]string, 5)
	for i := range out {
		out[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

func TestHistoryDBLoad(t *testing.T) {
	dir := t.TempDir()
	days := testWeek()

	benchBars := make([]testBar, len(days))
	for i, d := range days {
		benchBars[i] = testBar{date: d, close: 500 + float64(i), volume: int64(1_000_000)}
	}
	writeHistoryDB(t, dir, "SPY_US", benchBars)

	// AAPL misses the Wednesday bar; the panel forward-fills it.
	var aaplBars []testBar
	for i, d := range days {
		if i == 2 {
			continue
		}
		aaplBars = append(aaplBars, testBar{date: d, close: 180 + float64(i), volume: int64(50_000_000)})
	}
	writeHistoryDB(t, dir, "AAPL_US", aaplBars)

	provider := NewHistoryDB(HistoryDBConfig{
		HistoryDir:      dir,
		BenchmarkSymbol: "SPY.US",
		Sectors:         map[string]string{"AAPL.US": "Technology"},
	}, logger.New(logger.Config{Level: "error"}))

	p, err := provider.Load(context.Background(), []string{"AAPL.US"}, 10)
	require.NoError(t, err)

	assert.Equal(t, len(days), p.Len())
	assert.Equal(t, "Technology", p.Sector("AAPL.US"))
	assert.False(t, p.HasVolIndex())

	full := p.Full()
	closes := full.Closes("AAPL.US")
	assert.InDelta(t, 180, closes[0], 1e-9)
	assert.InDelta(t, 181, closes[1], 1e-9)
	assert.InDelta(t, 181, closes[2], 1e-9) // forward-filled from Tuesday
	assert.InDelta(t, 183, closes[3], 1e-9)
	assert.Equal(t, 1, full.FilledCount("AAPL.US"))

	// The missing bar's volume reads as zero, not filled.
	assert.Zero(t, full.Volumes("AAPL.US")[2])
}

func TestHistoryDBLoadVolIndex(t *testing.T) {
	dir := t.TempDir()
	days := testWeek()

	benchBars := make([]testBar, len(days))
	for i, d := range days {
		benchBars[i] = testBar{date: d, close: 500 + float64(i), volume: int64(1_000_000)}
	}
	writeHistoryDB(t, dir, "SPY_US", benchBars)
	writeHistoryDB(t, dir, "AAPL_US", benchBars)

	// The vol index misses a day mid-week; Load carries the last level.
	vixBars := []testBar{
		{date: days[0], close: 15},
		{date: days[1], close: 16},
		{date: days[3], close: 18},
		{date: days[4], close: 17},
	}
	writeHistoryDB(t, dir, "VIX_US", vixBars)

	provider := NewHistoryDB(HistoryDBConfig{
		HistoryDir:      dir,
		BenchmarkSymbol: "SPY.US",
		VolIndexSymbol:  "VIX.US",
	}, logger.New(logger.Config{Level: "error"}))

	p, err := provider.Load(context.Background(), []string{"AAPL.US"}, 10)
	require.NoError(t, err)
	require.True(t, p.HasVolIndex())

	vix := p.Full().VolIndex()
	assert.InDelta(t, 16, vix[2], 1e-9)
	assert.InDelta(t, 18, vix[3], 1e-9)
}

func TestHistoryDBLimitKeepsNewestBars(t *testing.T) {
	dir := t.TempDir()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []testBar
	d := start
	for len(bars) < 20 {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			bars = append(bars, testBar{
				date:   d.Format("2006-01-02"),
				close:  100 + float64(len(bars)),
				volume: int64(1_000_000),
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	writeHistoryDB(t, dir, "SPY_US", bars)

	provider := NewHistoryDB(HistoryDBConfig{
		HistoryDir:      dir,
		BenchmarkSymbol: "SPY.US",
	}, logger.New(logger.Config{Level: "error"}))

	prices, err := provider.GetDailyPrices(context.Background(), "SPY.US", 5)
	require.NoError(t, err)
	require.Len(t, prices, 5)

	// Chronological order, newest five bars.
	for i := range prices {
		assert.Equal(t, bars[15+i].date, prices[i].Date, fmt.Sprintf("bar %d", i))
		assert.InDelta(t, bars[15+i].close, prices[i].Close, 1e-9)
	}
}

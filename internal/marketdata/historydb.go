package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/panel"
)

// HistoryDB loads price history from per-symbol SQLite databases. Each
// symbol has its own file under historyDir, named AAPL_US.db for AAPL.US.
type HistoryDB struct {
	historyDir      string
	benchmarkSymbol string
	volIndexSymbol  string
	sectors         map[string]string
	log             zerolog.Logger
}

// HistoryDBConfig configures a HistoryDB provider.
type HistoryDBConfig struct {
	HistoryDir      string
	BenchmarkSymbol string
	VolIndexSymbol  string // optional; "" disables the vol-index series
	Sectors         map[string]string
}

// NewHistoryDB creates a new history database provider.
func NewHistoryDB(cfg HistoryDBConfig, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		historyDir:      cfg.HistoryDir,
		benchmarkSymbol: cfg.BenchmarkSymbol,
		volIndexSymbol:  cfg.VolIndexSymbol,
		sectors:         cfg.Sectors,
		log:             log.With().Str("component", "history_db").Logger(),
	}
}

// DailyPrice represents a daily OHLCV price point
type DailyPrice struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume *int64  `json:"volume,omitempty"`
}

// Load reads daily prices for each symbol plus the benchmark and assembles
// an aligned panel. The benchmark's date index is authoritative: symbol bars
// on other dates are dropped, and symbols missing a benchmark date get a NaN
// that panel validation fills or rejects.
func (h *HistoryDB) Load(ctx context.Context, symbols []string, days int) (*panel.Panel, error) {
	bench, err := h.GetDailyPrices(ctx, h.benchmarkSymbol, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark %s: %w", h.benchmarkSymbol, err)
	}
	if len(bench) == 0 {
		return nil, fmt.Errorf("no benchmark history for %s", h.benchmarkSymbol)
	}

	dates := make([]time.Time, 0, len(bench))
	benchmark := make([]float64, 0, len(bench))
	index := make(map[string]int, len(bench))
	for _, p := range bench {
		d, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, fmt.Errorf("bad benchmark date %q: %w", p.Date, err)
		}
		index[p.Date] = len(dates)
		dates = append(dates, d)
		benchmark = append(benchmark, p.Close)
	}

	in := panel.Input{
		Dates:     dates,
		Closes:    make(map[string][]float64, len(symbols)),
		Volumes:   make(map[string][]float64, len(symbols)),
		Opens:     make(map[string][]float64, len(symbols)),
		Highs:     make(map[string][]float64, len(symbols)),
		Lows:      make(map[string][]float64, len(symbols)),
		Benchmark: benchmark,
		Sectors:   h.sectors,
	}

	for _, symbol := range symbols {
		prices, err := h.GetDailyPrices(ctx, symbol, days)
		if err != nil {
			return nil, err
		}

		closes := nanSlice(len(dates))
		volumes := nanSlice(len(dates))
		opens := nanSlice(len(dates))
		highs := nanSlice(len(dates))
		lows := nanSlice(len(dates))
		for _, p := range prices {
			i, ok := index[p.Date]
			if !ok {
				continue
			}
			closes[i] = p.Close
			opens[i] = p.Open
			highs[i] = p.High
			lows[i] = p.Low
			if p.Volume != nil {
				volumes[i] = float64(*p.Volume)
			}
		}

		in.Closes[symbol] = closes
		in.Volumes[symbol] = volumes
		in.Opens[symbol] = opens
		in.Highs[symbol] = highs
		in.Lows[symbol] = lows
	}

	if h.volIndexSymbol != "" {
		vix, err := h.GetDailyPrices(ctx, h.volIndexSymbol, days)
		if err != nil {
			h.log.Warn().Err(err).Str("symbol", h.volIndexSymbol).
				Msg("Volatility index unavailable, continuing without it")
		} else {
			volIndex := make([]float64, len(dates))
			last := math.NaN()
			for _, p := range vix {
				if i, ok := index[p.Date]; ok {
					volIndex[i] = p.Close
				}
			}
			for i, v := range volIndex {
				if v > 0 {
					last = v
				} else {
					volIndex[i] = last
				}
			}
			if !math.IsNaN(volIndex[0]) {
				in.VolIndex = volIndex
			}
		}
	}

	h.log.Debug().
		Int("symbols", len(symbols)).
		Int("days", len(dates)).
		Msg("Loaded price panel from history databases")

	return panel.New(in)
}

// GetDailyPrices fetches daily price data for a symbol, oldest first.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, symbol string, limit int) ([]DailyPrice, error) {
	db, err := h.openHistoryDB(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `
		SELECT date, close_price as close, high_price as high, low_price as low, open_price as open, volume
		FROM daily_prices
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var volume sql.NullInt64

		err := rows.Scan(&p.Date, &p.Close, &p.High, &p.Low, &p.Open, &volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		if volume.Valid {
			p.Volume = &volume.Int64
		}

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	// Reverse to chronological order
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}

	return prices, nil
}

// openHistoryDB opens the history database for a symbol
func (h *HistoryDB) openHistoryDB(symbol string) (*sql.DB, error) {
	// Convert symbol format: AAPL.US -> AAPL_US
	dbSymbol := strings.ReplaceAll(symbol, ".", "_")

	dbPath := filepath.Join(h.historyDir, dbSymbol+".db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database for %s: %w", symbol, err)
	}

	// Verify database is accessible
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database for %s: %w", symbol, err)
	}

	return db, nil
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

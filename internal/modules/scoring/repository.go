package scoring

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/database"
	"github.com/aristath/quantfolio/internal/domain"
)

// Repository persists factor scores to the application database. The
// refresh daemon writes the latest batch each night; consumers read the
// most recent snapshot per symbol.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a score repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "score_repository").Logger(),
	}
}

// SaveScores upserts a batch of factor scores in one transaction.
func (r *Repository) SaveScores(scores map[string]domain.FactorScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO scores (symbol, as_of, composite, trend, mean_reversion, capital_flow, risk, regime, robustness)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, as_of) DO UPDATE SET
			composite = excluded.composite,
			trend = excluded.trend,
			mean_reversion = excluded.mean_reversion,
			capital_flow = excluded.capital_flow,
			risk = excluded.risk,
			regime = excluded.regime,
			robustness = excluded.robustness
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare score upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range scores {
		var robustness interface{}
		if s.Robustness != nil {
			robustness = *s.Robustness
		}
		_, err := stmt.Exec(
			s.Ticker,
			s.AsOf.Format("2006-01-02"),
			s.Composite,
			s.Trend,
			s.MeanReversion,
			s.CapitalFlow,
			s.Risk,
			string(s.Regime),
			robustness,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert score for %s: %w", s.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}

	r.log.Info().Int("count", len(scores)).Msg("Saved factor scores")
	return nil
}

// LatestScores returns the most recent persisted score per symbol.
func (r *Repository) LatestScores() (map[string]domain.FactorScore, error) {
	rows, err := r.db.Query(`
		SELECT s.symbol, s.as_of, s.composite, s.trend, s.mean_reversion, s.capital_flow, s.risk, s.regime, s.robustness
		FROM scores s
		JOIN (SELECT symbol, MAX(as_of) AS as_of FROM scores GROUP BY symbol) latest
			ON latest.symbol = s.symbol AND latest.as_of = s.as_of
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.FactorScore)
	for rows.Next() {
		var s domain.FactorScore
		var asOf, regime string
		var robustness *float64

		err := rows.Scan(&s.Ticker, &asOf, &s.Composite, &s.Trend, &s.MeanReversion, &s.CapitalFlow, &s.Risk, &regime, &robustness)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}

		if t, err := parseDate(asOf); err == nil {
			s.AsOf = t
		}
		s.Regime = domain.Regime(regime)
		s.Robustness = robustness
		out[s.Ticker] = s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return out, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

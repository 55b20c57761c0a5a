package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/marketdata"
	"github.com/aristath/quantfolio/internal/modules/scoring"
)

// RefreshJob recomputes the latest factor scores from fresh history and
// persists them to the application database.
type RefreshJob struct {
	provider marketdata.Provider
	engine   *scoring.Engine
	repo     *scoring.Repository
	symbols  []string
	days     int
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRefreshJob creates the nightly score-refresh job.
func NewRefreshJob(provider marketdata.Provider, engine *scoring.Engine, repo *scoring.Repository, symbols []string, days int, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		provider: provider,
		engine:   engine,
		repo:     repo,
		symbols:  symbols,
		days:     days,
		timeout:  10 * time.Minute,
		log:      log.With().Str("component", "refresh_job").Logger(),
	}
}

// Name returns the job identifier.
func (j *RefreshJob) Name() string { return "score_refresh" }

// Run loads the latest panel, scores every symbol and saves the batch.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	p, err := j.provider.Load(ctx, j.symbols, j.days)
	if err != nil {
		return fmt.Errorf("failed to load panel: %w", err)
	}

	scores := j.engine.ComputeScores(p.Full())
	if len(scores) == 0 {
		j.log.Warn().Msg("No scores produced, nothing to save")
		return nil
	}

	if err := j.repo.SaveScores(scores); err != nil {
		return fmt.Errorf("failed to save scores: %w", err)
	}

	j.log.Info().Int("scored", len(scores)).Msg("Score refresh finished")
	return nil
}

// Package marketdata loads aligned price history into a panel, either from
// per-symbol SQLite history databases or from a seeded synthetic generator.
package marketdata

import (
	"context"

	"github.com/aristath/quantfolio/internal/panel"
)

// Provider loads a price panel for a set of symbols plus a benchmark.
type Provider interface {
	// Load returns an aligned panel covering at most the last `days`
	// business days for the given symbols.
	Load(ctx context.Context, symbols []string, days int) (*panel.Panel, error)
}

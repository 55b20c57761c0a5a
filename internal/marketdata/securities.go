package marketdata

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/database"
)

// Security is one tradeable instrument in the scored universe.
type Security struct {
	Symbol string `json:"symbol"`
	Sector string `json:"sector"`
}

// SecurityRepository manages the scored universe in the application
// database: which symbols get refreshed nightly and their sector labels.
type SecurityRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSecurityRepository creates a security repository.
func NewSecurityRepository(db *database.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{
		db:  db,
		log: log.With().Str("repo", "security").Logger(),
	}
}

// Upsert inserts or updates one security.
func (r *SecurityRepository) Upsert(sec Security) error {
	symbol := strings.ToUpper(strings.TrimSpace(sec.Symbol))
	if symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	sector := sec.Sector
	if sector == "" {
		sector = "Unknown"
	}

	_, err := r.db.Exec(`
		INSERT INTO securities (symbol, sector) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET sector = excluded.sector
	`, symbol, sector)
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", symbol, err)
	}
	return nil
}

// All returns every security in the universe, ordered by symbol.
func (r *SecurityRepository) All() ([]Security, error) {
	rows, err := r.db.Query("SELECT symbol, sector FROM securities ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var out []Security
	for rows.Next() {
		var sec Security
		if err := rows.Scan(&sec.Symbol, &sec.Sector); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}
	return out, nil
}

// Sectors returns the symbol → sector map for the whole universe.
func (r *SecurityRepository) Sectors() (map[string]string, error) {
	secs, err := r.All()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(secs))
	for _, s := range secs {
		out[s.Symbol] = s.Sector
	}
	return out, nil
}

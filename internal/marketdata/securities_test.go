package marketdata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/database"
	"github.com/aristath/quantfolio/pkg/logger"
)

func testSecurityRepo(t *testing.T) *SecurityRepository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return NewSecurityRepository(db, logger.New(logger.Config{Level: "error"}))
}

func TestSecurityRepositoryUpsert(t *testing.T) {
	repo := testSecurityRepo(t)

	require.NoError(t, repo.Upsert(Security{Symbol: " aapl.us ", Sector: "Technology"}))
	require.NoError(t, repo.Upsert(Security{Symbol: "MSFT.US"}))

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAPL.US", all[0].Symbol)
	assert.Equal(t, "Technology", all[0].Sector)
	assert.Equal(t, "MSFT.US", all[1].Symbol)
	assert.Equal(t, "Unknown", all[1].Sector)

	// Re-upserting updates the sector in place.
	require.NoError(t, repo.Upsert(Security{Symbol: "MSFT.US", Sector: "Technology"}))
	sectors, err := repo.Sectors()
	require.NoError(t, err)
	require.Len(t, sectors, 2)
	assert.Equal(t, "Technology", sectors["MSFT.US"])
}

func TestSecurityRepositoryRejectsEmptySymbol(t *testing.T) {
	repo := testSecurityRepo(t)
	assert.Error(t, repo.Upsert(Security{Symbol: "   "}))
}

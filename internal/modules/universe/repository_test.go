package universe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hoangnph/vnstock-sub000/internal/database"
	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	clock := domain.ClockFunc(func() time.Time {
		return time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	})
	return NewRepository(db.Conn(), clock, zerolog.Nop())
}

func TestUpsert_NewStock(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.Upsert(domain.Stock{
		Symbol:   "acb",
		Name:     "Asia Commercial Bank",
		Exchange: "HOSE",
		Sector:   "Banking",
		Rank:     3,
		IsActive: true,
	}))

	stock, err := repo.GetBySymbol("ACB")
	require.NoError(t, err)
	require.NotNil(t, stock)
	assert.Equal(t, "ACB", stock.Symbol)
	assert.Equal(t, domain.StockNew, stock.Status)
	assert.Equal(t, "2024-01-05", domain.DateString(stock.FirstAppeared))
	assert.Equal(t, 0, stock.WeeksActive)
}

func TestUpsert_PreservesFirstAppearedAndStatus(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.Upsert(domain.Stock{Symbol: "ACB", IsActive: true}))
	require.NoError(t, repo.TouchActive("ACB"))
	require.NoError(t, repo.TouchActive("ACB"))

	// Re-upsert with new metadata must not reset lifecycle fields
	require.NoError(t, repo.Upsert(domain.Stock{Symbol: "ACB", Name: "Renamed", IsActive: true}))

	stock, err := repo.GetBySymbol("ACB")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stock.Name)
	assert.Equal(t, 2, stock.WeeksActive)
	assert.Equal(t, domain.StockActive, stock.Status)
}

func TestTouchActive_PromotesNewToActive(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.Upsert(domain.Stock{Symbol: "FPT", IsActive: true}))

	// First touch: weeks_active 0 -> 1, still NEW
	require.NoError(t, repo.TouchActive("FPT"))
	stock, err := repo.GetBySymbol("FPT")
	require.NoError(t, err)
	assert.Equal(t, domain.StockNew, stock.Status)

	// Second touch promotes
	require.NoError(t, repo.TouchActive("FPT"))
	stock, err = repo.GetBySymbol("FPT")
	require.NoError(t, err)
	assert.Equal(t, domain.StockActive, stock.Status)
}

func TestDeactivateAndListActive(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.Upsert(domain.Stock{Symbol: "ACB", Rank: 2, IsActive: true}))
	require.NoError(t, repo.Upsert(domain.Stock{Symbol: "FPT", Rank: 1, IsActive: true}))
	require.NoError(t, repo.Upsert(domain.Stock{Symbol: "HPG", Rank: 3, IsActive: true}))

	require.NoError(t, repo.Deactivate("HPG"))

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "FPT", active[0].Symbol) // ordered by rank
	assert.Equal(t, "ACB", active[1].Symbol)
}

func TestProvider_ActiveSymbols(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.Upsert(domain.Stock{Symbol: "ACB", IsActive: true}))

	provider := NewProvider(repo)
	stocks, err := provider.ActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Len(t, stocks, 1)
}

func TestProvider_Cancelled(t *testing.T) {
	repo := testRepo(t)
	provider := NewProvider(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.ActiveSymbols(ctx)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestGetBySymbol_NotFound(t *testing.T) {
	repo := testRepo(t)
	stock, err := repo.GetBySymbol("ZZZ")
	require.NoError(t, err)
	assert.Nil(t, stock)
}

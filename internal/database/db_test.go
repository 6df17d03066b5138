package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", t.Name(), name),
		Profile: ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_MarketSchema(t *testing.T) {
	db := newMemoryDB(t, "market")
	require.NoError(t, db.Migrate())

	// Re-running is idempotent
	require.NoError(t, db.Migrate())

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN
		('stock_prices', 'foreign_trades', 'stock_update_tracking', 'frame_cache')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMigrate_AnalysisSchema(t *testing.T) {
	db := newMemoryDB(t, "analysis")
	require.NoError(t, db.Migrate())

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN
		('analysis_configurations', 'indicator_calculations', 'analysis_results', 'signal_results', 'pipeline_runs')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestMigrate_UnknownName(t *testing.T) {
	db := newMemoryDB(t, "nonexistent")
	assert.NoError(t, db.Migrate())
}

func TestStockPrices_CheckConstraints(t *testing.T) {
	db := newMemoryDB(t, "market")
	require.NoError(t, db.Migrate())

	// Valid bar inserts fine
	_, err := db.Exec(`INSERT INTO stock_prices
		(symbol, time, open, high, low, close, volume, value, source, created_at, updated_at)
		VALUES ('ACB', 1704153600, 10, 11, 9, 10.5, 1000, 10500, 'VND', 'x', 'x')`)
	require.NoError(t, err)

	// close <= 0 rejected by CHECK
	_, err = db.Exec(`INSERT INTO stock_prices
		(symbol, time, open, high, low, close, volume, value, source, created_at, updated_at)
		VALUES ('ACB', 1704240000, 10, 11, 9, 0, 1000, 0, 'VND', 'x', 'x')`)
	require.Error(t, err)

	// high < low rejected by CHECK
	_, err = db.Exec(`INSERT INTO stock_prices
		(symbol, time, open, high, low, close, volume, value, source, created_at, updated_at)
		VALUES ('ACB', 1704240000, 10, 9, 11, 10, 1000, 10000, 'VND', 'x', 'x')`)
	require.Error(t, err)

	// duplicate (symbol, time) rejected by UNIQUE
	_, err = db.Exec(`INSERT INTO stock_prices
		(symbol, time, open, high, low, close, volume, value, source, created_at, updated_at)
		VALUES ('ACB', 1704153600, 10, 11, 9, 10.5, 1000, 10500, 'VND', 'x', 'x')`)
	require.Error(t, err)
}

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	db := newMemoryDB(t, "market")
	require.NoError(t, db.Migrate())

	// Commit path
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO stock_update_tracking
			(symbol, source, last_updated_date, created_at, updated_at)
			VALUES ('ACB', 'VND', '2010-01-01', 'x', 'x')`)
		return err
	})
	require.NoError(t, err)

	// Rollback path
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO stock_update_tracking
			(symbol, source, last_updated_date, created_at, updated_at)
			VALUES ('FPT', 'VND', '2010-01-01', 'x', 'x')`); err != nil {
			return err
		}
		return fmt.Errorf("forced failure")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM stock_update_tracking`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestHealthCheck(t *testing.T) {
	db := newMemoryDB(t, "market")
	require.NoError(t, db.Migrate())
	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.QuickCheck(context.Background()))
}

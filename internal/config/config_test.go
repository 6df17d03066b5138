package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VNSTOCK_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Market.Timezone)
	assert.Equal(t, 16, cfg.Market.CloseHour)
	assert.Equal(t, "2010-01-01", cfg.Market.GenesisDate.Format("2006-01-02"))
	assert.Equal(t, 4, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.SymbolDelay)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.BatchDelay)
	assert.Equal(t, 365, cfg.Provider.EmptyWindowStride)
	assert.Equal(t, 3, cfg.Provider.MaxEmptyWindows)
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VNSTOCK_DATA_DIR", t.TempDir())
	t.Setenv("PIPELINE_BATCH_SIZE", "8")
	t.Setenv("PIPELINE_SYMBOL_DELAY", "500ms")
	t.Setenv("MARKET_GENESIS_DATE", "2015-06-01")
	t.Setenv("PROVIDER_REQUESTS_PER_SECOND", "5.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Pipeline.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.SymbolDelay)
	assert.Equal(t, "2015-06-01", cfg.Market.GenesisDate.Format("2006-01-02"))
	assert.Equal(t, 5.5, cfg.Provider.RequestsPerSecond)
}

func TestLoad_InvalidGenesis(t *testing.T) {
	t.Setenv("VNSTOCK_DATA_DIR", t.TempDir())
	t.Setenv("MARKET_GENESIS_DATE", "not-a-date")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_BackupRequiresBucket(t *testing.T) {
	t.Setenv("VNSTOCK_DATA_DIR", t.TempDir())
	t.Setenv("BACKUP_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKUP_S3_BUCKET")
}

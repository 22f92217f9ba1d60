package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "@every 1m", cfg.Market.KeepAlive)
	market := cfg.Market
	market.KeepAlive = ""
	assert.Equal(t, DefaultMarket(), market)
	assert.Equal(t, DefaultStocks(), cfg.Stocks)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfig_FileOverridesOnlyGivenKeys(t *testing.T) {
	dir := t.TempDir()
	content := `
market:
  tick_seconds: 10
  seed: 42
stocks:
  - { code: ABC, name: Alphabet, price: 120 }
database:
  dsn: "file::memory:"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.Market.TickSeconds)
	assert.Equal(t, int64(42), cfg.Market.Seed)
	// Untouched constants keep their defaults.
	assert.Equal(t, DefaultMarket().PriceImpact, cfg.Market.PriceImpact)
	assert.Equal(t, DefaultMarket().MaxSpread, cfg.Market.MaxSpread)
	require.Len(t, cfg.Stocks, 1)
	assert.Equal(t, Stock{Code: "ABC", Name: "Alphabet", Price: 120}, cfg.Stocks[0])
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9191")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestDefaultStocks_UniqueCodes(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range DefaultStocks() {
		assert.False(t, seen[s.Code], "duplicate code %s", s.Code)
		seen[s.Code] = true
		assert.Positive(t, s.Price)
	}
	assert.Len(t, seen, 7)
}

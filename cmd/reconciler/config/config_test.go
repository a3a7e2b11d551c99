package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"transfer-reconciliation-service/internal/matcher"
	"transfer-reconciliation-service/internal/reporter"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 5005, cfg.Server.Port)
	assert.Equal(t, ":5005", cfg.Addr())
	assert.Equal(t, 95, cfg.Matching.AutoLinkThreshold)
	assert.Equal(t, 3, cfg.Matching.DateToleranceDays)
	assert.Equal(t, "greedy", cfg.Matching.Strategy)
	assert.Equal(t, "bank_transfer", cfg.Matching.TransferCategoryCode)
	assert.Equal(t, matcher.DefaultKeywords, cfg.Matching.Keywords)
	assert.Equal(t, 8, cfg.Rates.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Rates.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Empty(t, cfg.Redis.DSN)

	transfer, err := cfg.TransferConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, transfer.PendingToleranceDays)
	assert.True(t, transfer.PendingToleranceAmount.Equal(decimal.RequireFromString("0.50")))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TRANSFERS_SERVER_PORT", "8088")
	t.Setenv("TRANSFERS_DATABASE_DSN", "postgres://localhost/transfers")
	t.Setenv("TRANSFERS_MATCHING_AUTO_LINK_THRESHOLD", "90")
	t.Setenv("TRANSFERS_MATCHING_STRATEGY", "optimal")
	t.Setenv("TRANSFERS_RATES_TIMEOUT", "3s")
	t.Setenv("TRANSFERS_PENDING_DEFAULT_TOLERANCE_AMOUNT", "1.25")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/transfers", cfg.Database.DSN)
	assert.Equal(t, 3*time.Second, cfg.Rates.Timeout)

	engine, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 90, engine.Transfer.AutoLinkThreshold)
	assert.Equal(t, matcher.StrategyOptimal, engine.Transfer.Strategy)
	assert.True(t, engine.Transfer.PendingToleranceAmount.Equal(decimal.RequireFromString("1.25")))
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfers.yaml")
	content := `
server:
  port: 9000
redis:
  dsn: redis://localhost:6379/0
  ttl: 1h
matching:
  date_tolerance_days: 2
  keywords: [TRANSFER, WIRE]
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := NewViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.DSN)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 2, cfg.Matching.DateToleranceDays)
	assert.Equal(t, []string{"TRANSFER", "WIRE"}, cfg.Matching.Keywords)
	assert.Equal(t, "debug", string(cfg.Log.Level))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero concurrency", func(c *Config) { c.Rates.Concurrency = 0 }},
		{"zero timeout", func(c *Config) { c.Rates.Timeout = 0 }},
		{"threshold above 100", func(c *Config) { c.Matching.AutoLinkThreshold = 101 }},
		{"negative tolerance", func(c *Config) { c.Matching.DateToleranceDays = -1 }},
		{"unknown strategy", func(c *Config) { c.Matching.Strategy = "random" }},
		{"missing category", func(c *Config) { c.Matching.TransferCategoryCode = "" }},
		{"bad amount", func(c *Config) { c.Pending.DefaultToleranceAmount = "fifty cents" }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(NewViper())
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format      string
		expected    reporter.OutputFormat
		expectError bool
	}{
		{"console", reporter.FormatConsole, false},
		{"JSON", reporter.FormatJSON, false},
		{"csv", reporter.FormatCSV, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			config, err := CreateReportConfig(tt.format)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, config.Format)
			assert.NoError(t, config.Validate())
		})
	}
}

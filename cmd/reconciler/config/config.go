// Package config loads the service configuration from a config file,
// TRANSFERS_* environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"transfer-reconciliation-service/internal/fxrate"
	"transfer-reconciliation-service/internal/matcher"
	"transfer-reconciliation-service/internal/reconciler"
	"transfer-reconciliation-service/internal/reporter"
	"transfer-reconciliation-service/internal/store"
	"transfer-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TRANSFERS_DATABASE_DSN.
const EnvPrefix = "TRANSFERS"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database store.Config   `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Matching MatchingConfig `mapstructure:"matching"`
	Pending  PendingConfig  `mapstructure:"pending"`
	Log      logger.Config  `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RedisConfig enables the Redis rate tier when DSN is set.
type RedisConfig struct {
	DSN string        `mapstructure:"dsn"`
	TTL time.Duration `mapstructure:"ttl"`
}

// RatesConfig configures the exchange-rate provider and prefetch fan-out.
type RatesConfig struct {
	fxrate.HTTPProviderConfig `mapstructure:",squash"`
	Concurrency               int `mapstructure:"concurrency"`
}

type MatchingConfig struct {
	AutoLinkThreshold    int      `mapstructure:"auto_link_threshold"`
	DateToleranceDays    int      `mapstructure:"date_tolerance_days"`
	Strategy             string   `mapstructure:"strategy"`
	TransferCategoryCode string   `mapstructure:"transfer_category_code"`
	Keywords             []string `mapstructure:"keywords"`
}

// PendingConfig holds the tolerances for pending transfers that carry none.
type PendingConfig struct {
	DefaultToleranceDays   int    `mapstructure:"default_tolerance_days"`
	DefaultToleranceAmount string `mapstructure:"default_tolerance_amount"`
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	transfer := matcher.DefaultTransferConfig()
	provider := fxrate.DefaultHTTPProviderConfig()
	db := store.DefaultConfig()
	log := logger.DefaultConfig()

	v.SetDefault("server.port", 5005)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)

	v.SetDefault("redis.dsn", "")
	v.SetDefault("redis.ttl", fxrate.DefaultRedisTTL)

	v.SetDefault("rates.provider_url", "")
	v.SetDefault("rates.timeout", provider.Timeout)
	v.SetDefault("rates.max_retries", provider.MaxRetries)
	v.SetDefault("rates.retry_interval", provider.RetryInterval)
	v.SetDefault("rates.concurrency", fxrate.DefaultConcurrency)

	v.SetDefault("matching.auto_link_threshold", transfer.AutoLinkThreshold)
	v.SetDefault("matching.date_tolerance_days", transfer.DateToleranceDays)
	v.SetDefault("matching.strategy", string(transfer.Strategy))
	v.SetDefault("matching.transfer_category_code", reconciler.DefaultTransferCategoryCode)
	v.SetDefault("matching.keywords", transfer.Keywords)

	v.SetDefault("pending.default_tolerance_days", transfer.PendingToleranceDays)
	v.SetDefault("pending.default_tolerance_amount", transfer.PendingToleranceAmount.String())

	v.SetDefault("log.level", string(log.Level))
	v.SetDefault("log.format", string(log.Format))
	v.SetDefault("log.output", string(log.Output))
	v.SetDefault("log.file", "")
	v.SetDefault("log.caller_info", false)
}

// NewViper returns a viper instance wired to the TRANSFERS_ environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. The database DSN is checked by the commands
// that need it.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Rates.Concurrency <= 0 {
		return fmt.Errorf("rates.concurrency must be positive, got %d", c.Rates.Concurrency)
	}
	if c.Rates.Timeout <= 0 {
		return fmt.Errorf("rates.timeout must be positive, got %s", c.Rates.Timeout)
	}
	if c.Matching.TransferCategoryCode == "" {
		return fmt.Errorf("matching.transfer_category_code is required")
	}
	if _, err := c.TransferConfig(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}
	return nil
}

// TransferConfig builds the matcher configuration.
func (c *Config) TransferConfig() (*matcher.TransferConfig, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.Pending.DefaultToleranceAmount))
	if err != nil {
		return nil, fmt.Errorf("pending.default_tolerance_amount %q is not a number", c.Pending.DefaultToleranceAmount)
	}

	transfer := &matcher.TransferConfig{
		AutoLinkThreshold:      c.Matching.AutoLinkThreshold,
		DateToleranceDays:      c.Matching.DateToleranceDays,
		Keywords:               c.Matching.Keywords,
		Strategy:               matcher.StrategyName(c.Matching.Strategy),
		PendingToleranceDays:   c.Pending.DefaultToleranceDays,
		PendingToleranceAmount: amount,
	}
	if err := transfer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}
	return transfer, nil
}

// EngineConfig builds the detection engine configuration.
func (c *Config) EngineConfig() (*reconciler.Config, error) {
	transfer, err := c.TransferConfig()
	if err != nil {
		return nil, err
	}
	return &reconciler.Config{
		Transfer:             transfer,
		TransferCategoryCode: c.Matching.TransferCategoryCode,
		RateConcurrency:      c.Rates.Concurrency,
	}, nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))

	switch config.Format {
	case reporter.FormatConsole:
		config.SortByScore = true
	case reporter.FormatJSON:
		config.MaxItems = 0
	case reporter.FormatCSV:
		config.MaxItems = 0
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		return nil, fmt.Errorf("unsupported output format %q (use console, json or csv)", format)
	}

	return config, nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Updater  Updater  `mapstructure:"updater"`
	External External `mapstructure:"external"`
	Market   Market   `mapstructure:"market"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port            int `mapstructure:"port"`
	RateLimitPerMin int `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst  int `mapstructure:"rate_limit_burst"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Updater holds the configuration for the scheduled recompute job.
type Updater struct {
	// UpdateHours are the local hours of day (0-23) at which a fresh
	// snapshot is computed. Defaults to midnight and noon.
	UpdateHours []int `mapstructure:"update_hours"`
}

// External holds the configuration for the external market data source.
type External struct {
	Enabled        bool    `mapstructure:"enabled"`
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

// Company describes one entry of the fixed company roster. The roster is
// seeded into the database at first startup and never mutated afterwards.
type Company struct {
	Name        string   `mapstructure:"name"`
	BaseSales   int      `mapstructure:"base_sales"`
	MarketShare float64  `mapstructure:"market_share"`
	BaseRevenue float64  `mapstructure:"base_revenue"`
	Volatility  float64  `mapstructure:"volatility"`
	Models      []string `mapstructure:"models"`
}

// Validation bounds a sane roster.
type Validation struct {
	MinDailySales int `mapstructure:"min_daily_sales"`
	MaxDailySales int `mapstructure:"max_daily_sales"`
}

// Market holds the company roster and its validation bounds.
type Market struct {
	Companies  []Company  `mapstructure:"companies"`
	Validation Validation `mapstructure:"validation"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.rate_limit_per_minute", 100)
	viper.SetDefault("server.rate_limit_burst", 200)
	viper.SetDefault("database.dsn", "framtrack.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("updater.update_hours", []int{0, 12})
	viper.SetDefault("external.timeout_seconds", 30)
	viper.SetDefault("external.rate_limit", 2)
	viper.SetDefault("external.rate_limit_burst", 1)
	viper.SetDefault("external.max_retries", 3)
	viper.SetDefault("market.validation.min_daily_sales", 50)
	viper.SetDefault("market.validation.max_daily_sales", 2000)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Market.Validate()
	return
}

// Validate checks the roster against the configured bounds. A malformed
// roster is a deployment mistake and fails startup, rather than being
// rediscovered on every update cycle.
func (m Market) Validate() error {
	if len(m.Companies) == 0 {
		return fmt.Errorf("market roster is empty")
	}
	for _, c := range m.Companies {
		if c.Name == "" {
			return fmt.Errorf("company with empty name in roster")
		}
		if c.BaseSales < m.Validation.MinDailySales || c.BaseSales > m.Validation.MaxDailySales {
			return fmt.Errorf("company %q: base_sales %d outside [%d, %d]",
				c.Name, c.BaseSales, m.Validation.MinDailySales, m.Validation.MaxDailySales)
		}
		if c.Volatility <= 0 || c.Volatility >= 1 {
			return fmt.Errorf("company %q: volatility %.2f must be in (0, 1)", c.Name, c.Volatility)
		}
		if c.MarketShare <= 0 || c.BaseRevenue <= 0 {
			return fmt.Errorf("company %q: market_share and base_revenue must be positive", c.Name)
		}
	}
	return nil
}

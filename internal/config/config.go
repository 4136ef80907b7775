package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scanner   ScannerConfig
	Catalog   CatalogConfig
	Feed      FeedConfig
	Alerts    AlertsConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
	Exchanges map[string]ExchangeConfig
}

// ScannerConfig defines the scan loop settings.
type ScannerConfig struct {
	Interval               time.Duration `mapstructure:"interval"`
	ThresholdPercent       float64       `mapstructure:"threshold_percent"`
	Notional               float64       `mapstructure:"notional"`
	Workers                int           `mapstructure:"workers"`
	MissingQuoteAlertTicks int           `mapstructure:"missing_quote_alert_ticks"`
}

// CatalogConfig defines the cycles to evaluate. An empty cycle list selects
// the built-in catalog.
type CatalogConfig struct {
	StableAssets   []string      `mapstructure:"stable_assets"`
	IncludeReverse bool          `mapstructure:"include_reverse"`
	Cycles         []CycleConfig `mapstructure:"cycles"`
}

// CycleConfig is one catalog entry, e.g. path [USDT BTC USDC USDT] with
// pairs [BTC/USDT BTC/USDC USDC/USDT].
type CycleConfig struct {
	ID    string   `mapstructure:"id"`
	Path  []string `mapstructure:"path"`
	Pairs []string `mapstructure:"pairs"`
}

// FeedConfig selects where quotes come from.
type FeedConfig struct {
	Source     string          `mapstructure:"source"`
	StaleAfter time.Duration   `mapstructure:"stale_after"`
	Simulator  SimulatorConfig `mapstructure:"simulator"`
}

// SimulatorConfig drives the synthetic quote feed.
type SimulatorConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	Volatility float64       `mapstructure:"volatility"`
	Seed       int64         `mapstructure:"seed"`
	Prices     []PriceConfig `mapstructure:"prices"`
}

// PriceConfig is an initial quote for the simulator.
type PriceConfig struct {
	Symbol string  `mapstructure:"symbol"`
	Bid    float64 `mapstructure:"bid"`
	Ask    float64 `mapstructure:"ask"`
}

// AlertsConfig defines the alert collaborator settings.
type AlertsConfig struct {
	JudgeURL        string        `mapstructure:"judge_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RatePerMinute   float64       `mapstructure:"rate_per_minute"`
	Burst           int           `mapstructure:"burst"`
	MaxInFlight     int           `mapstructure:"max_in_flight"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	DiscordWebhook  string        `mapstructure:"discord_webhook"`
	TelegramToken   string        `mapstructure:"telegram_token"`
	TelegramChatID  string        `mapstructure:"telegram_chat_id"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string `mapstructure:"sslmode"`
}

// Enabled reports whether opportunities should be persisted.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN builds a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, port, d.DBName, sslMode)
}

// RedisConfig defines the Redis connection used for publishing results.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Enabled reports whether results should be published to Redis.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// MetricsConfig defines where Prometheus metrics are served.
type MetricsConfig struct {
	Addr string
}

// LoggingConfig defines the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	TakerFeePercent float64 `mapstructure:"taker_fee_percent"`
	URL             string  `mapstructure:"url"`
}

// FeeRate returns the per-leg fee of the selected feed as a fraction.
func (c Config) FeeRate() (float64, error) {
	ex, ok := c.Exchanges[c.Feed.Source]
	if !ok {
		return 0, fmt.Errorf("no exchange settings for feed source %q", c.Feed.Source)
	}
	fee := ex.TakerFeePercent / 100
	if !(fee >= 0 && fee < 1) {
		return 0, fmt.Errorf("taker fee %v%% for %s is outside [0, 100)", ex.TakerFeePercent, c.Feed.Source)
	}
	return fee, nil
}

// Validate checks the settings the scanner cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.Scanner.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scanner.interval must be positive, got %s", c.Scanner.Interval))
	}
	if c.Scanner.Workers < 1 {
		errs = append(errs, fmt.Errorf("scanner.workers must be at least 1, got %d", c.Scanner.Workers))
	}
	if c.Scanner.Notional <= 0 {
		errs = append(errs, fmt.Errorf("scanner.notional must be positive, got %v", c.Scanner.Notional))
	}
	if _, err := c.FeeRate(); err != nil {
		errs = append(errs, err)
	}
	if c.Alerts.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("alerts.max_in_flight must be at least 1, got %d", c.Alerts.MaxInFlight))
	}
	return errors.Join(errs...)
}

func setDefaults() {
	viper.SetDefault("scanner.interval", "2500ms")
	viper.SetDefault("scanner.threshold_percent", 0.1)
	viper.SetDefault("scanner.notional", 1000.0)
	viper.SetDefault("scanner.workers", 4)
	viper.SetDefault("scanner.missing_quote_alert_ticks", 20)

	viper.SetDefault("catalog.stable_assets", []string{"USDT", "USDC", "FDUSD", "TUSD"})
	viper.SetDefault("catalog.include_reverse", true)

	viper.SetDefault("feed.source", "simulator")
	viper.SetDefault("feed.stale_after", "30s")
	viper.SetDefault("feed.simulator.interval", "1s")
	viper.SetDefault("feed.simulator.volatility", 0.0005)
	viper.SetDefault("feed.simulator.seed", 0)

	viper.SetDefault("exchanges.simulator.taker_fee_percent", 0.1)
	viper.SetDefault("exchanges.binance.taker_fee_percent", 0.1)
	viper.SetDefault("exchanges.binance.url", "wss://stream.binance.com:9443/stream")
	viper.SetDefault("exchanges.kraken.taker_fee_percent", 0.26)
	viper.SetDefault("exchanges.kraken.url", "wss://ws.kraken.com/v2")

	viper.SetDefault("alerts.judge_url", "")
	viper.SetDefault("alerts.timeout", "10s")
	viper.SetDefault("alerts.rate_per_minute", 30.0)
	viper.SetDefault("alerts.burst", 5)
	viper.SetDefault("alerts.max_in_flight", 8)
	viper.SetDefault("alerts.breaker_failures", 3)
	viper.SetDefault("alerts.breaker_timeout", "60s")
	viper.SetDefault("alerts.discord_webhook", "")
	viper.SetDefault("alerts.telegram_token", "")
	viper.SetDefault("alerts.telegram_chat_id", "")

	viper.SetDefault("database.host", "")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.channel", "cyclescan:opportunities")

	viper.SetDefault("metrics.addr", ":9102")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	viper.Reset()
	setDefaults()

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}

// Watch re-reads the config file whenever it changes and hands the result
// to onChange. It must be called after LoadConfig found a file.
func Watch(onChange func(Config, error)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		var cfg Config
		err := viper.Unmarshal(&cfg)
		onChange(cfg, err)
	})
	viper.WatchConfig()
}

// ConfigFile returns the file LoadConfig read, or "" when none was found.
func ConfigFile() string {
	return viper.ConfigFileUsed()
}

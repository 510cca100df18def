// Package config defines the top-level configuration for spreadwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SPREADWATCH_* environment
// variables.
type Config struct {
	Symbols   []string        `toml:"symbols"`
	Venues    VenuesConfig    `toml:"venues"`
	Connector ConnectorConfig `toml:"connector"`
	Detector  DetectorConfig  `toml:"detector"`
	Recorder  RecorderConfig  `toml:"recorder"`
	History   HistoryConfig   `toml:"history"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// VenuesConfig groups the per-venue endpoint settings.
type VenuesConfig struct {
	Binance BinanceConfig `toml:"binance"`
	Bybit   BybitConfig   `toml:"bybit"`
}

// BinanceConfig holds Binance endpoints for both market types.
type BinanceConfig struct {
	Enabled        bool   `toml:"enabled"`
	SpotWSURL      string `toml:"spot_ws_url"`
	FuturesWSURL   string `toml:"futures_ws_url"`
	SpotRestURL    string `toml:"spot_rest_url"`
	FuturesRestURL string `toml:"futures_rest_url"`
}

// BybitConfig holds Bybit endpoints for both market types.
type BybitConfig struct {
	Enabled      bool   `toml:"enabled"`
	SpotWSURL    string `toml:"spot_ws_url"`
	FuturesWSURL string `toml:"futures_ws_url"`
	RestURL      string `toml:"rest_url"`
}

// ConnectorConfig holds the reconnect and heartbeat policy shared by every
// venue connector.
type ConnectorConfig struct {
	ReconnectDelaySeconds    int `toml:"reconnect_delay_seconds"`
	MaxReconnectDelaySeconds int `toml:"max_reconnect_delay_seconds"`
	MaxReconnectAttempts     int `toml:"max_reconnect_attempts"`
	HeartbeatIntervalSeconds int `toml:"heartbeat_interval_seconds"`
}

// ReconnectDelay returns the base reconnect delay as a duration.
func (c ConnectorConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// MaxReconnectDelay returns the backoff cap as a duration.
func (c ConnectorConfig) MaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelaySeconds) * time.Second
}

// HeartbeatInterval returns the application-level ping interval.
func (c ConnectorConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

// DetectorConfig holds the spread sanity band and the fallback sweep
// interval. The band is expressed in percent (0.1 means 0.1%).
type DetectorConfig struct {
	MinSpreadPercent     float64 `toml:"min_spread_percent"`
	MaxSpreadPercent     float64 `toml:"max_spread_percent"`
	SweepIntervalMinutes int     `toml:"sweep_interval_minutes"`
}

// SweepInterval returns the fallback evaluation interval.
func (c DetectorConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// RecorderConfig holds the persister queue size and rounding precision.
type RecorderConfig struct {
	QueueSize int   `toml:"queue_size"`
	Precision int32 `toml:"precision"`
}

// HistoryConfig holds the aggregation window, bucket width, and business
// timezone used to align bucket boundaries.
type HistoryConfig struct {
	WindowHours   int    `toml:"window_hours"`
	BucketMinutes int    `toml:"bucket_minutes"`
	Timezone      string `toml:"timezone"`
}

// Window returns the rolling aggregation window as a duration.
func (c HistoryConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Bucket returns the bucket width as a duration.
func (c HistoryConfig) Bucket() time.Duration {
	return time.Duration(c.BucketMinutes) * time.Minute
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the spread-history archival job.
type ArchiveConfig struct {
	Enabled           bool `toml:"enabled"`
	ArchiveAfterHours int  `toml:"archive_after_hours"`
	IntervalHours     int  `toml:"interval_hours"`
}

// ArchiveAfter returns the age at which rows become archivable.
func (c ArchiveConfig) ArchiveAfter() time.Duration {
	return time.Duration(c.ArchiveAfterHours) * time.Hour
}

// Interval returns how often the archival job runs.
func (c ArchiveConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds operator alerting settings. Fatal connector failures
// are always delivered when at least one sender is configured.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// Defaults returns a Config populated with the built-in defaults. Values
// from the TOML file and environment overrides are merged on top.
func Defaults() Config {
	return Config{
		Symbols: []string{"BTC/USDT", "ETH/USDT"},
		Venues: VenuesConfig{
			Binance: BinanceConfig{
				Enabled:        true,
				SpotWSURL:      "wss://stream.binance.com:9443/ws",
				FuturesWSURL:   "wss://fstream.binance.com/ws",
				SpotRestURL:    "https://api.binance.com",
				FuturesRestURL: "https://fapi.binance.com",
			},
			Bybit: BybitConfig{
				Enabled:      true,
				SpotWSURL:    "wss://stream.bybit.com/v5/public/spot",
				FuturesWSURL: "wss://stream.bybit.com/v5/public/linear",
				RestURL:      "https://api.bybit.com",
			},
		},
		Connector: ConnectorConfig{
			ReconnectDelaySeconds:    2,
			MaxReconnectDelaySeconds: 60,
			MaxReconnectAttempts:     10,
			HeartbeatIntervalSeconds: 20,
		},
		Detector: DetectorConfig{
			MinSpreadPercent:     0.1,
			MaxSpreadPercent:     10,
			SweepIntervalMinutes: 3,
		},
		Recorder: RecorderConfig{
			QueueSize: 1024,
			Precision: 2,
		},
		History: HistoryConfig{
			WindowHours:   24,
			BucketMinutes: 30,
			Timezone:      "UTC",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "spreadwatch",
			User:          "spreadwatch",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Archive: ArchiveConfig{
			Enabled:           false,
			ArchiveAfterHours: 48,
			IntervalHours:     24,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface later as confusing runtime behavior.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if !strings.Contains(s, "/") {
			return fmt.Errorf("config: symbol %q is not in BASE/QUOTE form", s)
		}
	}
	if !c.Venues.Binance.Enabled && !c.Venues.Bybit.Enabled {
		return fmt.Errorf("config: at least one venue must be enabled")
	}
	if c.Detector.MinSpreadPercent < 0 {
		return fmt.Errorf("config: detector.min_spread_percent must be >= 0")
	}
	if c.Detector.MaxSpreadPercent <= c.Detector.MinSpreadPercent {
		return fmt.Errorf("config: detector.max_spread_percent must exceed min_spread_percent")
	}
	if c.Connector.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("config: connector.max_reconnect_attempts must be positive")
	}
	if c.Connector.ReconnectDelaySeconds <= 0 {
		return fmt.Errorf("config: connector.reconnect_delay_seconds must be positive")
	}
	if c.History.BucketMinutes <= 0 || c.History.WindowHours <= 0 {
		return fmt.Errorf("config: history window and bucket must be positive")
	}
	if (time.Duration(c.History.WindowHours) * time.Hour) %
		(time.Duration(c.History.BucketMinutes) * time.Minute) != 0 {
		return fmt.Errorf("config: history window must be a whole number of buckets")
	}
	if _, err := time.LoadLocation(c.History.Timezone); err != nil {
		return fmt.Errorf("config: history.timezone: %w", err)
	}
	if c.Recorder.Precision < 0 {
		return fmt.Errorf("config: recorder.precision must be >= 0")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

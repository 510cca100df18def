package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SPREADWATCH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SPREADWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	setBool(&cfg.Venues.Binance.Enabled, "SPREADWATCH_BINANCE_ENABLED")
	setStr(&cfg.Venues.Binance.SpotWSURL, "SPREADWATCH_BINANCE_SPOT_WS_URL")
	setStr(&cfg.Venues.Binance.FuturesWSURL, "SPREADWATCH_BINANCE_FUTURES_WS_URL")
	setStr(&cfg.Venues.Binance.SpotRestURL, "SPREADWATCH_BINANCE_SPOT_REST_URL")
	setStr(&cfg.Venues.Binance.FuturesRestURL, "SPREADWATCH_BINANCE_FUTURES_REST_URL")
	setBool(&cfg.Venues.Bybit.Enabled, "SPREADWATCH_BYBIT_ENABLED")
	setStr(&cfg.Venues.Bybit.SpotWSURL, "SPREADWATCH_BYBIT_SPOT_WS_URL")
	setStr(&cfg.Venues.Bybit.FuturesWSURL, "SPREADWATCH_BYBIT_FUTURES_WS_URL")
	setStr(&cfg.Venues.Bybit.RestURL, "SPREADWATCH_BYBIT_REST_URL")

	// ── Connector ──
	setInt(&cfg.Connector.ReconnectDelaySeconds, "SPREADWATCH_CONNECTOR_RECONNECT_DELAY_SECONDS")
	setInt(&cfg.Connector.MaxReconnectDelaySeconds, "SPREADWATCH_CONNECTOR_MAX_RECONNECT_DELAY_SECONDS")
	setInt(&cfg.Connector.MaxReconnectAttempts, "SPREADWATCH_CONNECTOR_MAX_RECONNECT_ATTEMPTS")
	setInt(&cfg.Connector.HeartbeatIntervalSeconds, "SPREADWATCH_CONNECTOR_HEARTBEAT_INTERVAL_SECONDS")

	// ── Detector ──
	setFloat64(&cfg.Detector.MinSpreadPercent, "SPREADWATCH_DETECTOR_MIN_SPREAD_PERCENT")
	setFloat64(&cfg.Detector.MaxSpreadPercent, "SPREADWATCH_DETECTOR_MAX_SPREAD_PERCENT")
	setInt(&cfg.Detector.SweepIntervalMinutes, "SPREADWATCH_DETECTOR_SWEEP_INTERVAL_MINUTES")

	// ── History ──
	setInt(&cfg.History.WindowHours, "SPREADWATCH_HISTORY_WINDOW_HOURS")
	setInt(&cfg.History.BucketMinutes, "SPREADWATCH_HISTORY_BUCKET_MINUTES")
	setStr(&cfg.History.Timezone, "SPREADWATCH_HISTORY_TIMEZONE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SPREADWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SPREADWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SPREADWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SPREADWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SPREADWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SPREADWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SPREADWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SPREADWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SPREADWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SPREADWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SPREADWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SPREADWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SPREADWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SPREADWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SPREADWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SPREADWATCH_REDIS_TLS_ENABLED")

	// ── S3 / archive ──
	setStr(&cfg.S3.Endpoint, "SPREADWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SPREADWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "SPREADWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SPREADWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SPREADWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SPREADWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SPREADWATCH_S3_FORCE_PATH_STYLE")
	setBool(&cfg.Archive.Enabled, "SPREADWATCH_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.ArchiveAfterHours, "SPREADWATCH_ARCHIVE_AFTER_HOURS")
	setInt(&cfg.Archive.IntervalHours, "SPREADWATCH_ARCHIVE_INTERVAL_HOURS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SPREADWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SPREADWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SPREADWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPREADWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPREADWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "SPREADWATCH_NOTIFY_DISCORD_WEBHOOK")

	// ── Misc ──
	setStr(&cfg.LogLevel, "SPREADWATCH_LOG_LEVEL")
	if v := os.Getenv("SPREADWATCH_SYMBOLS"); v != "" {
		parts := strings.Split(v, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) > 0 {
			cfg.Symbols = symbols
		}
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADESCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing config file
// is not an error; the defaults plus environment variables still apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADESCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject the content-store credential and per-deploy settings
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Mirror ──
	setStr(&cfg.Mirror.Environment, "TRADESCAN_ENVIRONMENT")
	setStr(&cfg.Mirror.OperatorAccount, "TRADESCAN_OPERATOR_ACCOUNT")

	// ── Scanner ──
	setStringSlice(&cfg.Scanner.Contracts, "TRADESCAN_CONTRACT_ADDRESS")
	setDuration(&cfg.Scanner.ScanInterval, "TRADESCAN_SCAN_INTERVAL")
	setInt(&cfg.Scanner.BatchSize, "TRADESCAN_BATCH_SIZE")
	setInt(&cfg.Scanner.StreamRetries, "TRADESCAN_STREAM_RETRIES")
	setInt(&cfg.Scanner.ResolverMaxAttempts, "TRADESCAN_RESOLVER_MAX_ATTEMPTS")

	// ── Content store ──
	setStr(&cfg.ContentStore.URL, "TRADESCAN_CONTENT_STORE_URL")
	setStr(&cfg.ContentStore.Token, "TRADESCAN_CONTENT_STORE_TOKEN")
	setStr(&cfg.ContentStore.EventsCollection, "TRADESCAN_EVENTS_COLLECTION")
	setStr(&cfg.ContentStore.CacheCollection, "TRADESCAN_CACHE_COLLECTION")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADESCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADESCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADESCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADESCAN_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "TRADESCAN_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRADESCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRADESCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADESCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADESCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADESCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADESCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADESCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADESCAN_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "TRADESCAN_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRADESCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRADESCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADESCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADESCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADESCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADESCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADESCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADESCAN_S3_FORCE_PATH_STYLE")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADESCAN_MODE")
	setStr(&cfg.LogLevel, "TRADESCAN_LOG_LEVEL")
	setBool(&cfg.SuppressLogs, "TRADESCAN_SUPPRESS_LOGS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

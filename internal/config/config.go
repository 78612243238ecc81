// Package config defines the configuration for the secure-trade indexer and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lazylotto/tradescan/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRADESCAN_* environment
// variables.
type Config struct {
	Mirror       MirrorConfig       `toml:"mirror"`
	Scanner      ScannerConfig      `toml:"scanner"`
	ContentStore ContentStoreConfig `toml:"content_store"`
	Redis        RedisConfig        `toml:"redis"`
	Postgres     PostgresConfig     `toml:"postgres"`
	S3           S3Config           `toml:"s3"`
	Mode         string             `toml:"mode"`
	LogLevel     string             `toml:"log_level"`
	SuppressLogs bool               `toml:"suppress_logs"`
}

// MirrorConfig selects the ledger mirror and identifies the caller for
// mirror-API quota attribution. The operator account carries no write
// authority anywhere in the indexer.
type MirrorConfig struct {
	Environment     string `toml:"environment"`
	OperatorAccount string `toml:"operator_account"`
}

// ScannerConfig holds pass-level scan parameters.
type ScannerConfig struct {
	// Contracts lists the secure-trade contracts to index. A contract passed
	// on the command line replaces this list.
	Contracts           []string `toml:"contracts"`
	ScanInterval        duration `toml:"scan_interval"`
	BatchSize           int      `toml:"batch_size"`
	StreamRetries       int      `toml:"stream_retries"`
	RetryDelay          duration `toml:"retry_delay"`
	ResolverMaxAttempts int      `toml:"resolver_max_attempts"`
	LockTTL             duration `toml:"lock_ttl"`
}

// ContentStoreConfig holds the external content store endpoint, credential,
// and collection names.
type ContentStoreConfig struct {
	URL              string `toml:"url"`
	Token            string `toml:"token"`
	EventsCollection string `toml:"events_collection"`
	CacheCollection  string `toml:"cache_collection"`
}

// RedisConfig holds Redis connection parameters for the cross-process pass
// lock. When disabled the scanner relies on the external scheduler for
// mutual exclusion.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds connection parameters for the optional scan-run audit
// store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// S3Config holds object storage parameters for the optional pass-artifact
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Mirror: MirrorConfig{
			Environment: "testnet",
		},
		Scanner: ScannerConfig{
			ScanInterval:        duration{5 * time.Minute},
			BatchSize:           100,
			StreamRetries:       3,
			RetryDelay:          duration{5 * time.Second},
			ResolverMaxAttempts: 8,
			LockTTL:             duration{10 * time.Minute},
		},
		ContentStore: ContentStoreConfig{
			EventsCollection: "secure_trade_events",
			CacheCollection:  "secure_trade_cache",
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "tradescan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"daemon": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found. It must pass before any
// network call is made.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, daemon)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if _, err := domain.ParseEnvironment(c.Mirror.Environment); err != nil {
		errs = append(errs, "mirror: "+err.Error())
	}

	if len(c.Scanner.Contracts) == 0 {
		errs = append(errs, "scanner: at least one contract must be configured (or passed as an argument)")
	}
	for _, contract := range c.Scanner.Contracts {
		if strings.TrimSpace(contract) == "" {
			errs = append(errs, "scanner: contracts must not contain empty entries")
			break
		}
	}
	if c.Scanner.BatchSize < 1 || c.Scanner.BatchSize > domain.BatchLimit {
		errs = append(errs, fmt.Sprintf("scanner: batch_size must be 1-%d, got %d", domain.BatchLimit, c.Scanner.BatchSize))
	}
	if c.Scanner.StreamRetries < 0 {
		errs = append(errs, "scanner: stream_retries must be >= 0")
	}
	if c.Scanner.ResolverMaxAttempts < 1 {
		errs = append(errs, "scanner: resolver_max_attempts must be >= 1")
	}
	if c.Mode == "daemon" && c.Scanner.ScanInterval.Duration <= 0 {
		errs = append(errs, "scanner: scan_interval must be positive in daemon mode")
	}

	if c.ContentStore.URL == "" {
		errs = append(errs, "content_store: url must not be empty")
	}
	if c.ContentStore.Token == "" {
		errs = append(errs, "content_store: token must not be empty")
	}
	if c.ContentStore.EventsCollection == "" {
		errs = append(errs, "content_store: events_collection must not be empty")
	}
	if c.ContentStore.CacheCollection == "" {
		errs = append(errs, "content_store: cache_collection must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Environment returns the validated mirror environment. Call only after
// Validate has succeeded.
func (c *Config) Environment() domain.Environment {
	return domain.Environment(c.Mirror.Environment)
}

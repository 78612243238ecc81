package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/lazylotto/tradescan/internal/blob/s3"
	"github.com/lazylotto/tradescan/internal/cache/redis"
	"github.com/lazylotto/tradescan/internal/config"
	"github.com/lazylotto/tradescan/internal/domain"
	"github.com/lazylotto/tradescan/internal/events"
	"github.com/lazylotto/tradescan/internal/mirror"
	"github.com/lazylotto/tradescan/internal/resolve"
	"github.com/lazylotto/tradescan/internal/scanner"
	"github.com/lazylotto/tradescan/internal/store/content"
	"github.com/lazylotto/tradescan/internal/store/postgres"
)

// Dependencies bundles everything a scan needs. Locks, Runs, and Blobs stay
// nil when the corresponding backend is not configured.
type Dependencies struct {
	Mirror      *mirror.Client
	Decoder     *events.Decoder
	Resolver    domain.AccountResolver
	Checkpoints domain.CheckpointStore
	Cache       domain.TradeCache
	Locks       domain.LockManager
	Runs        domain.RunStore
	Blobs       domain.BlobWriter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Mirror ---
	deps.Mirror = mirror.NewClient(mirror.BaseURL(cfg.Environment()))

	decoder, err := events.NewDecoder()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: decoder: %w", err)
	}
	deps.Decoder = decoder

	deps.Resolver = resolve.New(deps.Mirror, cfg.Scanner.ResolverMaxAttempts,
		logger.With(slog.String("component", "resolver")))

	// --- Content store ---
	contentClient := content.NewClient(cfg.ContentStore.URL, cfg.ContentStore.Token)
	deps.Checkpoints = content.NewCheckpointStore(contentClient, cfg.ContentStore.EventsCollection)
	deps.Cache = content.NewTradeCache(contentClient, cfg.ContentStore.CacheCollection,
		logger.With(slog.String("component", "trade_cache")))

	// --- Redis pass lock ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- Postgres scan-run audit ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Runs = postgres.NewRunStore(pgClient.Pool())
	}

	// --- S3 pass-artifact archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Blobs = s3blob.NewWriter(s3Client)
	}

	return deps, cleanup, nil
}

// NewScanner builds the scanner on top of wired dependencies.
func NewScanner(deps *Dependencies, cfg *config.Config, logger *slog.Logger) *scanner.Scanner {
	return scanner.New(scanner.Deps{
		Logs:        deps.Mirror,
		Decoder:     deps.Decoder,
		Resolver:    deps.Resolver,
		Checkpoints: deps.Checkpoints,
		Cache:       deps.Cache,
		Locks:       deps.Locks,
		Runs:        deps.Runs,
		Blobs:       deps.Blobs,
	}, scanner.Config{
		BatchSize:     cfg.Scanner.BatchSize,
		StreamRetries: cfg.Scanner.StreamRetries,
		RetryDelay:    cfg.Scanner.RetryDelay.Duration,
		LockTTL:       cfg.Scanner.LockTTL.Duration,
	}, logger)
}

// Package app provides the top-level application lifecycle for the
// secure-trade indexer. It wires dependencies and runs scan passes for every
// configured contract, once or on an interval depending on the mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lazylotto/tradescan/internal/config"
	"github.com/lazylotto/tradescan/internal/domain"
)

// App is the root application object.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and executes the configured mode. "scan" runs
// one pass per contract and exits; "daemon" keeps scanning on the configured
// interval until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting indexer",
		slog.String("mode", a.cfg.Mode),
		slog.String("environment", a.cfg.Mirror.Environment),
		slog.String("operator", a.cfg.Mirror.OperatorAccount),
		slog.Int("contracts", len(a.cfg.Scanner.Contracts)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	sc := NewScanner(deps, a.cfg, a.logger)
	env := a.cfg.Environment()

	g, ctx := errgroup.WithContext(ctx)

	switch strings.ToLower(a.cfg.Mode) {
	case "scan":
		for _, contract := range a.cfg.Scanner.Contracts {
			g.Go(func() error {
				_, err := sc.RunPass(ctx, contract, env)
				return err
			})
		}
	case "daemon":
		for _, contract := range a.cfg.Scanner.Contracts {
			g.Go(func() error {
				err := sc.RunLoop(ctx, contract, env, a.cfg.Scanner.ScanInterval.Duration)
				if ctx.Err() != nil {
					return nil // clean shutdown
				}
				return err
			})
		}
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	return g.Wait()
}

// RecentRuns returns the last limit recorded passes for every configured
// contract, newest first per contract. It requires the postgres run store.
func (a *App) RecentRuns(ctx context.Context, limit int) ([]domain.ScanRun, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	defer cleanup()

	if deps.Runs == nil {
		return nil, errors.New("app: scan-run history requires the postgres store to be enabled")
	}

	env := a.cfg.Environment()
	var runs []domain.ScanRun
	for _, contract := range a.cfg.Scanner.Contracts {
		recent, err := deps.Runs.ListRecent(ctx, contract, env, limit)
		if err != nil {
			return nil, fmt.Errorf("app: list runs for %s: %w", contract, err)
		}
		runs = append(runs, recent...)
	}
	return runs, nil
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

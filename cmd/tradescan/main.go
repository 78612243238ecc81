// Command tradescan indexes secure-trade contract events from a ledger
// mirror node into the external content store. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and runs one
// scan pass per contract (or a scan loop in daemon mode).
//
// Usage: tradescan [flags] [contractAddress]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lazylotto/tradescan/internal/app"
	"github.com/lazylotto/tradescan/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override run mode: scan or daemon")
	recent := flag.Int("recent", 0, "print the last N recorded scan runs as JSON lines and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [contractAddress]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Scans secure-trade events into the content store cache.")
		fmt.Fprintln(flag.CommandLine.Output(), "A positional contract address overrides the configured contracts.")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Mode = *mode
	}
	if contract := flag.Arg(0); contract != "" {
		cfg.Scanner.Contracts = []string{contract}
	}

	// Set log level from config; suppress_logs silences everything below
	// error.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.SuppressLogs {
		level = slog.LevelError
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration before any network call.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application := app.New(cfg, logger)
	defer application.Close()

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *recent > 0 {
		runs, err := application.RecentRuns(ctx, *recent)
		if err != nil {
			logger.Error("listing scan runs failed", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		for _, run := range runs {
			if err := enc.Encode(run); err != nil {
				fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
				os.Exit(1)
			}
		}
		return
	}

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("indexer shut down gracefully")
		} else {
			logger.Error("indexer exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("indexer stopped")
}

// Package scanner implements the secure-trade event indexing pass: checkpoint
// load, paginated log streaming, decode and fold, address hydration, nonce
// filtering, batched cache writes, and watermark advance.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lazylotto/tradescan/internal/domain"
	"github.com/lazylotto/tradescan/internal/events"
	"github.com/lazylotto/tradescan/internal/mirror"
)

// LogStreamer is the mirror capability the scanner depends on.
type LogStreamer interface {
	StreamLogs(ctx context.Context, contract, sinceTimestamp string, fn func(mirror.Log) error) error
}

// EventDecoder turns one raw log into a typed event, (nil, nil) for logs to
// skip.
type EventDecoder interface {
	Decode(log mirror.Log) (events.Event, error)
}

// Config holds pass-level tuning.
type Config struct {
	// BatchSize caps the number of trades per cache write. Clamped to the
	// content store's batch limit.
	BatchSize int
	// StreamRetries bounds retries of the whole log stream on transient
	// mirror failures. The fold state is reset before each retry.
	StreamRetries int
	// RetryDelay is the sleep between stream retries.
	RetryDelay time.Duration
	// LockTTL is the lifetime of the cross-process pass lock.
	LockTTL time.Duration
}

// Deps bundles the collaborators of a Scanner. Locks, Runs, and Blobs are
// optional; a nil value disables the corresponding behavior.
type Deps struct {
	Logs        LogStreamer
	Decoder     EventDecoder
	Resolver    domain.AccountResolver
	Checkpoints domain.CheckpointStore
	Cache       domain.TradeCache
	Locks       domain.LockManager
	Runs        domain.RunStore
	Blobs       domain.BlobWriter
}

// Scanner runs indexing passes for secure-trade contracts.
type Scanner struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates a Scanner. Zero config fields get working defaults.
func New(deps Deps, cfg Config, logger *slog.Logger) *Scanner {
	if cfg.BatchSize <= 0 || cfg.BatchSize > domain.BatchLimit {
		cfg.BatchSize = domain.BatchLimit
	}
	if cfg.StreamRetries < 0 {
		cfg.StreamRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Scanner{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// RunPass executes one full indexing pass for the pair. The watermark is
// advanced only when every step succeeded, so a failed pass is replayed from
// the previous watermark on the next invocation.
func (s *Scanner) RunPass(ctx context.Context, contract string, env domain.Environment) (domain.ScanRun, error) {
	run := domain.ScanRun{
		ID:          uuid.NewString(),
		Contract:    contract,
		Environment: env,
		StartedAt:   time.Now().UTC(),
	}

	if contract == "" {
		return run, errors.New("scanner: contract identifier is empty")
	}
	if _, err := domain.ParseEnvironment(string(env)); err != nil {
		return run, fmt.Errorf("scanner: %w", err)
	}

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, fmt.Sprintf("scan:%s:%s", contract, env), s.cfg.LockTTL)
		if err != nil {
			return run, fmt.Errorf("scanner: pass lock for %s/%s: %w", contract, env, err)
		}
		defer unlock()
	}

	watermark, err := s.deps.Checkpoints.Load(ctx, contract, env)
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("scanner: load watermark: %w", err))
	}
	run.WatermarkBefore = watermark

	s.logger.Info("scan pass starting",
		slog.String("contract", contract),
		slog.String("environment", string(env)),
		slog.String("watermark", watermark),
	)

	agg, maxTimestamp, logsSeen, err := s.streamAndFold(ctx, contract, env, watermark)
	if err != nil {
		return s.fail(ctx, run, err)
	}
	run.LogsSeen = logsSeen
	run.LateTerminals = agg.LateTerminals()

	trades := agg.Trades()
	for i := range trades {
		if trades[i].Seller, err = s.deps.Resolver.Resolve(ctx, trades[i].Seller); err != nil {
			return s.fail(ctx, run, fmt.Errorf("scanner: hydrate seller: %w", err))
		}
		if trades[i].Buyer, err = s.deps.Resolver.Resolve(ctx, trades[i].Buyer); err != nil {
			return s.fail(ctx, run, fmt.Errorf("scanner: hydrate buyer: %w", err))
		}
	}

	maxNonce, err := s.deps.Cache.MaxNonce(ctx, contract, env)
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("scanner: load max nonce: %w", err))
	}

	survivors := trades[:0:0]
	for _, t := range trades {
		if t.Nonce <= maxNonce {
			s.logger.Debug("dropping already-persisted trade",
				slog.String("fingerprint", t.Fingerprint),
				slog.Int64("nonce", t.Nonce),
				slog.Int64("max_nonce", maxNonce),
			)
			continue
		}
		survivors = append(survivors, t)
	}

	for start := 0; start < len(survivors); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(survivors))
		if err := s.deps.Cache.UpsertBatch(ctx, survivors[start:end]); err != nil {
			return s.fail(ctx, run, fmt.Errorf("scanner: flush trades: %w", err))
		}
	}
	run.TradesFlushed = int64(len(survivors))

	s.archive(ctx, run, survivors)

	if maxTimestamp != "" {
		if err := s.deps.Checkpoints.Save(ctx, contract, env, maxTimestamp); err != nil {
			return s.fail(ctx, run, fmt.Errorf("scanner: advance watermark: %w", err))
		}
		run.WatermarkAfter = maxTimestamp
	} else {
		run.WatermarkAfter = watermark
	}

	run.FinishedAt = time.Now().UTC()
	s.record(ctx, run)

	s.logger.Info("scan pass complete",
		slog.String("contract", contract),
		slog.Int64("logs_seen", run.LogsSeen),
		slog.Int64("trades_flushed", run.TradesFlushed),
		slog.Int64("late_terminals", run.LateTerminals),
		slog.String("watermark", run.WatermarkAfter),
	)
	return run, nil
}

// RunLoop runs passes on a repeating interval until the context is
// cancelled. Pass failures are logged; the loop keeps going because the
// untouched watermark makes the next pass a clean replay.
func (s *Scanner) RunLoop(ctx context.Context, contract string, env domain.Environment, interval time.Duration) error {
	if _, err := s.RunPass(ctx, contract, env); err != nil {
		s.logger.Error("scan pass failed", slog.String("contract", contract), slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scan loop stopped", slog.String("contract", contract))
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunPass(ctx, contract, env); err != nil {
				s.logger.Error("scan pass failed", slog.String("contract", contract), slog.String("error", err.Error()))
			}
		}
	}
}

// streamAndFold consumes the log stream into a fresh aggregator, retrying the
// whole stream on transient mirror failures. Fold state is discarded before
// each retry so replayed pages cannot double-apply.
func (s *Scanner) streamAndFold(ctx context.Context, contract string, env domain.Environment, watermark string) (*Aggregator, string, int64, error) {
	var (
		agg          *Aggregator
		maxTimestamp string
		logsSeen     int64
		streamErr    error
	)

	attempt := func() error {
		agg = NewAggregator(contract, env, s.deps.Cache, s.logger)
		maxTimestamp = ""
		logsSeen = 0
		return s.deps.Logs.StreamLogs(ctx, contract, watermark, func(log mirror.Log) error {
			logsSeen++
			maxTimestamp = mirror.MaxTimestamp(maxTimestamp, log.Timestamp)

			ev, err := s.deps.Decoder.Decode(log)
			if err != nil {
				s.logger.Warn("skipping malformed log",
					slog.String("timestamp", log.Timestamp),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if ev == nil {
				return nil
			}
			return agg.Apply(ctx, ev)
		})
	}

	for try := 0; ; try++ {
		streamErr = attempt()
		if streamErr == nil {
			return agg, maxTimestamp, logsSeen, nil
		}
		if ctx.Err() != nil || try >= s.cfg.StreamRetries {
			return nil, "", 0, fmt.Errorf("scanner: stream logs: %w", streamErr)
		}

		s.logger.Warn("log stream failed, retrying",
			slog.String("contract", contract),
			slog.Int("attempt", try+1),
			slog.String("error", streamErr.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, "", 0, ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}
}

// archive writes the flushed trades of a pass as a JSON-lines artifact to
// object storage. Archival is best effort; a failure never fails the pass.
func (s *Scanner) archive(ctx context.Context, run domain.ScanRun, trades []domain.Trade) {
	if s.deps.Blobs == nil || len(trades) == 0 {
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range trades {
		if err := enc.Encode(t); err != nil {
			s.logger.Warn("encoding pass artifact failed", slog.String("error", err.Error()))
			return
		}
	}

	path := fmt.Sprintf("trades/%s/%s/%s.jsonl",
		run.Environment, run.Contract, run.StartedAt.Format("20060102T150405Z"))
	if err := s.deps.Blobs.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		s.logger.Warn("uploading pass artifact failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("pass artifact archived", slog.String("path", path), slog.Int("trades", len(trades)))
}

// fail finalizes and records a failed pass without advancing the watermark.
func (s *Scanner) fail(ctx context.Context, run domain.ScanRun, err error) (domain.ScanRun, error) {
	run.FinishedAt = time.Now().UTC()
	run.WatermarkAfter = run.WatermarkBefore
	run.Error = err.Error()
	s.record(ctx, run)
	return run, err
}

// record persists the pass audit row when a run store is configured.
func (s *Scanner) record(ctx context.Context, run domain.ScanRun) {
	if s.deps.Runs == nil {
		return
	}
	if err := s.deps.Runs.Insert(ctx, run); err != nil {
		s.logger.Warn("recording scan run failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

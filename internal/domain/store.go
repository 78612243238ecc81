package domain

import (
	"context"
	"io"
	"time"
)

// CheckpointStore persists the per-(contract, environment) scan watermark.
// Load returns the empty string when no watermark has been recorded yet.
type CheckpointStore interface {
	Load(ctx context.Context, contract string, env Environment) (string, error)
	Save(ctx context.Context, contract string, env Environment, timestamp string) error
}

// TradeCache is the external read-model of secure trades.
type TradeCache interface {
	// UpsertBatch writes up to BatchLimit trades as one create request. On a
	// rejected batch it pops the last record, logs it as the suspected
	// offender, and retries the remainder.
	UpsertBatch(ctx context.Context, trades []Trade) error
	// MarkTerminal sets the completed or canceled flag on an existing cached
	// row. A missing row is logged and skipped, not an error.
	MarkTerminal(ctx context.Context, mark TerminalMark) error
	// MaxNonce returns the greatest nonce persisted for the pair, or 0 when
	// the cache holds no rows for it.
	MaxNonce(ctx context.Context, contract string, env Environment) (int64, error)
}

// BatchLimit is the largest number of rows the content store accepts in a
// single create-items request.
const BatchLimit = 100

// AccountResolver maps a 20-byte hex ledger address to a canonical account
// identifier such as "0.0.12345".
type AccountResolver interface {
	Resolve(ctx context.Context, evmAddress string) (string, error)
}

// LockManager provides cross-process mutual exclusion so that two schedulers
// never run concurrent passes for the same (contract, environment).
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// ScanRun is the audit record of one scan pass.
type ScanRun struct {
	ID              string
	Contract        string
	Environment     Environment
	StartedAt       time.Time
	FinishedAt      time.Time
	LogsSeen        int64
	TradesFlushed   int64
	LateTerminals   int64
	WatermarkBefore string
	WatermarkAfter  string
	Error           string
}

// RunStore records scan pass history.
type RunStore interface {
	Insert(ctx context.Context, run ScanRun) error
	// ListRecent returns the most recent passes for a pair, newest first.
	ListRecent(ctx context.Context, contract string, env Environment, limit int) ([]ScanRun, error)
}

// BlobWriter uploads a pass artifact to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

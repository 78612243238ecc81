// Package resolve maps hex ledger addresses to canonical account identifiers
// using the mirror accounts endpoint, with an in-process memo cache and
// bounded randomized backoff.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// zeroAccount is the canonical identifier the all-zero address resolves to
// without touching the network. A zero buyer marks a public trade.
const zeroAccount = "0.0.0"

const (
	defaultMaxAttempts = 8
	minRetryDelay      = 500 * time.Millisecond
	maxRetryDelay      = 3000 * time.Millisecond
)

// AccountLookup is the single mirror call the resolver depends on.
type AccountLookup interface {
	Account(ctx context.Context, address string) (string, error)
}

// Resolver memoizes address-to-account lookups for the life of the process.
// It is safe for concurrent use by scan loops for different contracts.
type Resolver struct {
	lookup      AccountLookup
	maxAttempts int
	minDelay    time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	memo map[string]string
}

// New creates a Resolver. maxAttempts bounds the retry loop per lookup; zero
// or negative selects the default of 8.
func New(lookup AccountLookup, maxAttempts int, logger *slog.Logger) *Resolver {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Resolver{
		lookup:      lookup,
		maxAttempts: maxAttempts,
		minDelay:    minRetryDelay,
		maxDelay:    maxRetryDelay,
		logger:      logger,
		memo:        make(map[string]string),
	}
}

// Resolve converts a 20-byte hex ledger address into the canonical account
// identifier. Failed lookups sleep a randomized interval between 500ms and
// 3s before retrying; after maxAttempts the error is surfaced with the
// failing input attached.
func (r *Resolver) Resolve(ctx context.Context, evmAddress string) (string, error) {
	key := strings.ToLower(evmAddress)

	if isZeroAddress(key) {
		return zeroAccount, nil
	}

	r.mu.Lock()
	if cached, ok := r.memo[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		account, err := r.lookup.Account(ctx, key)
		if err == nil {
			r.mu.Lock()
			r.memo[key] = account
			r.mu.Unlock()
			return account, nil
		}
		lastErr = err
		if attempt == r.maxAttempts {
			break
		}

		delay := r.minDelay + time.Duration(rand.Int63n(int64(r.maxDelay-r.minDelay)))
		r.logger.Warn("account lookup failed, retrying",
			slog.String("address", key),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("resolve: account lookup for %s exhausted %d attempts: %w", key, r.maxAttempts, lastErr)
}

// isZeroAddress reports whether the hex address is all zeroes.
func isZeroAddress(addr string) bool {
	addr = strings.TrimPrefix(addr, "0x")
	if addr == "" {
		return false
	}
	for _, c := range addr {
		if c != '0' {
			return false
		}
	}
	return true
}

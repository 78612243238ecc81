// Package domain defines the core types and store interfaces for the
// secure-trade indexer.
package domain

import "fmt"

// Environment selects which ledger mirror the scanner talks to.
type Environment string

const (
	EnvMainnet    Environment = "mainnet"
	EnvTestnet    Environment = "testnet"
	EnvPreviewnet Environment = "previewnet"
	EnvLocal      Environment = "local"
)

// ParseEnvironment validates an environment name. Anything outside the four
// known networks is rejected.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvMainnet, EnvTestnet, EnvPreviewnet, EnvLocal:
		return Environment(s), nil
	}
	return "", fmt.Errorf("%w: %q (valid: mainnet, testnet, previewnet, local)", ErrUnknownEnvironment, s)
}

// Trade is the in-memory projection of one secure-trade listing, keyed by its
// fingerprint. Seller and Buyer start as 20-byte hex ledger addresses and are
// rewritten to canonical account identifiers before the trade is flushed.
type Trade struct {
	Fingerprint  string
	Contract     string
	Environment  Environment
	Seller       string
	Buyer        string
	Token        string
	Serial       int64
	TinybarPrice int64
	LazyPrice    int64
	ExpiryTime   int64
	Nonce        int64
	Completed    bool
	Cancelled    bool
}

// TerminalKind distinguishes the two terminal trade states.
type TerminalKind string

const (
	TerminalCompleted TerminalKind = "completed"
	TerminalCancelled TerminalKind = "cancelled"
)

// TerminalMark identifies a cached trade row whose terminal flag should be
// set. Used for terminal events whose create fell outside the scan window.
// Nonce is the terminal event's own nonce; the cached row keeps the create
// event's nonce, so Nonce informs logging but never the row lookup.
type TerminalMark struct {
	Contract    string
	Environment Environment
	Token       string
	Serial      int64
	Nonce       int64
	Kind        TerminalKind
}

// Package events decodes raw mirror log records into typed secure-trade
// events and owns the trade fingerprint rule shared by all three families.
package events

import (
	"github.com/ethereum/go-ethereum/common"
)

// Event is one decoded secure-trade log record. All three event families
// carry the same fingerprint for a given (token, serial), so consumers can
// key trades without caring about the concrete type.
type Event interface {
	TradeFingerprint() string
}

// TradeCreated announces a new listing.
type TradeCreated struct {
	Fingerprint  string
	Seller       common.Address
	Buyer        common.Address
	Token        common.Address
	Serial       int64
	TinybarPrice int64
	LazyPrice    int64
	ExpiryTime   int64
	Nonce        int64
}

// TradeCompleted announces that a listing was bought.
type TradeCompleted struct {
	Fingerprint string
	Seller      common.Address
	Buyer       common.Address
	Token       common.Address
	Serial      int64
	Nonce       int64
}

// TradeCancelled announces that the seller withdrew a listing.
type TradeCancelled struct {
	Fingerprint string
	Seller      common.Address
	Token       common.Address
	Serial      int64
	Nonce       int64
}

func (e *TradeCreated) TradeFingerprint() string   { return e.Fingerprint }
func (e *TradeCompleted) TradeFingerprint() string { return e.Fingerprint }
func (e *TradeCancelled) TradeFingerprint() string { return e.Fingerprint }

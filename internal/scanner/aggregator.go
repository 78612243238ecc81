package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lazylotto/tradescan/internal/domain"
	"github.com/lazylotto/tradescan/internal/events"
)

// TerminalMarker receives late-terminal updates for trades whose create was
// not seen in the current pass.
type TerminalMarker interface {
	MarkTerminal(ctx context.Context, mark domain.TerminalMark) error
}

// Aggregator folds the decoded event stream of one pass into a map of live
// trades keyed by fingerprint. Terminal events for unknown fingerprints are
// dispatched straight to the cache at fold time and never appear in the
// flushed batch.
type Aggregator struct {
	contract string
	env      domain.Environment
	marker   TerminalMarker
	logger   *slog.Logger

	trades map[string]*domain.Trade
	order  []string

	lateTerminals int64
}

// NewAggregator creates an empty Aggregator for one (contract, environment)
// pass.
func NewAggregator(contract string, env domain.Environment, marker TerminalMarker, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		contract: contract,
		env:      env,
		marker:   marker,
		logger:   logger,
		trades:   make(map[string]*domain.Trade),
	}
}

// Apply folds one event into the trade map.
func (a *Aggregator) Apply(ctx context.Context, ev events.Event) error {
	switch ev := ev.(type) {
	case *events.TradeCreated:
		if _, exists := a.trades[ev.Fingerprint]; exists {
			// The contract guarantees a live (token, serial) is unique, so a
			// duplicate create means replayed history. Overwrite and warn.
			a.logger.Warn("duplicate create for live trade, overwriting",
				slog.String("fingerprint", ev.Fingerprint),
				slog.Int64("nonce", ev.Nonce),
			)
		} else {
			a.order = append(a.order, ev.Fingerprint)
		}
		a.trades[ev.Fingerprint] = &domain.Trade{
			Fingerprint:  ev.Fingerprint,
			Contract:     a.contract,
			Environment:  a.env,
			Seller:       strings.ToLower(ev.Seller.Hex()),
			Buyer:        strings.ToLower(ev.Buyer.Hex()),
			Token:        events.TokenID(ev.Token),
			Serial:       ev.Serial,
			TinybarPrice: ev.TinybarPrice,
			LazyPrice:    ev.LazyPrice,
			ExpiryTime:   ev.ExpiryTime,
			Nonce:        ev.Nonce,
		}
		return nil

	case *events.TradeCompleted:
		return a.applyTerminal(ctx, ev.Fingerprint, events.TokenID(ev.Token), ev.Serial, ev.Nonce, domain.TerminalCompleted)

	case *events.TradeCancelled:
		return a.applyTerminal(ctx, ev.Fingerprint, events.TokenID(ev.Token), ev.Serial, ev.Nonce, domain.TerminalCancelled)
	}

	return fmt.Errorf("aggregator: unhandled event type %T", ev)
}

// applyTerminal moves an in-memory trade to its terminal state, or dispatches
// a late-terminal mark when the create fell outside this pass.
func (a *Aggregator) applyTerminal(ctx context.Context, fingerprint, token string, serial, nonce int64, kind domain.TerminalKind) error {
	t, ok := a.trades[fingerprint]
	if !ok {
		a.lateTerminals++
		return a.marker.MarkTerminal(ctx, domain.TerminalMark{
			Contract:    a.contract,
			Environment: a.env,
			Token:       token,
			Serial:      serial,
			Nonce:       nonce,
			Kind:        kind,
		})
	}

	if t.Completed || t.Cancelled {
		// Terminal transitions are one-shot. The contract should make a
		// second terminal impossible; flag it rather than overwrite.
		a.logger.Warn("terminal event for already-terminal trade, ignoring",
			slog.String("fingerprint", fingerprint),
			slog.String("kind", string(kind)),
			slog.Bool("completed", t.Completed),
			slog.Bool("cancelled", t.Cancelled),
		)
		return nil
	}

	if kind == domain.TerminalCompleted {
		t.Completed = true
	} else {
		t.Cancelled = true
	}
	return nil
}

// Trades returns the surviving live trades in first-seen order.
func (a *Aggregator) Trades() []domain.Trade {
	out := make([]domain.Trade, 0, len(a.trades))
	for _, fp := range a.order {
		out = append(out, *a.trades[fp])
	}
	return out
}

// LateTerminals reports how many terminal events were routed straight to the
// cache during the fold.
func (a *Aggregator) LateTerminals() int64 {
	return a.lateTerminals
}

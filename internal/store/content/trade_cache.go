package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/lazylotto/tradescan/internal/domain"
)

// TradeCache writes the normalized trade read-model into the cache
// collection.
type TradeCache struct {
	client     *Client
	collection string
	logger     *slog.Logger
}

// NewTradeCache creates a TradeCache over the given collection.
func NewTradeCache(client *Client, collection string, logger *slog.Logger) *TradeCache {
	return &TradeCache{client: client, collection: collection, logger: logger}
}

// tradeRow is the wire shape of one cached trade. Field names match the
// content store schema; note the store spells "canceled" with one l.
type tradeRow struct {
	ID            int64  `json:"id,omitempty"`
	TradeContract string `json:"tradeContract"`
	Hash          string `json:"hash"`
	Seller        string `json:"seller"`
	Buyer         string `json:"buyer"`
	Token         string `json:"token"`
	Serial        int64  `json:"serial"`
	TinybarPrice  int64  `json:"tinybarPrice"`
	LazyPrice     int64  `json:"lazyPrice"`
	ExpiryTime    int64  `json:"expiryTime"`
	Nonce         int64  `json:"nonce"`
	Environment   string `json:"environment"`
	Completed     bool   `json:"completed"`
	Canceled      bool   `json:"canceled"`
}

func toRow(t domain.Trade) tradeRow {
	return tradeRow{
		TradeContract: t.Contract,
		Hash:          t.Fingerprint,
		Seller:        t.Seller,
		Buyer:         t.Buyer,
		Token:         t.Token,
		Serial:        t.Serial,
		TinybarPrice:  t.TinybarPrice,
		LazyPrice:     t.LazyPrice,
		ExpiryTime:    t.ExpiryTime,
		Nonce:         t.Nonce,
		Environment:   string(t.Environment),
		Completed:     t.Completed,
		Canceled:      t.Cancelled,
	}
}

// UpsertBatch writes the trades as one create-items request. When the store
// rejects the batch it pops the last record, logs it as the suspected
// offender, and retries the remainder, so every record the store will accept
// still lands.
func (c *TradeCache) UpsertBatch(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	rows := make([]tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, toRow(t))
	}

	err := c.client.Create(ctx, c.collection, rows)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrRejected) {
		return fmt.Errorf("content: upsert batch of %d trades: %w", len(trades), err)
	}

	offender := trades[len(trades)-1]
	c.logger.Warn("batch rejected, evicting suspected offender and retrying",
		slog.String("hash", offender.Fingerprint),
		slog.Int64("nonce", offender.Nonce),
		slog.Int("remaining", len(trades)-1),
	)
	return c.UpsertBatch(ctx, trades[:len(trades)-1])
}

// MarkTerminal sets the completed or canceled flag on the cached row matching
// the mark's identity (tradeContract, token, serial, environment). The cached
// row keeps the create event's nonce while the terminal event carries its own
// later one, so the nonce must not be part of the lookup. A missing row is a
// valid state (pruned, before the index window, or never indexed) and is
// logged and skipped.
func (c *TradeCache) MarkTerminal(ctx context.Context, mark domain.TerminalMark) error {
	q := url.Values{}
	q.Set("filter[tradeContract][_eq]", mark.Contract)
	q.Set("filter[token][_eq]", mark.Token)
	q.Set("filter[serial][_eq]", strconv.FormatInt(mark.Serial, 10))
	q.Set("filter[environment][_eq]", string(mark.Environment))
	q.Set("limit", "1")

	var rows []tradeRow
	if err := c.client.List(ctx, c.collection, q, &rows); err != nil {
		return fmt.Errorf("content: find trade %s/%d for %s mark: %w", mark.Token, mark.Serial, mark.Kind, err)
	}
	if len(rows) == 0 {
		c.logger.Warn("no cached row for terminal event, skipping",
			slog.String("token", mark.Token),
			slog.Int64("serial", mark.Serial),
			slog.Int64("nonce", mark.Nonce),
			slog.String("kind", string(mark.Kind)),
		)
		return nil
	}

	patch := map[string]bool{"completed": true}
	if mark.Kind == domain.TerminalCancelled {
		patch = map[string]bool{"canceled": true}
	}
	if err := c.client.Update(ctx, c.collection, rows[0].ID, patch); err != nil {
		return fmt.Errorf("content: mark trade %s/%d %s: %w", mark.Token, mark.Serial, mark.Kind, err)
	}
	return nil
}

// MaxNonce returns the greatest nonce currently cached for the pair, or 0
// when the cache holds no rows for it.
func (c *TradeCache) MaxNonce(ctx context.Context, contract string, env domain.Environment) (int64, error) {
	q := url.Values{}
	q.Set("filter[tradeContract][_eq]", contract)
	q.Set("filter[environment][_eq]", string(env))
	q.Set("sort", "-nonce")
	q.Set("limit", "1")
	q.Set("fields", "nonce")

	var rows []tradeRow
	if err := c.client.List(ctx, c.collection, q, &rows); err != nil {
		return 0, fmt.Errorf("content: max nonce for %s/%s: %w", contract, env, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Nonce, nil
}

var _ domain.TradeCache = (*TradeCache)(nil)

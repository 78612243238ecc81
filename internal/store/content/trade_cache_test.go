package content

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazylotto/tradescan/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTrade(nonce int64) domain.Trade {
	return domain.Trade{
		Fingerprint:  "0xhash",
		Contract:     "0.0.123",
		Environment:  domain.EnvTestnet,
		Seller:       "0.0.1001",
		Buyer:        "0.0.0",
		Token:        "0.0.555",
		Serial:       nonce * 10,
		TinybarPrice: 100,
		Nonce:        nonce,
	}
}

func TestUpsertBatchWritesAllRows(t *testing.T) {
	var got []tradeRow
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/items/secure_trade_cache", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	err := cache.UpsertBatch(context.Background(), []domain.Trade{sampleTrade(1), sampleTrade(2)})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "0xhash", got[0].Hash)
	assert.Equal(t, "0.0.123", got[0].TradeContract)
	assert.Equal(t, "testnet", got[0].Environment)
	assert.Equal(t, int64(2), got[1].Nonce)
}

func TestUpsertBatchEmptyIsNoop(t *testing.T) {
	cache := NewTradeCache(NewClient("http://127.0.0.1:1", "tok"), "secure_trade_cache", testLogger())
	require.NoError(t, cache.UpsertBatch(context.Background(), nil))
}

func TestUpsertBatchShrinksOnRejection(t *testing.T) {
	// The store rejects any batch containing nonce 3; the cache evicts the
	// last record each time until the rest is accepted.
	var accepted []tradeRow
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		var rows []tradeRow
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		for _, row := range rows {
			if row.Nonce == 3 {
				http.Error(w, `{"errors":[{"message":"Bad Request"}]}`, http.StatusBadRequest)
				return
			}
		}
		accepted = rows
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	err := cache.UpsertBatch(context.Background(), []domain.Trade{
		sampleTrade(1), sampleTrade(2), sampleTrade(3),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	require.Len(t, accepted, 2)
	assert.Equal(t, int64(1), accepted[0].Nonce)
	assert.Equal(t, int64(2), accepted[1].Nonce)
}

func TestUpsertBatchGivesUpOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	err := cache.UpsertBatch(context.Background(), []domain.Trade{sampleTrade(1)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRejected)
}

func TestMarkTerminalPatchesMatchingRow(t *testing.T) {
	var patchedPath string
	var patch map[string]bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			assert.Equal(t, "0.0.555", q.Get("filter[token][_eq]"))
			assert.Equal(t, "42", q.Get("filter[serial][_eq]"))
			// The row keeps the create nonce, so the lookup must not filter
			// on the terminal event's nonce.
			assert.Empty(t, q.Get("filter[nonce][_eq]"))
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": 31, "nonce": 3}}})
		case http.MethodPatch:
			patchedPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			w.Write([]byte(`{"data":{}}`))
		}
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	err := cache.MarkTerminal(context.Background(), domain.TerminalMark{
		Contract:    "0.0.123",
		Environment: domain.EnvTestnet,
		Token:       "0.0.555",
		Serial:      42,
		Nonce:       9,
		Kind:        domain.TerminalCancelled,
	})
	require.NoError(t, err)

	assert.Equal(t, "/items/secure_trade_cache/31", patchedPath)
	assert.Equal(t, map[string]bool{"canceled": true}, patch)
}

func TestMarkTerminalFindsRowWithCreateNonce(t *testing.T) {
	// The server applies every filter param against the stored row, the way
	// the real store does. The row carries the create nonce (3); the complete
	// event carries nonce 4 and must still land.
	row := map[string]string{
		"tradeContract": "0.0.123",
		"token":         "0.0.555",
		"serial":        "5",
		"nonce":         "3",
		"environment":   "testnet",
	}
	var patchedPath string
	var patch map[string]bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			for key, vals := range r.URL.Query() {
				field, ok := strings.CutPrefix(key, "filter[")
				if !ok {
					continue
				}
				field = strings.TrimSuffix(field, "][_eq]")
				if row[field] != vals[0] {
					json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
					return
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": 12, "nonce": 3}}})
		case http.MethodPatch:
			patchedPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			w.Write([]byte(`{"data":{}}`))
		}
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	err := cache.MarkTerminal(context.Background(), domain.TerminalMark{
		Contract:    "0.0.123",
		Environment: domain.EnvTestnet,
		Token:       "0.0.555",
		Serial:      5,
		Nonce:       4,
		Kind:        domain.TerminalCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, "/items/secure_trade_cache/12", patchedPath)
	assert.Equal(t, map[string]bool{"completed": true}, patch)
}

func TestMarkTerminalMissingRowIsSkipped(t *testing.T) {
	var patched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			patched = true
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	err := cache.MarkTerminal(context.Background(), domain.TerminalMark{
		Contract:    "0.0.123",
		Environment: domain.EnvTestnet,
		Token:       "0.0.555",
		Serial:      42,
		Nonce:       9,
		Kind:        domain.TerminalCompleted,
	})
	require.NoError(t, err)
	assert.False(t, patched)
}

func TestMaxNonce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "-nonce", q.Get("sort"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "nonce", q.Get("fields"))
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"nonce": 17}}})
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	n, err := cache.MaxNonce(context.Background(), "0.0.123", domain.EnvTestnet)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
}

func TestMaxNonceEmptyCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	cache := NewTradeCache(NewClient(srv.URL, "tok"), "secure_trade_cache", testLogger())
	n, err := cache.MaxNonce(context.Background(), "0.0.123", domain.EnvTestnet)
	require.NoError(t, err)
	assert.Zero(t, n)
}

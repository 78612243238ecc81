package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazylotto/tradescan/internal/domain"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://mainnet-public.mirrornode.hedera.com", BaseURL(domain.EnvMainnet))
	assert.Equal(t, "https://testnet.mirrornode.hedera.com", BaseURL(domain.EnvTestnet))
	assert.Equal(t, "https://previewnet.mirrornode.hedera.com", BaseURL(domain.EnvPreviewnet))
	assert.Equal(t, "http://localhost:5551", BaseURL(domain.EnvLocal))
}

func TestStreamLogsPagination(t *testing.T) {
	var requests []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/contracts/0.0.123/results/logs", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())

		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(map[string]any{
				"logs": []map[string]any{
					{"topics": []string{"0xcc"}, "data": "0x03", "timestamp": "300.000000000"},
				},
				"links": map[string]any{"next": nil},
			})
			return
		}

		next := "/api/v1/contracts/0.0.123/results/logs?limit=100&order=asc&page=2"
		json.NewEncoder(w).Encode(map[string]any{
			"logs": []map[string]any{
				{"topics": []string{"0xaa"}, "data": "0x01", "timestamp": "100.000000000"},
				{"topics": []string{"0xbb"}, "data": "0x02", "timestamp": "200.000000000"},
			},
			"links": map[string]any{"next": next},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL)

	var seen []Log
	err := c.StreamLogs(context.Background(), "0.0.123", "50.000000000", func(l Log) error {
		seen = append(seen, l)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, "100.000000000", seen[0].Timestamp)
	assert.Equal(t, "300.000000000", seen[2].Timestamp)

	// First request carries the ascending order, page size, and watermark
	// filter; the second follows the next cursor verbatim.
	require.Len(t, requests, 2)
	assert.Contains(t, requests[0], "order=asc")
	assert.Contains(t, requests[0], "limit=100")
	assert.Contains(t, requests[0], "timestamp=gt%3A50.000000000")
	assert.Contains(t, requests[1], "page=2")
}

func TestStreamLogsNoWatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("timestamp"))
		json.NewEncoder(w).Encode(map[string]any{"logs": []any{}, "links": map[string]any{"next": nil}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.StreamLogs(context.Background(), "0.0.9", "", func(Log) error {
		t.Fatal("no logs expected")
		return nil
	})
	require.NoError(t, err)
}

func TestStreamLogsSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.StreamLogs(context.Background(), "0.0.9", "", func(Log) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/0xdeadbeef00000000000000000000000000000000", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"account": "0.0.4242"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	account, err := c.Account(context.Background(), "0xdeadbeef00000000000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "0.0.4242", account)
}

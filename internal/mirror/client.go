// Package mirror is a thin read-only HTTP client for a Hedera-style mirror
// node. It exposes paginated contract log retrieval and account lookup.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// logPageSize is the page size requested from the mirror logs endpoint.
const logPageSize = 100

// Log is a single contract event record as returned by the mirror node.
type Log struct {
	Address   string   `json:"address"`
	Topics    []string `json:"topics"`
	Data      string   `json:"data"`
	Timestamp string   `json:"timestamp"`
	Index     int      `json:"index"`
}

// Client issues paginated GETs against one mirror node endpoint. Transient
// failures are surfaced to the caller; the scanner owns pass-level retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a mirror client for the given base URL, e.g. the value of
// BaseURL(env).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// logsPage mirrors the logs endpoint response envelope.
type logsPage struct {
	Logs  []Log `json:"logs"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// StreamLogs fetches event logs for contract in ascending timestamp order and
// hands each one to fn. When sinceTimestamp is non-empty only logs with a
// strictly greater consensus timestamp are returned. Pagination follows the
// mirror's links.next cursor until exhausted. The sequence is restartable:
// on error the caller may simply call StreamLogs again with the same
// sinceTimestamp.
func (c *Client) StreamLogs(ctx context.Context, contract, sinceTimestamp string, fn func(Log) error) error {
	q := url.Values{}
	q.Set("order", "asc")
	q.Set("limit", fmt.Sprintf("%d", logPageSize))
	if sinceTimestamp != "" {
		q.Set("timestamp", "gt:"+sinceTimestamp)
	}
	next := fmt.Sprintf("/api/v1/contracts/%s/results/logs?%s", contract, q.Encode())

	for next != "" {
		var page logsPage
		if err := c.get(ctx, next, &page); err != nil {
			return fmt.Errorf("mirror: fetch logs for %s: %w", contract, err)
		}

		for _, log := range page.Logs {
			if err := fn(log); err != nil {
				return err
			}
		}

		next = ""
		if page.Links.Next != nil {
			next = *page.Links.Next
		}
	}
	return nil
}

// accountResponse mirrors the accounts endpoint response.
type accountResponse struct {
	Account string `json:"account"`
}

// Account looks up the canonical account identifier for a 20-byte hex ledger
// address.
func (c *Client) Account(ctx context.Context, address string) (string, error) {
	var resp accountResponse
	if err := c.get(ctx, "/api/v1/accounts/"+address, &resp); err != nil {
		return "", fmt.Errorf("mirror: lookup account %s: %w", address, err)
	}
	return resp.Account, nil
}

// get performs one GET against path (which may carry a query string) and
// decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

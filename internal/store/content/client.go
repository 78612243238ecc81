// Package content is a client for the external content store that holds the
// indexer's checkpoint and trade-cache collections. The store speaks a
// Directus-style items API: batch create via POST, single-row update via
// PATCH, filtered reads via GET, bearer-token auth.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"context"

	"github.com/lazylotto/tradescan/internal/domain"
)

// Client issues authenticated requests against one content store endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a content store client for the given endpoint and bearer
// credential.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope is the standard content store response wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// List performs a filtered read on collection and decodes the data array
// into out.
func (c *Client) List(ctx context.Context, collection string, query url.Values, out any) error {
	path := "/items/" + collection
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("content: decode %s items: %w", collection, err)
	}
	return nil
}

// Create inserts one record or a batch of records into collection.
func (c *Client) Create(ctx context.Context, collection string, body any) error {
	_, err := c.do(ctx, http.MethodPost, "/items/"+collection, body)
	return err
}

// Update patches a single record by primary key.
func (c *Client) Update(ctx context.Context, collection string, id int64, patch any) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/items/%s/%d", collection, id), patch)
	return err
}

// do executes one request and returns the raw "data" field of the response.
// A 400 response wraps domain.ErrRejected so callers can apply the
// shrink-and-retry batch policy.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("content: marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("content: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("content: read response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("content: %w: %s", domain.ErrRejected, string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("content: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("content: decode response: %w", err)
	}
	return env.Data, nil
}

package content

import (
	"context"
	"fmt"
	"net/url"

	"github.com/lazylotto/tradescan/internal/domain"
)

// CheckpointStore keeps one watermark row per (tradeContract, environment)
// in the events collection.
type CheckpointStore struct {
	client     *Client
	collection string
}

// NewCheckpointStore creates a CheckpointStore over the given collection.
func NewCheckpointStore(client *Client, collection string) *CheckpointStore {
	return &CheckpointStore{client: client, collection: collection}
}

type checkpointRow struct {
	ID            int64  `json:"id,omitempty"`
	TradeContract string `json:"tradeContract"`
	LastTimestamp string `json:"lastTimestamp"`
	Environment   string `json:"environment"`
}

// Load returns the stored watermark, or the empty string when no row exists
// or the stored value is the literal "0" (an unstarted checkpoint).
func (s *CheckpointStore) Load(ctx context.Context, contract string, env domain.Environment) (string, error) {
	row, err := s.find(ctx, contract, env)
	if err != nil {
		return "", fmt.Errorf("content: load checkpoint for %s/%s: %w", contract, env, err)
	}
	if row == nil || row.LastTimestamp == "" || row.LastTimestamp == "0" {
		return "", nil
	}
	return row.LastTimestamp, nil
}

// Save upserts the watermark: it updates the existing row for the pair, or
// inserts one on the first successful pass.
func (s *CheckpointStore) Save(ctx context.Context, contract string, env domain.Environment, timestamp string) error {
	row, err := s.find(ctx, contract, env)
	if err != nil {
		return fmt.Errorf("content: save checkpoint for %s/%s: %w", contract, env, err)
	}

	if row != nil {
		patch := map[string]string{"lastTimestamp": timestamp}
		if err := s.client.Update(ctx, s.collection, row.ID, patch); err != nil {
			return fmt.Errorf("content: update checkpoint for %s/%s: %w", contract, env, err)
		}
		return nil
	}

	created := checkpointRow{
		TradeContract: contract,
		LastTimestamp: timestamp,
		Environment:   string(env),
	}
	if err := s.client.Create(ctx, s.collection, created); err != nil {
		return fmt.Errorf("content: insert checkpoint for %s/%s: %w", contract, env, err)
	}
	return nil
}

func (s *CheckpointStore) find(ctx context.Context, contract string, env domain.Environment) (*checkpointRow, error) {
	q := url.Values{}
	q.Set("filter[tradeContract][_eq]", contract)
	q.Set("filter[environment][_eq]", string(env))
	q.Set("limit", "1")

	var rows []checkpointRow
	if err := s.client.List(ctx, s.collection, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

var _ domain.CheckpointStore = (*CheckpointStore)(nil)

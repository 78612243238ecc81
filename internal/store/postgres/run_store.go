package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lazylotto/tradescan/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Insert records one scan pass.
func (s *RunStore) Insert(ctx context.Context, run domain.ScanRun) error {
	const query = `
		INSERT INTO scan_runs (
			id, contract, environment, started_at, finished_at,
			logs_seen, trades_flushed, late_terminals,
			watermark_before, watermark_after, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Contract, string(run.Environment),
		run.StartedAt, run.FinishedAt,
		run.LogsSeen, run.TradesFlushed, run.LateTerminals,
		run.WatermarkBefore, run.WatermarkAfter, run.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert scan run: %w", err)
	}
	return nil
}

// ListRecent returns the most recent passes for a pair, newest first.
func (s *RunStore) ListRecent(ctx context.Context, contract string, env domain.Environment, limit int) ([]domain.ScanRun, error) {
	const query = `
		SELECT id, contract, environment, started_at, finished_at,
			logs_seen, trades_flushed, late_terminals,
			watermark_before, watermark_after, error
		FROM scan_runs
		WHERE contract = $1 AND environment = $2
		ORDER BY started_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, contract, string(env), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ScanRun
	for rows.Next() {
		var (
			r   domain.ScanRun
			env string
			st  time.Time
			ft  time.Time
		)
		if err := rows.Scan(
			&r.ID, &r.Contract, &env, &st, &ft,
			&r.LogsSeen, &r.TradesFlushed, &r.LateTerminals,
			&r.WatermarkBefore, &r.WatermarkAfter, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run row: %w", err)
		}
		r.Environment = domain.Environment(env)
		r.StartedAt = st
		r.FinishedAt = ft
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

var _ domain.RunStore = (*RunStore)(nil)

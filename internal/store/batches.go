package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// ErrBatchExists is returned when a batch already exists for the date.
var ErrBatchExists = errors.New("batch already exists for date")

// ErrBatchNotFound is returned when no batch exists for the date.
var ErrBatchNotFound = errors.New("batch not found")

// CreateBatch inserts a new batch for the given date. At most one batch per
// date: a second insert for the same date fails with ErrBatchExists.
func (s *Store) CreateBatch(ctx context.Context, b *model.Batch) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO batches (batch_date, unit_cents, prepared_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_date) DO NOTHING
		RETURNING id
	`, BatchDate(b.BatchDate), b.UnitCents, b.PreparedAt)

	if err := row.Scan(&b.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrBatchExists, BatchDate(b.BatchDate).Format("2006-01-02"))
		}
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// GetBatchByDate fetches the batch for a date, if any.
func (s *Store) GetBatchByDate(ctx context.Context, date time.Time) (*model.Batch, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, batch_date, unit_cents, total_orders, total_cost_cents,
		       total_payout_cents, paused, prepared_at, executed_at
		FROM batches WHERE batch_date = $1
	`, BatchDate(date))

	var b model.Batch
	err := row.Scan(&b.ID, &b.BatchDate, &b.UnitCents, &b.TotalOrders,
		&b.TotalCostCents, &b.TotalPayoutCents, &b.Paused, &b.PreparedAt, &b.ExecutedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, BatchDate(date).Format("2006-01-02"))
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

// RecomputeBatchAggregates rebuilds a batch's totals from its current order
// rows. Aggregates are always recomputed, never incrementally patched.
func (s *Store) RecomputeBatchAggregates(ctx context.Context, batchID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE batches SET
			total_orders       = agg.n,
			total_cost_cents   = agg.cost,
			total_payout_cents = agg.payout
		FROM (
			SELECT COUNT(*) AS n,
			       COALESCE(SUM(cost_cents), 0) AS cost,
			       COALESCE(SUM(payout_cents), 0) AS payout
			FROM orders WHERE batch_id = $1
		) AS agg
		WHERE batches.id = $1
	`, batchID)
	if err != nil {
		return fmt.Errorf("recompute batch aggregates: %w", err)
	}
	return nil
}

// MarkBatchExecuted stamps the batch's executed time.
func (s *Store) MarkBatchExecuted(ctx context.Context, batchID int64, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE batches SET executed_at = $2 WHERE id = $1`, batchID, at)
	if err != nil {
		return fmt.Errorf("mark batch executed: %w", err)
	}
	return nil
}

// SetBatchPaused toggles the paused flag; a paused batch is skipped by
// execute cycles.
func (s *Store) SetBatchPaused(ctx context.Context, batchID int64, paused bool) error {
	_, err := s.db.Exec(ctx, `UPDATE batches SET paused = $2 WHERE id = $1`, batchID, paused)
	if err != nil {
		return fmt.Errorf("set batch paused: %w", err)
	}
	return nil
}

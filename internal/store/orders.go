package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/kalshi-trader/internal/model"
	"github.com/rickgao/kalshi-trader/internal/reconcile"
)

const orderColumns = `
	id, COALESCE(batch_id, 0), ticker, side, price_cents, units, cost_cents,
	payout_cents, placement, outcome, client_order_id, exchange_order_id,
	executed_price_cents, executed_cost_cents, settled, settlement_cents,
	fee_cents, created_at, updated_at
`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.BatchID, &o.Ticker, &o.Side, &o.PriceCents,
		&o.Units, &o.CostCents, &o.PayoutCents, &o.Placement, &o.Outcome,
		&o.ClientOrderID, &o.ExchangeOrderID, &o.ExecutedPriceCents,
		&o.ExecutedCostCents, &o.Settled, &o.SettlementCents, &o.FeeCents,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *Store) queryOrders(ctx context.Context, sql string, args ...any) ([]model.Order, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertOrders creates pending orders for a batch. The UNIQUE(batch_id,
// ticker) constraint enforces one order per market per batch; a duplicate
// ticker within a batch fails the whole insert.
func (s *Store) InsertOrders(ctx context.Context, batchID int64, orders []model.Order) error {
	batch := &pgx.Batch{}
	for _, o := range orders {
		batch.Queue(`
			INSERT INTO orders (batch_id, ticker, side, price_cents, units,
			                    cost_cents, payout_cents, placement, outcome,
			                    client_order_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, batchID, o.Ticker, o.Side, o.PriceCents, o.Units, o.CostCents,
			o.PayoutCents, o.Placement, o.Outcome, o.ClientOrderID)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range orders {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert orders: %w", err)
		}
	}
	return nil
}

// OrdersForBatch returns all orders of a batch.
func (s *Store) OrdersForBatch(ctx context.Context, batchID int64) ([]model.Order, error) {
	orders, err := s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE batch_id = $1 ORDER BY ticker`, batchID)
	if err != nil {
		return nil, fmt.Errorf("orders for batch: %w", err)
	}
	return orders, nil
}

// PendingOrders returns a batch's orders still eligible for submission:
// pending plus failed from earlier cycles.
func (s *Store) PendingOrders(ctx context.Context, batchID int64) ([]model.Order, error) {
	orders, err := s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE batch_id = $1 AND placement IN ($2, $3)
		ORDER BY ticker
	`, batchID, model.PlacementPending, model.PlacementFailed)
	if err != nil {
		return nil, fmt.Errorf("pending orders: %w", err)
	}
	return orders, nil
}

// AllOrders returns every order row, for reconciliation.
func (s *Store) AllOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("all orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderSubmission records the result of one submission attempt.
func (s *Store) UpdateOrderSubmission(ctx context.Context, o model.Order) error {
	_, err := s.db.Exec(ctx, `
		UPDATE orders SET
			placement            = $2,
			exchange_order_id    = $3,
			executed_price_cents = $4,
			executed_cost_cents  = $5,
			cost_cents           = $6,
			updated_at           = now()
		WHERE id = $1
	`, o.ID, o.Placement, o.ExchangeOrderID, o.ExecutedPriceCents, o.ExecutedCostCents, o.CostCents)
	if err != nil {
		return fmt.Errorf("update order submission: %w", err)
	}
	return nil
}

// InsertRecoveredOrder persists an order synthesized by reconciliation.
// Recovered orders carry no batch.
func (s *Store) InsertRecoveredOrder(ctx context.Context, o model.Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (batch_id, ticker, side, price_cents, units,
		                    cost_cents, payout_cents, placement, outcome,
		                    exchange_order_id, executed_price_cents,
		                    executed_cost_cents, settled, settlement_cents, fee_cents)
		VALUES (NULL, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, o.Ticker, o.Side, o.PriceCents, o.Units, o.CostCents, o.PayoutCents,
		o.Placement, o.Outcome, o.ExchangeOrderID, o.ExecutedPriceCents,
		o.ExecutedCostCents, o.Settled, o.SettlementCents, o.FeeCents)
	if err != nil {
		return fmt.Errorf("insert recovered order: %w", err)
	}
	return nil
}

// ApplyCorrection overwrites a drifted order with recomputed values and
// records the prior values for audit.
func (s *Store) ApplyCorrection(ctx context.Context, c reconcile.Correction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin correction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE orders SET
			units            = $2,
			cost_cents       = $3,
			payout_cents     = $4,
			outcome          = $5,
			settled          = $6,
			settlement_cents = $7,
			fee_cents        = $8,
			updated_at       = now()
		WHERE id = $1
	`, c.After.ID, c.After.Units, c.After.CostCents, c.After.PayoutCents,
		c.After.Outcome, c.After.Settled, c.After.SettlementCents, c.After.FeeCents)
	if err != nil {
		return fmt.Errorf("apply correction: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_corrections (order_id, before_units, before_cost, after_units, after_cost)
		VALUES ($1, $2, $3, $4, $5)
	`, c.After.ID, c.Before.Units, c.Before.CostCents, c.After.Units, c.After.CostCents)
	if err != nil {
		return fmt.Errorf("record correction: %w", err)
	}

	return tx.Commit(ctx)
}

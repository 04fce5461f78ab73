// Package store persists batches, orders, and audit rows in PostgreSQL.
//
// The schema is owned by an external migration tool in production; Migrate
// applies it directly for development and tests.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    id                 BIGSERIAL PRIMARY KEY,
    batch_date         DATE NOT NULL UNIQUE,
    unit_cents         INTEGER NOT NULL,
    total_orders       INTEGER NOT NULL DEFAULT 0,
    total_cost_cents   BIGINT NOT NULL DEFAULT 0,
    total_payout_cents BIGINT NOT NULL DEFAULT 0,
    paused             BOOLEAN NOT NULL DEFAULT FALSE,
    prepared_at        TIMESTAMPTZ NOT NULL,
    executed_at        TIMESTAMPTZ
);

-- batch_id is NULL for orders recovered from fills with no local batch.
CREATE TABLE IF NOT EXISTS orders (
    id                   BIGSERIAL PRIMARY KEY,
    batch_id             BIGINT REFERENCES batches(id),
    ticker               TEXT NOT NULL,
    side                 TEXT NOT NULL,
    price_cents          INTEGER NOT NULL,
    units                INTEGER NOT NULL,
    cost_cents           BIGINT NOT NULL,
    payout_cents         BIGINT NOT NULL,
    placement            TEXT NOT NULL,
    outcome              TEXT NOT NULL,
    client_order_id      UUID,
    exchange_order_id    TEXT NOT NULL DEFAULT '',
    executed_price_cents INTEGER NOT NULL DEFAULT 0,
    executed_cost_cents  BIGINT NOT NULL DEFAULT 0,
    settled              BOOLEAN NOT NULL DEFAULT FALSE,
    settlement_cents     BIGINT NOT NULL DEFAULT 0,
    fee_cents            BIGINT NOT NULL DEFAULT 0,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (batch_id, ticker)
);

-- Prior values of corrected orders, for audit.
CREATE TABLE IF NOT EXISTS order_corrections (
    id           BIGSERIAL PRIMARY KEY,
    order_id     BIGINT NOT NULL REFERENCES orders(id),
    before_units INTEGER NOT NULL,
    before_cost  BIGINT NOT NULL,
    after_units  INTEGER NOT NULL,
    after_cost   BIGINT NOT NULL,
    corrected_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS probability_audit (
    id                BIGSERIAL PRIMARY KEY,
    ticker            TEXT NOT NULL,
    probability_cents INTEGER NOT NULL,
    observed_at       TIMESTAMPTZ NOT NULL,
    drop_pct          DOUBLE PRECISION NOT NULL,
    suspect           BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_orders_ticker    ON orders(ticker);
CREATE INDEX IF NOT EXISTS idx_orders_batch     ON orders(batch_id);
CREATE INDEX IF NOT EXISTS idx_orders_placement ON orders(placement);
CREATE INDEX IF NOT EXISTS idx_audit_ticker     ON probability_audit(ticker, observed_at DESC);
`

// Store provides persistence for the trading pipeline.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// New creates a store over the given pool.
func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping verifies the connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// BatchDate truncates t to its date component in UTC. All batch lookups and
// the one-batch-per-date invariant key off this value.
func BatchDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

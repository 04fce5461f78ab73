package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// InsertAuditRows batch-inserts probability-drop audit rows.
func (s *Store) InsertAuditRows(ctx context.Context, rows []model.AuditRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO probability_audit (ticker, probability_cents, observed_at, drop_pct, suspect)
			VALUES ($1, $2, $3, $4, $5)
		`, r.Ticker, r.ProbabilityCents, r.ObservedAt, r.DropPct, r.Suspect)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert audit rows: %w", err)
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *TraderConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.AccessKey == "" {
		return errors.New("api.access_key is required")
	}
	if c.API.PrivateKeyPath == "" {
		return errors.New("api.private_key_path is required")
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if len(c.Trading.SeriesTickers) == 0 {
		return errors.New("trading.series_tickers must name at least one series")
	}
	if c.Trading.UnitCents < 1 {
		return errors.New("trading.unit_cents must be >= 1")
	}
	if c.Trading.SubmitGroup < 1 {
		return errors.New("trading.submit_group must be >= 1")
	}

	if c.Risk.MinPriceCents < 1 || c.Risk.MinPriceCents > 99 {
		return fmt.Errorf("risk.min_price_cents must be between 1 and 99, got %d", c.Risk.MinPriceCents)
	}
	if c.Risk.CapPct <= 0 || c.Risk.CapPct > 1 {
		return fmt.Errorf("risk.cap_pct must be in (0, 1], got %g", c.Risk.CapPct)
	}

	if c.Reconcile.CostBasis != "average" && c.Reconcile.CostBasis != "fifo" {
		return fmt.Errorf("reconcile.cost_basis must be %q or %q, got %q", "average", "fifo", c.Reconcile.CostBasis)
	}

	if c.Drift.BatchSize < 1 {
		return errors.New("drift.batch_size must be >= 1")
	}
	if c.Drift.BufferSize < 1 {
		return errors.New("drift.buffer_size must be >= 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.AuthToken == "" {
		return errors.New("server.auth_token is required")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

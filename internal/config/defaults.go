package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL        = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultWSURL          = "wss://api.elections.kalshi.com"
	DefaultAPITimeout     = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRatePerSecond  = 8.0
	DefaultRateBurst      = 10
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultCloseHorizon   = 36 * time.Hour
	DefaultPageSize       = 200
	DefaultUnitCents      = 100
	DefaultSubmitGroup    = 10
	DefaultSubmitDelay    = 2 * time.Second
	DefaultMinPriceCents  = 90
	DefaultCapPct         = 0.03
	DefaultTolerancePct   = 0.01
	DefaultToleranceCents = 5
	DefaultCostBasis      = "average"
	DefaultDriftWindow    = 10 * time.Minute
	DefaultDropThreshold  = 20.0
	DefaultBatchSize      = 100
	DefaultFlushInterval  = 5 * time.Second
	DefaultBufferSize     = 1000
	DefaultServerPort     = 8080
)

func (c *TraderConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RatePerSecond == 0 {
		c.API.RatePerSecond = DefaultRatePerSecond
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Trading defaults
	if c.Trading.CloseHorizon == 0 {
		c.Trading.CloseHorizon = DefaultCloseHorizon
	}
	if c.Trading.PageSize == 0 {
		c.Trading.PageSize = DefaultPageSize
	}
	if c.Trading.UnitCents == 0 {
		c.Trading.UnitCents = DefaultUnitCents
	}
	if c.Trading.SubmitGroup == 0 {
		c.Trading.SubmitGroup = DefaultSubmitGroup
	}
	if c.Trading.SubmitDelay == 0 {
		c.Trading.SubmitDelay = DefaultSubmitDelay
	}

	// Risk defaults
	if c.Risk.MinPriceCents == 0 {
		c.Risk.MinPriceCents = DefaultMinPriceCents
	}
	if c.Risk.CapPct == 0 {
		c.Risk.CapPct = DefaultCapPct
	}

	// Reconcile defaults
	if c.Reconcile.TolerancePct == 0 {
		c.Reconcile.TolerancePct = DefaultTolerancePct
	}
	if c.Reconcile.ToleranceCents == 0 {
		c.Reconcile.ToleranceCents = DefaultToleranceCents
	}
	if c.Reconcile.CostBasis == "" {
		c.Reconcile.CostBasis = DefaultCostBasis
	}

	// Drift defaults
	if c.Drift.Window == 0 {
		c.Drift.Window = DefaultDriftWindow
	}
	if c.Drift.DropThreshold == 0 {
		c.Drift.DropThreshold = DefaultDropThreshold
	}
	if c.Drift.BatchSize == 0 {
		c.Drift.BatchSize = DefaultBatchSize
	}
	if c.Drift.FlushInterval == 0 {
		c.Drift.FlushInterval = DefaultFlushInterval
	}
	if c.Drift.BufferSize == 0 {
		c.Drift.BufferSize = DefaultBufferSize
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

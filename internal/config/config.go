package config

import "time"

// TraderConfig is the root configuration for a trader instance.
type TraderConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	API       APIConfig       `yaml:"api"`
	Database  DatabaseConfig  `yaml:"database"`
	Trading   TradingConfig   `yaml:"trading"`
	Risk      RiskConfig      `yaml:"risk"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Drift     DriftConfig     `yaml:"drift"`
	Server    ServerConfig    `yaml:"server"`
}

// InstanceConfig identifies this trader.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`
	WSURL          string        `yaml:"ws_url"`
	AccessKey      string        `yaml:"access_key"`       // API key ID (KALSHI-ACCESS-KEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RatePerSecond  float64       `yaml:"rate_per_second"` // Request rate limit
	RateBurst      int           `yaml:"rate_burst"`
}

// DatabaseConfig holds the Postgres connection for batches, orders, and audit rows.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// TradingConfig controls candidate selection and batch execution.
type TradingConfig struct {
	SeriesTickers []string      `yaml:"series_tickers"` // Series categories to trade
	CloseHorizon  time.Duration `yaml:"close_horizon"`  // Only markets closing within this window
	PageSize      int           `yaml:"page_size"`      // Markets page size per API request
	UnitCents     int           `yaml:"unit_cents"`     // Smallest allocation increment
	SubmitGroup   int           `yaml:"submit_group"`   // Concurrent submissions per group
	SubmitDelay   time.Duration `yaml:"submit_delay"`   // Delay between submission groups
}

// RiskConfig holds the safety limits enforced at submission time.
type RiskConfig struct {
	MinPriceCents int     `yaml:"min_price_cents"` // Reject buys below this price
	CapPct        float64 `yaml:"cap_pct"`         // Per-market fraction of portfolio value
}

// ReconcileConfig controls fill-based reconciliation.
type ReconcileConfig struct {
	TolerancePct   float64 `yaml:"tolerance_pct"`   // Correct when drift exceeds this percentage
	ToleranceCents int64   `yaml:"tolerance_cents"` // ...or this absolute amount
	CostBasis      string  `yaml:"cost_basis"`      // "average" or "fifo"
}

// DriftConfig controls the probability-drop monitor.
type DriftConfig struct {
	Window        time.Duration `yaml:"window"`         // Baseline lookback (default 10m)
	DropThreshold float64       `yaml:"drop_threshold"` // Percent drop that triggers an audit row
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// ServerConfig holds the control-plane HTTP server settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"` // Shared secret for scheduled entry points
}

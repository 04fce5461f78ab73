package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// FaceValueCents is the payout of one winning contract.
const FaceValueCents = 100

// -----------------------------------------------------------------------------
// Market snapshot
// -----------------------------------------------------------------------------

// Market is an immutable snapshot of a tradeable binary market.
type Market struct {
	Ticker       string    // Primary key (e.g., "HIGHNY-26AUG28-B85")
	EventTicker  string    // Grouping event (e.g., "HIGHNY-26AUG28")
	SeriesTicker string    // Series category (e.g., "HIGHNY")
	Title        string    // Display title
	YesAsk       int       // Best YES ask in cents (quoted probability of YES)
	NoAsk        int       // Best NO ask in cents
	LastPrice    int       // Last traded price in cents
	OpenInterest int64     // Outstanding contracts (liquidity ranking signal)
	Volume24h    int64     // 24-hour volume
	CloseTime    time.Time // Scheduled close
	Status       string    // Exchange market status
}

// AskFor returns the quoted ask for the given side.
func (m Market) AskFor(side Side) int {
	if side == SideYes {
		return m.YesAsk
	}
	return m.NoAsk
}

// -----------------------------------------------------------------------------
// Batch and Order
// -----------------------------------------------------------------------------

// Batch is a dated grouping of orders submitted together.
// At most one batch exists per date.
type Batch struct {
	ID               int64
	BatchDate        time.Time // Date component only; unique
	UnitCents        int       // Smallest allocation increment
	TotalOrders      int       // Recomputed from order rows, never patched
	TotalCostCents   int64     // Recomputed from order rows
	TotalPayoutCents int64     // Recomputed from order rows
	Paused           bool
	PreparedAt       time.Time
	ExecutedAt       *time.Time // Set once an execute cycle has run
}

// Order is one intended or executed position in one market.
type Order struct {
	ID      int64
	BatchID int64
	Ticker  string
	Side    Side

	PriceCents  int   // Intended limit price per contract
	Units       int   // Contract count
	CostCents   int64 // price * units; adjusted from executed values post-fill
	PayoutCents int64 // units * FaceValueCents

	Placement Placement
	Outcome   Outcome

	ClientOrderID   uuid.UUID // Idempotency token sent with the order
	ExchangeOrderID string    // Exchange-assigned id, set on submission

	// Executed values are recorded from the exchange's report, never
	// re-derived locally.
	ExecutedPriceCents int
	ExecutedCostCents  int64

	Settled         bool
	SettlementCents int64 // Settlement revenue, cents
	FeeCents        int64 // Settlement fee, cents

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IntendedCost returns price * units for the order's intended values.
func (o Order) IntendedCost() int64 {
	return int64(o.PriceCents) * int64(o.Units)
}

// CostInvariantHolds reports whether cost == price * units over the executed
// values when present, otherwise over the intended values.
func (o Order) CostInvariantHolds() bool {
	if o.ExecutedPriceCents > 0 {
		return o.ExecutedCostCents == int64(o.ExecutedPriceCents)*int64(o.Units)
	}
	return o.CostCents == o.IntendedCost()
}

// Filled reports whether the exchange has confirmed execution.
func (o Order) Filled() bool {
	return o.Placement == PlacementConfirmed
}

// -----------------------------------------------------------------------------
// Exchange history (append-only, authoritative)
// -----------------------------------------------------------------------------

// Fill is an exchange-reported execution event.
type Fill struct {
	TradeID         uuid.UUID
	ExchangeOrderID string
	Ticker          string
	Side            Side
	Action          Action
	Count           int
	PriceCents      int // Price for the filled side, cents
	CreatedAt       time.Time
}

// CostCents returns count * price for this fill.
func (f Fill) CostCents() int64 {
	return int64(f.Count) * int64(f.PriceCents)
}

// Settlement is an exchange-reported market resolution.
type Settlement struct {
	Ticker       string
	WinningSide  Side
	RevenueCents int64 // Gross payout, cents
	FeeCents     int64 // Settlement fee, cents
	SettledAt    time.Time
}

// -----------------------------------------------------------------------------
// Allocation
// -----------------------------------------------------------------------------

// Candidate is a market eligible for allocation, ranked by the catalog.
type Candidate struct {
	Market     Market
	Side       Side // Favorite side to buy
	PriceCents int  // Ask for that side
}

// Allocation is the allocator's decision for one market.
type Allocation struct {
	Candidate Candidate
	Units     int
	CostCents int64
}

// -----------------------------------------------------------------------------
// Probability audit
// -----------------------------------------------------------------------------

// ProbabilitySample is one observed quoted probability for a ticker.
type ProbabilitySample struct {
	Ticker           string
	ProbabilityCents int
	ObservedAt       time.Time
}

// AuditRow records a detected probability drop for later review.
type AuditRow struct {
	Ticker           string
	ProbabilityCents int
	ObservedAt       time.Time
	DropPct          float64 // Percent drop vs the sample >= 10 minutes older
	Suspect          bool    // Data-quality flag (degenerate quote)
}

// DropPercent computes the percent drop from prev to cur probabilities,
// rounded to two decimals. A rise yields a negative value.
func DropPercent(prev, cur int) float64 {
	if prev <= 0 {
		return 0
	}
	pct := float64(prev-cur) / float64(prev) * 100
	return math.Round(pct*100) / 100
}

// Package reconcile rebuilds ground-truth position cost and outcome from the
// exchange's append-only fill and settlement history.
//
// Fills and settlements are authoritative; local order rows are a cache of
// them. The engine recovers orders missing from local storage and corrects
// rows whose units or cost have drifted beyond tolerance. It never deletes,
// never infers an outcome without a settlement record, and running it twice
// over the same history produces no further changes.
package reconcile

import (
	"log/slog"
	"math"
	"sort"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// Config holds reconciliation tolerances.
type Config struct {
	TolerancePct   float64 // Relative drift that triggers a correction
	ToleranceCents int64   // Absolute drift that triggers a correction
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TolerancePct:   0.01,
		ToleranceCents: 5,
	}
}

// Correction records an overwrite of a drifted order, before and after.
type Correction struct {
	Before model.Order
	After  model.Order
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Recovered []model.Order
	Corrected []Correction
}

// Changed reports whether the pass produced any writes.
func (r Result) Changed() bool {
	return len(r.Recovered) > 0 || len(r.Corrected) > 0
}

// Engine recomputes authoritative cost, units, and outcome per market.
type Engine struct {
	cfg    Config
	basis  CostBasis
	logger *slog.Logger
}

// New creates an engine with the given cost-basis policy.
func New(cfg Config, basis CostBasis, logger *slog.Logger) *Engine {
	if basis == nil {
		basis = AverageCost{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, basis: basis, logger: logger}
}

// position is the per-ticker aggregate rebuilt from fills.
type position struct {
	ticker       string
	side         model.Side
	totalBought  int
	totalBuyCost int64
	totalSold    int
	buys         []model.Fill
}

func (p *position) netUnits() int { return p.totalBought - p.totalSold }

// Reconcile compares the exchange history against existing local orders and
// returns the orders to create and the corrections to apply. A single
// logical position is grouped by ticker, not by exchange order id: one
// position is typically built from many partial fills.
func (e *Engine) Reconcile(fills []model.Fill, settlements []model.Settlement, existing []model.Order) Result {
	positions := e.groupFills(fills)

	settlementByTicker := make(map[string]model.Settlement, len(settlements))
	for _, s := range settlements {
		settlementByTicker[s.Ticker] = s
	}

	existingByTicker := make(map[string]model.Order, len(existing))
	for _, o := range existing {
		existingByTicker[o.Ticker] = o
	}

	var result Result

	// Deterministic order for logs and tests.
	tickers := make([]string, 0, len(positions))
	for t := range positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		pos := positions[ticker]
		if pos.totalBought == 0 {
			// Sell-only history cannot identify the held side; nothing to
			// rebuild.
			continue
		}

		units := pos.netUnits()
		cost := e.basis.RemainingCostCents(pos.buys, pos.totalSold)
		avgPrice := int(math.Round(float64(pos.totalBuyCost) / float64(pos.totalBought)))

		settlement, settled := settlementByTicker[ticker]

		local, exists := existingByTicker[ticker]
		if !exists {
			if units <= 0 {
				continue
			}
			result.Recovered = append(result.Recovered, e.synthesize(pos, units, cost, avgPrice, settlement, settled))
			continue
		}

		if corrected, ok := e.correct(local, units, cost, settlement, settled); ok {
			result.Corrected = append(result.Corrected, Correction{Before: local, After: corrected})
		}
	}

	return result
}

// groupFills aggregates fills by ticker, buys kept in time order.
func (e *Engine) groupFills(fills []model.Fill) map[string]*position {
	sorted := make([]model.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	positions := make(map[string]*position)
	for _, f := range sorted {
		pos, ok := positions[f.Ticker]
		if !ok {
			pos = &position{ticker: f.Ticker}
			positions[f.Ticker] = pos
		}
		switch f.Action {
		case model.ActionBuy:
			if pos.totalBought == 0 {
				pos.side = f.Side
			}
			pos.totalBought += f.Count
			pos.totalBuyCost += f.CostCents()
			pos.buys = append(pos.buys, f)
		case model.ActionSell:
			pos.totalSold += f.Count
		}
	}
	return positions
}

// synthesize builds a recovered order from the rebuilt position.
func (e *Engine) synthesize(pos *position, units int, cost int64, avgPrice int, settlement model.Settlement, settled bool) model.Order {
	o := model.Order{
		Ticker:             pos.ticker,
		Side:               pos.side,
		PriceCents:         avgPrice,
		Units:              units,
		CostCents:          cost,
		PayoutCents:        int64(units) * model.FaceValueCents,
		Placement:          model.PlacementConfirmed,
		Outcome:            model.OutcomeUndecided,
		ExecutedPriceCents: avgPrice,
		ExecutedCostCents:  cost,
	}
	e.applySettlement(&o, settlement, settled)

	e.logger.Info("recovered order from fills",
		"ticker", pos.ticker,
		"side", pos.side,
		"units", units,
		"cost_cents", cost,
		"outcome", o.Outcome,
		"cost_basis", e.basis.Name(),
	)
	return o
}

// correct returns an overwritten copy of local when it drifted beyond
// tolerance, or when a settlement has arrived that local has not absorbed.
func (e *Engine) correct(local model.Order, units int, cost int64, settlement model.Settlement, settled bool) (model.Order, bool) {
	drifted := local.Units != units || e.exceedsTolerance(local.CostCents, cost)
	needsOutcome := settled && !local.Settled

	if !drifted && !needsOutcome {
		return local, false
	}

	after := local
	if drifted {
		after.Units = units
		after.CostCents = cost
		after.PayoutCents = int64(units) * model.FaceValueCents
	}
	e.applySettlement(&after, settlement, settled)

	e.logger.Warn("correcting drifted order",
		"ticker", local.Ticker,
		"units_before", local.Units,
		"units_after", after.Units,
		"cost_before", local.CostCents,
		"cost_after", after.CostCents,
		"outcome", after.Outcome,
	)
	return after, true
}

// applySettlement sets the outcome from a settlement record. Absence of a
// settlement leaves the outcome undecided.
func (e *Engine) applySettlement(o *model.Order, s model.Settlement, settled bool) {
	if !settled {
		return
	}
	if o.Side == s.WinningSide {
		o.Outcome = model.OutcomeWon
	} else {
		o.Outcome = model.OutcomeLost
	}
	o.Settled = true
	o.SettlementCents = s.RevenueCents
	o.FeeCents = s.FeeCents
}

// exceedsTolerance reports whether got drifted from want beyond the
// configured relative or absolute threshold.
func (e *Engine) exceedsTolerance(got, want int64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > e.cfg.ToleranceCents {
		return true
	}
	if want == 0 {
		return diff > 0
	}
	return float64(diff)/float64(want) > e.cfg.TolerancePct
}

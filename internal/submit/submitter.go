// Package submit drives allocated orders through submission against the
// exchange.
//
// Orders move pending -> submitted -> {confirmed | resting | failed}. The
// risk guard gates every buy immediately before submission; a guard reject
// keeps the order pending for a later cycle, while transport and exchange
// errors mark it failed (also retryable). Submissions run in bounded
// concurrent groups purely to cut wall-clock time against the exchange's
// rate limits; correctness never depends on the grouping because each market
// appears in at most one order per batch.
package submit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/model"
	"github.com/rickgao/kalshi-trader/internal/risk"
)

// Exchange is the order-placement surface of the api client.
type Exchange interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.APIOrder, error)
}

// Storage is the order persistence the submitter needs.
type Storage interface {
	PendingOrders(ctx context.Context, batchID int64) ([]model.Order, error)
	UpdateOrderSubmission(ctx context.Context, o model.Order) error
	RecomputeBatchAggregates(ctx context.Context, batchID int64) error
	MarkBatchExecuted(ctx context.Context, batchID int64, at time.Time) error
}

// Config holds submission cycle settings.
type Config struct {
	GroupSize  int           // Concurrent submissions per group
	GroupDelay time.Duration // Delay between groups
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		GroupSize:  10,
		GroupDelay: 2 * time.Second,
	}
}

// OrderResult is the per-order outcome of a cycle.
type OrderResult struct {
	Ticker    string          `json:"ticker"`
	Placement model.Placement `json:"placement"`
	Reason    string          `json:"reason,omitempty"`
}

// CycleResult summarizes one submission cycle. Partial failure is the normal
// case: one bad order never aborts the rest.
type CycleResult struct {
	BatchID   int64         `json:"batch_id"`
	Confirmed int           `json:"confirmed"`
	Resting   int           `json:"resting"`
	Failed    int           `json:"failed"`
	Rejected  int           `json:"rejected"` // Guard rejects, left pending
	Orders    []OrderResult `json:"orders"`
}

// Submitter executes a batch's pending orders.
type Submitter struct {
	cfg       Config
	exchange  Exchange
	store     Storage
	guard     *risk.Guard
	portfolio risk.PortfolioValueProvider
	logger    *slog.Logger
}

// New creates a submitter.
func New(cfg Config, exchange Exchange, store Storage, guard *risk.Guard, portfolio risk.PortfolioValueProvider, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		cfg:       cfg,
		exchange:  exchange,
		store:     store,
		guard:     guard,
		portfolio: portfolio,
		logger:    logger,
	}
}

// ExecuteBatch submits all pending orders of a batch in bounded concurrent
// groups. Cancelling ctx aborts between groups; already-submitted orders
// keep their exchange-confirmed state and the rest stay pending. Batch
// aggregates are recomputed from order rows afterwards.
func (s *Submitter) ExecuteBatch(ctx context.Context, batchID int64) (*CycleResult, error) {
	pending, err := s.store.PendingOrders(ctx, batchID)
	if err != nil {
		return nil, err
	}

	// The guard needs the freshest exchange-reported portfolio value; a
	// locally summed figure would compound estimation error into a safety
	// check.
	portfolioValue, err := s.portfolio.PortfolioValueCents(ctx)
	if err != nil {
		return nil, err
	}

	result := &CycleResult{BatchID: batchID}
	results := make([]OrderResult, len(pending))

	for start := 0; start < len(pending); start += s.cfg.GroupSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return s.finish(ctx, batchID, result, results[:start])
			case <-time.After(s.cfg.GroupDelay):
			}
		}

		end := min(start+s.cfg.GroupSize, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = s.submitOne(gctx, pending[i], portfolioValue)
				return nil
			})
		}
		g.Wait()
	}

	return s.finish(ctx, batchID, result, results)
}

// finish tallies results and recomputes batch aggregates. The bookkeeping
// writes outlive a cancelled cycle so exchange-confirmed state is never lost.
func (s *Submitter) finish(ctx context.Context, batchID int64, result *CycleResult, results []OrderResult) (*CycleResult, error) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range results {
		if r.Ticker == "" {
			continue
		}
		result.Orders = append(result.Orders, r)
		switch r.Placement {
		case model.PlacementConfirmed:
			result.Confirmed++
		case model.PlacementResting:
			result.Resting++
		case model.PlacementFailed:
			result.Failed++
		case model.PlacementPending:
			result.Rejected++
		}
	}

	if err := s.store.RecomputeBatchAggregates(ctx, batchID); err != nil {
		return result, err
	}
	if err := s.store.MarkBatchExecuted(ctx, batchID, time.Now().UTC()); err != nil {
		return result, err
	}

	s.logger.Info("submission cycle finished",
		"batch_id", batchID,
		"confirmed", result.Confirmed,
		"resting", result.Resting,
		"failed", result.Failed,
		"rejected", result.Rejected,
	)
	return result, nil
}

// submitOne drives a single order through the state machine.
func (s *Submitter) submitOne(ctx context.Context, o model.Order, portfolioValue int64) OrderResult {
	decision := s.guard.Check(model.ActionBuy, o.PriceCents, o.Units, portfolioValue)
	if !decision.Allowed {
		// A reject reflects a point-in-time mismatch, not an exchange
		// error; the order stays pending for a later cycle.
		s.logger.Warn("risk guard rejected order",
			"ticker", o.Ticker,
			"reason", decision.Reason,
			"observed", decision.Observed,
			"threshold", decision.Threshold,
		)
		return OrderResult{Ticker: o.Ticker, Placement: model.PlacementPending, Reason: decision.Reason}
	}

	req := api.CreateOrderRequest{
		Ticker:        o.Ticker,
		Action:        string(model.ActionBuy),
		Side:          string(o.Side),
		Count:         o.Units,
		Type:          "limit",
		ClientOrderID: o.ClientOrderID.String(),
	}
	if o.Side == model.SideYes {
		req.YesPriceCents = o.PriceCents
	} else {
		req.NoPriceCents = o.PriceCents
	}

	placed, err := s.exchange.CreateOrder(ctx, req)
	if err != nil {
		return s.record(ctx, o, func(o *model.Order) {
			o.Placement = model.PlacementFailed
		}, err.Error())
	}

	switch placed.Status {
	case "executed":
		return s.record(ctx, o, func(o *model.Order) {
			o.Placement = model.PlacementConfirmed
			o.ExchangeOrderID = placed.OrderID
			o.ExecutedPriceCents = executedPrice(o.Side, placed)
			o.ExecutedCostCents = executedCost(o, placed)
			o.CostCents = o.ExecutedCostCents
		}, "")
	case "resting", "pending":
		// Accepted but unmatched: placed, not confirmed. Excluded from
		// outcome accounting until fills arrive.
		return s.record(ctx, o, func(o *model.Order) {
			o.Placement = model.PlacementResting
			o.ExchangeOrderID = placed.OrderID
		}, "")
	default:
		return s.record(ctx, o, func(o *model.Order) {
			o.Placement = model.PlacementFailed
			o.ExchangeOrderID = placed.OrderID
		}, "exchange status "+placed.Status)
	}
}

// record applies a transition and persists it.
func (s *Submitter) record(ctx context.Context, o model.Order, mutate func(*model.Order), reason string) OrderResult {
	next := o
	mutate(&next)

	if !o.Placement.CanTransition(model.PlacementSubmitted) && o.Placement != model.PlacementSubmitted {
		// Defect in the caller's selection query; refuse to advance.
		s.logger.Error("illegal placement transition",
			"ticker", o.Ticker, "from", o.Placement, "to", next.Placement)
		return OrderResult{Ticker: o.Ticker, Placement: o.Placement, Reason: "illegal transition"}
	}

	if err := s.store.UpdateOrderSubmission(ctx, next); err != nil {
		// The exchange call may have succeeded; reconciliation will heal
		// the divergence from the fill history.
		s.logger.Error("failed to persist order state",
			"ticker", o.Ticker, "placement", next.Placement, "error", err)
		if reason == "" {
			reason = "persist: " + err.Error()
		}
	}

	if reason != "" {
		s.logger.Warn("order submission failed",
			"ticker", o.Ticker, "placement", next.Placement, "reason", reason)
	} else {
		s.logger.Info("order submitted",
			"ticker", o.Ticker,
			"placement", next.Placement,
			"exchange_order_id", next.ExchangeOrderID,
		)
	}

	return OrderResult{Ticker: o.Ticker, Placement: next.Placement, Reason: reason}
}

// executedPrice reads the filled price for the order's side from the
// exchange's report.
func executedPrice(side model.Side, placed *api.APIOrder) int {
	if side == model.SideYes {
		return placed.YesPrice
	}
	return placed.NoPrice
}

// executedCost prefers the exchange-reported fill cost; it falls back to
// count * reported price only when the exchange omits the cost.
func executedCost(o *model.Order, placed *api.APIOrder) int64 {
	if placed.TakerFillCost > 0 {
		return placed.TakerFillCost
	}
	return int64(o.Units) * int64(executedPrice(o.Side, placed))
}

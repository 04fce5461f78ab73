// Package risk implements the submission-time safety check for buy orders.
//
// The allocator's cap is a planning-time guarantee computed from a portfolio
// snapshot that may be stale by execution time. The guard re-evaluates the
// same limits immediately before each buy submission against the freshest
// portfolio value available, and is the last line of defense.
package risk

import (
	"context"
	"fmt"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// PortfolioValueProvider supplies the exchange-reported total portfolio
// value in cents. The api client satisfies this; tests supply a stub.
type PortfolioValueProvider interface {
	PortfolioValueCents(ctx context.Context) (int64, error)
}

// PortfolioValueFunc adapts a function to PortfolioValueProvider.
type PortfolioValueFunc func(ctx context.Context) (int64, error)

func (f PortfolioValueFunc) PortfolioValueCents(ctx context.Context) (int64, error) {
	return f(ctx)
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed   bool
	Reason    string
	Observed  int64 // The value that tripped the rule
	Threshold int64 // The configured or computed limit
}

// Allow is the decision for a permitted submission.
var Allow = Decision{Allowed: true}

// Guard evaluates the configured safety rules. It is stateless and
// side-effect-free; a rejection never partially executes.
type Guard struct {
	minPriceCents int
	capPct        float64
}

// New creates a guard with the given minimum buy price and per-market cap
// fraction.
func New(minPriceCents int, capPct float64) *Guard {
	return &Guard{minPriceCents: minPriceCents, capPct: capPct}
}

// Check evaluates a proposed order. Sells are always allowed; they reduce
// exposure. For buys:
//
//  1. Minimum price: the strategy only takes favorite-side positions above a
//     configured confidence threshold.
//  2. Hard exposure cap: price*count must not exceed
//     floor(portfolioValue * capPct).
func (g *Guard) Check(action model.Action, priceCents, count int, portfolioValueCents int64) Decision {
	if action == model.ActionSell {
		return Allow
	}

	if priceCents < g.minPriceCents {
		return Decision{
			Reason:    fmt.Sprintf("price %d¢ below minimum %d¢", priceCents, g.minPriceCents),
			Observed:  int64(priceCents),
			Threshold: int64(g.minPriceCents),
		}
	}

	capCents := int64(float64(portfolioValueCents) * g.capPct)
	cost := int64(priceCents) * int64(count)
	if cost > capCents {
		return Decision{
			Reason:    fmt.Sprintf("cost %d¢ exceeds %.2f%% cap of %d¢", cost, g.capPct*100, capCents),
			Observed:  cost,
			Threshold: capCents,
		}
	}

	return Allow
}

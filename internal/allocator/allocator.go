// Package allocator distributes account capital across candidate markets
// under a hard per-market exposure cap.
package allocator

import (
	"errors"
	"fmt"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// ErrInvalidPrice is returned when a candidate carries a non-positive price.
var ErrInvalidPrice = errors.New("candidate price must be positive")

// Allocator computes integer unit allocations for a ranked candidate list.
type Allocator struct {
	capPct float64
}

// New creates an allocator with the given per-market cap fraction of
// portfolio value.
func New(capPct float64) *Allocator {
	return &Allocator{capPct: capPct}
}

// Allocate distributes balanceCents across candidates in ranked order.
//
// Each candidate's unit cap is floor(portfolioValue * capPct / price). Units
// are handed out one at a time in repeated passes over the ranking, so
// capital spreads across markets instead of front-loading the top candidate.
// A pass that allocates nothing terminates the loop; the pass count is also
// bounded by ceil(balance / minPrice) so degenerate inputs cannot spin.
//
// An empty result when nothing is affordable is a valid, non-error outcome.
// The result never contains a zero-unit allocation, and is deterministic for
// identical inputs.
func (a *Allocator) Allocate(balanceCents, portfolioValueCents int64, candidates []model.Candidate) ([]model.Allocation, error) {
	if balanceCents < 0 {
		return nil, fmt.Errorf("balance must be non-negative, got %d", balanceCents)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	minPrice := 0
	for _, c := range candidates {
		if c.PriceCents <= 0 {
			return nil, fmt.Errorf("%w: %s has price %d", ErrInvalidPrice, c.Market.Ticker, c.PriceCents)
		}
		if minPrice == 0 || c.PriceCents < minPrice {
			minPrice = c.PriceCents
		}
	}

	capCents := int64(float64(portfolioValueCents) * a.capPct)
	capUnits := make([]int, len(candidates))
	for i, c := range candidates {
		capUnits[i] = int(capCents / int64(c.PriceCents))
	}

	units := make([]int, len(candidates))
	remaining := balanceCents

	// ceil(balance / minPrice) single-unit grants is the most any run can
	// make, so that many passes always suffice.
	maxPasses := int((balanceCents + int64(minPrice) - 1) / int64(minPrice))

	for pass := 0; pass < maxPasses; pass++ {
		granted := 0
		for i, c := range candidates {
			if units[i] >= capUnits[i] {
				continue
			}
			if int64(c.PriceCents) > remaining {
				continue
			}
			units[i]++
			remaining -= int64(c.PriceCents)
			granted++
		}
		if granted == 0 {
			break
		}
	}

	var out []model.Allocation
	for i, c := range candidates {
		if units[i] == 0 {
			continue
		}
		out = append(out, model.Allocation{
			Candidate: c,
			Units:     units[i],
			CostCents: int64(units[i]) * int64(c.PriceCents),
		})
	}
	return out, nil
}

package reconcile

import (
	"math"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// CostBasis computes the remaining cost of a position after partial sells.
// The method is an explicit, swappable policy: most positions are held to
// settlement without sells, but when sells happen the choice of basis
// changes reported P&L.
type CostBasis interface {
	// Name identifies the policy in logs and audit records.
	Name() string

	// RemainingCostCents returns the cost attributed to the net position
	// after soldUnits have been sold out of the given buy fills. Buys are
	// ordered oldest first.
	RemainingCostCents(buys []model.Fill, soldUnits int) int64
}

// ForName returns the policy for a configured name. Unknown names fall back
// to average cost.
func ForName(name string) CostBasis {
	if name == "fifo" {
		return FIFOCost{}
	}
	return AverageCost{}
}

// AverageCost attributes the volume-weighted average buy price to every
// remaining unit: round(netUnits * avgBuyPrice).
type AverageCost struct{}

func (AverageCost) Name() string { return "average" }

func (AverageCost) RemainingCostCents(buys []model.Fill, soldUnits int) int64 {
	var bought int
	var buyCost int64
	for _, f := range buys {
		bought += f.Count
		buyCost += f.CostCents()
	}
	if bought == 0 {
		return 0
	}

	net := bought - soldUnits
	if net <= 0 {
		return 0
	}
	if soldUnits == 0 {
		return buyCost
	}

	avg := float64(buyCost) / float64(bought)
	return int64(math.Round(float64(net) * avg))
}

// FIFOCost treats sells as consuming the oldest buys first; remaining cost
// is the cost of the unconsumed tail.
type FIFOCost struct{}

func (FIFOCost) Name() string { return "fifo" }

func (FIFOCost) RemainingCostCents(buys []model.Fill, soldUnits int) int64 {
	remaining := soldUnits
	var cost int64
	for _, f := range buys {
		if remaining >= f.Count {
			remaining -= f.Count
			continue
		}
		kept := f.Count - remaining
		remaining = 0
		cost += int64(kept) * int64(f.PriceCents)
	}
	return cost
}

package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/kalshi-trader/internal/model"
)

var t0 = time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

func buy(ticker string, count, price int, at time.Time) model.Fill {
	return model.Fill{Ticker: ticker, Side: model.SideYes, Action: model.ActionBuy, Count: count, PriceCents: price, CreatedAt: at}
}

func sell(ticker string, count, price int, at time.Time) model.Fill {
	return model.Fill{Ticker: ticker, Side: model.SideYes, Action: model.ActionSell, Count: count, PriceCents: price, CreatedAt: at}
}

func newEngine() *Engine {
	return New(DefaultConfig(), AverageCost{}, nil)
}

func TestReconcile_RecoversOrderFromFills(t *testing.T) {
	fills := []model.Fill{
		buy("T", 10, 92, t0),
		buy("T", 5, 90, t0.Add(time.Minute)),
	}

	result := newEngine().Reconcile(fills, nil, nil)

	require.Len(t, result.Recovered, 1)
	o := result.Recovered[0]
	assert.Equal(t, "T", o.Ticker)
	assert.Equal(t, 15, o.Units)
	assert.Equal(t, int64(1370), o.CostCents) // 10*92 + 5*90
	assert.Equal(t, model.OutcomeUndecided, o.Outcome)
	assert.Equal(t, model.PlacementConfirmed, o.Placement)
	assert.Equal(t, int64(1500), o.PayoutCents)
}

func TestReconcile_PartialSellAverageCost(t *testing.T) {
	fills := []model.Fill{
		buy("T", 10, 90, t0),
		sell("T", 4, 90, t0.Add(time.Hour)),
	}

	result := newEngine().Reconcile(fills, nil, nil)

	require.Len(t, result.Recovered, 1)
	o := result.Recovered[0]
	assert.Equal(t, 6, o.Units)
	assert.Equal(t, int64(540), o.CostCents) // round(6 * avg 90)
}

func TestReconcile_SettlementDecidesOutcome(t *testing.T) {
	fills := []model.Fill{buy("T", 10, 92, t0)}
	settlements := []model.Settlement{{
		Ticker:       "T",
		WinningSide:  model.SideYes,
		RevenueCents: 1000,
		FeeCents:     7,
	}}

	result := newEngine().Reconcile(fills, settlements, nil)

	require.Len(t, result.Recovered, 1)
	o := result.Recovered[0]
	assert.Equal(t, model.OutcomeWon, o.Outcome)
	assert.True(t, o.Settled)
	assert.Equal(t, int64(1000), o.SettlementCents)
	assert.Equal(t, int64(7), o.FeeCents)
}

func TestReconcile_LosingSide(t *testing.T) {
	fills := []model.Fill{buy("T", 10, 92, t0)}
	settlements := []model.Settlement{{Ticker: "T", WinningSide: model.SideNo}}

	result := newEngine().Reconcile(fills, settlements, nil)

	require.Len(t, result.Recovered, 1)
	assert.Equal(t, model.OutcomeLost, result.Recovered[0].Outcome)
}

func TestReconcile_NoOutcomeWithoutSettlement(t *testing.T) {
	fills := []model.Fill{buy("T", 10, 92, t0)}

	result := newEngine().Reconcile(fills, nil, []model.Order{})

	require.Len(t, result.Recovered, 1)
	assert.Equal(t, model.OutcomeUndecided, result.Recovered[0].Outcome)
	assert.False(t, result.Recovered[0].Settled)
}

func TestReconcile_CorrectsDriftedOrder(t *testing.T) {
	fills := []model.Fill{buy("T", 10, 92, t0)}
	existing := []model.Order{{
		ID:        7,
		Ticker:    "T",
		Side:      model.SideYes,
		Units:     8,   // Drifted: fills say 10
		CostCents: 700, // Drifted: fills say 920
		Placement: model.PlacementConfirmed,
		Outcome:   model.OutcomeUndecided,
	}}

	result := newEngine().Reconcile(fills, nil, existing)

	assert.Empty(t, result.Recovered)
	require.Len(t, result.Corrected, 1)
	c := result.Corrected[0]
	assert.Equal(t, 8, c.Before.Units)
	assert.Equal(t, 10, c.After.Units)
	assert.Equal(t, int64(920), c.After.CostCents)
	assert.Equal(t, int64(7), c.After.ID, "correction keeps the row identity")
}

func TestReconcile_WithinToleranceUntouched(t *testing.T) {
	fills := []model.Fill{buy("T", 10, 92, t0)}
	existing := []model.Order{{
		Ticker:    "T",
		Side:      model.SideYes,
		Units:     10,
		CostCents: 918, // 2 cents off: inside tolerance
		Outcome:   model.OutcomeUndecided,
	}}

	result := newEngine().Reconcile(fills, nil, existing)
	assert.False(t, result.Changed())
}

func TestReconcile_Idempotent(t *testing.T) {
	fills := []model.Fill{
		buy("A", 10, 92, t0),
		buy("A", 5, 90, t0.Add(time.Minute)),
		buy("B", 3, 95, t0),
		sell("B", 1, 96, t0.Add(time.Hour)),
	}
	settlements := []model.Settlement{{Ticker: "A", WinningSide: model.SideYes, RevenueCents: 1500}}

	e := newEngine()
	first := e.Reconcile(fills, settlements, nil)
	require.Len(t, first.Recovered, 2)

	// Feed the first pass's output back in: no further changes.
	second := e.Reconcile(fills, settlements, first.Recovered)
	assert.False(t, second.Changed(), "second run must be a no-op")
}

func TestReconcile_SettlementArrivedForExistingOrder(t *testing.T) {
	fills := []model.Fill{buy("T", 10, 92, t0)}
	existing := []model.Order{{
		Ticker:    "T",
		Side:      model.SideYes,
		Units:     10,
		CostCents: 920,
		Outcome:   model.OutcomeUndecided,
	}}
	settlements := []model.Settlement{{Ticker: "T", WinningSide: model.SideYes, RevenueCents: 1000, FeeCents: 7}}

	result := newEngine().Reconcile(fills, settlements, existing)

	require.Len(t, result.Corrected, 1)
	after := result.Corrected[0].After
	assert.Equal(t, model.OutcomeWon, after.Outcome)
	assert.True(t, after.Settled)

	// And it is idempotent once absorbed.
	again := newEngine().Reconcile(fills, settlements, []model.Order{after})
	assert.False(t, again.Changed())
}

func TestReconcile_FullyExitedPositionNotRecovered(t *testing.T) {
	fills := []model.Fill{
		buy("T", 10, 90, t0),
		sell("T", 10, 95, t0.Add(time.Hour)),
	}

	result := newEngine().Reconcile(fills, nil, nil)
	assert.Empty(t, result.Recovered)
}

func TestReconcile_SellOnlyHistoryIgnored(t *testing.T) {
	fills := []model.Fill{sell("T", 5, 90, t0)}

	result := newEngine().Reconcile(fills, nil, nil)
	assert.False(t, result.Changed())
}

func TestCostBasis_AverageVsFIFO(t *testing.T) {
	buys := []model.Fill{
		buy("T", 10, 80, t0),
		buy("T", 10, 100, t0.Add(time.Minute)),
	}

	// Sell 10: average keeps round(10 * 90) = 900, FIFO keeps the 100s = 1000.
	assert.Equal(t, int64(900), AverageCost{}.RemainingCostCents(buys, 10))
	assert.Equal(t, int64(1000), FIFOCost{}.RemainingCostCents(buys, 10))

	// No sells: both keep the full buy cost.
	assert.Equal(t, int64(1800), AverageCost{}.RemainingCostCents(buys, 0))
	assert.Equal(t, int64(1800), FIFOCost{}.RemainingCostCents(buys, 0))
}

func TestCostBasis_FIFOPartialLot(t *testing.T) {
	buys := []model.Fill{
		buy("T", 10, 80, t0),
		buy("T", 5, 100, t0.Add(time.Minute)),
	}

	// Sell 7 consumes 7 of the first lot: 3*80 + 5*100 = 740.
	assert.Equal(t, int64(740), FIFOCost{}.RemainingCostCents(buys, 7))
}

func TestForName(t *testing.T) {
	assert.Equal(t, "fifo", ForName("fifo").Name())
	assert.Equal(t, "average", ForName("average").Name())
	assert.Equal(t, "average", ForName("unknown").Name())
}

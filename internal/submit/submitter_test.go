package submit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/model"
	"github.com/rickgao/kalshi-trader/internal/risk"
)

type fakeExchange struct {
	mu      sync.Mutex
	calls   []api.CreateOrderRequest
	respond func(req api.CreateOrderRequest) (*api.APIOrder, error)
}

func (f *fakeExchange) CreateOrder(_ context.Context, req api.CreateOrderRequest) (*api.APIOrder, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.respond(req)
}

type fakeStore struct {
	mu       sync.Mutex
	pending  []model.Order
	updated  []model.Order
	recomp   int64
	executed int64
}

func (f *fakeStore) PendingOrders(context.Context, int64) ([]model.Order, error) {
	return f.pending, nil
}

func (f *fakeStore) UpdateOrderSubmission(_ context.Context, o model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, o)
	return nil
}

func (f *fakeStore) RecomputeBatchAggregates(_ context.Context, batchID int64) error {
	f.recomp = batchID
	return nil
}

func (f *fakeStore) MarkBatchExecuted(_ context.Context, batchID int64, _ time.Time) error {
	f.executed = batchID
	return nil
}

func (f *fakeStore) stateOf(ticker string) (model.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updated) - 1; i >= 0; i-- {
		if f.updated[i].Ticker == ticker {
			return f.updated[i], true
		}
	}
	return model.Order{}, false
}

func pendingOrder(ticker string, price, units int) model.Order {
	return model.Order{
		ID:            1,
		BatchID:       7,
		Ticker:        ticker,
		Side:          model.SideYes,
		PriceCents:    price,
		Units:         units,
		CostCents:     int64(price) * int64(units),
		Placement:     model.PlacementPending,
		ClientOrderID: uuid.New(),
	}
}

func newSubmitter(ex *fakeExchange, st *fakeStore, portfolioValue int64) *Submitter {
	guard := risk.New(90, 1.0) // Cap effectively off unless a test lowers it
	provider := risk.PortfolioValueFunc(func(context.Context) (int64, error) {
		return portfolioValue, nil
	})
	cfg := Config{GroupSize: 2, GroupDelay: time.Millisecond}
	return New(cfg, ex, st, guard, provider, slog.New(slog.DiscardHandler))
}

func TestExecuteBatch_ExecutedOrderConfirmedWithExchangeCost(t *testing.T) {
	ex := &fakeExchange{
		respond: func(req api.CreateOrderRequest) (*api.APIOrder, error) {
			return &api.APIOrder{
				OrderID:       "ord-1",
				Status:        "executed",
				YesPrice:      93,
				TakerFillCnt:  req.Count,
				TakerFillCost: int64(req.Count) * 93,
			}, nil
		},
	}
	st := &fakeStore{pending: []model.Order{pendingOrder("KXHIGHNY-26AUG28-B85", 92, 5)}}

	res, err := newSubmitter(ex, st, 1_000_000).ExecuteBatch(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Confirmed)
	got, ok := st.stateOf("KXHIGHNY-26AUG28-B85")
	require.True(t, ok)
	assert.Equal(t, model.PlacementConfirmed, got.Placement)
	assert.Equal(t, "ord-1", got.ExchangeOrderID)
	assert.Equal(t, 93, got.ExecutedPriceCents)
	assert.Equal(t, int64(465), got.ExecutedCostCents)
	assert.Equal(t, int64(465), got.CostCents, "stored cost reflects the fill, not the intent")
}

func TestExecuteBatch_RestingOrderNotConfirmed(t *testing.T) {
	ex := &fakeExchange{
		respond: func(api.CreateOrderRequest) (*api.APIOrder, error) {
			return &api.APIOrder{OrderID: "ord-2", Status: "resting"}, nil
		},
	}
	st := &fakeStore{pending: []model.Order{pendingOrder("INXD-26AUG28-T6400", 95, 3)}}

	res, err := newSubmitter(ex, st, 1_000_000).ExecuteBatch(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Resting)
	assert.Equal(t, 0, res.Confirmed)
	got, _ := st.stateOf("INXD-26AUG28-T6400")
	assert.Equal(t, model.PlacementResting, got.Placement)
	assert.Zero(t, got.ExecutedCostCents)
}

func TestExecuteBatch_TransportErrorMarksFailed(t *testing.T) {
	ex := &fakeExchange{
		respond: func(api.CreateOrderRequest) (*api.APIOrder, error) {
			return nil, errors.New("connection reset")
		},
	}
	st := &fakeStore{pending: []model.Order{pendingOrder("INXD-26AUG28-T6400", 95, 3)}}

	res, err := newSubmitter(ex, st, 1_000_000).ExecuteBatch(context.Background(), 7)
	require.NoError(t, err, "a failed order is a result, not a cycle error")

	assert.Equal(t, 1, res.Failed)
	got, _ := st.stateOf("INXD-26AUG28-T6400")
	assert.Equal(t, model.PlacementFailed, got.Placement)
}

func TestExecuteBatch_GuardRejectLeavesPending(t *testing.T) {
	ex := &fakeExchange{
		respond: func(api.CreateOrderRequest) (*api.APIOrder, error) {
			t.Fatal("rejected order must never reach the exchange")
			return nil, nil
		},
	}
	// Price below the guard's 90-cent floor.
	st := &fakeStore{pending: []model.Order{pendingOrder("KXBTCD-26AUG28-B110000", 89, 4)}}

	res, err := newSubmitter(ex, st, 1_000_000).ExecuteBatch(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rejected)
	assert.Empty(t, ex.calls)
	_, persisted := st.stateOf("KXBTCD-26AUG28-B110000")
	assert.False(t, persisted, "pending order needs no state write")
}

func TestExecuteBatch_GroupsBoundConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	ex := &fakeExchange{
		respond: func(req api.CreateOrderRequest) (*api.APIOrder, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return &api.APIOrder{OrderID: req.Ticker, Status: "executed", YesPrice: 92}, nil
		},
	}
	st := &fakeStore{}
	for _, ticker := range []string{"A", "B", "C", "D", "E"} {
		st.pending = append(st.pending, pendingOrder(ticker, 92, 1))
	}

	res, err := newSubmitter(ex, st, 1_000_000).ExecuteBatch(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Confirmed)
	assert.LessOrEqual(t, peak, 2, "group size caps in-flight submissions")
	assert.Equal(t, int64(7), st.recomp, "aggregates recomputed after the cycle")
	assert.Equal(t, int64(7), st.executed)
}

func TestExecuteBatch_CancelAbortsBetweenGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ex := &fakeExchange{
		respond: func(req api.CreateOrderRequest) (*api.APIOrder, error) {
			return &api.APIOrder{OrderID: req.Ticker, Status: "executed", YesPrice: 92}, nil
		},
	}
	st := &fakeStore{}
	for _, ticker := range []string{"A", "B", "C", "D"} {
		st.pending = append(st.pending, pendingOrder(ticker, 92, 1))
	}

	sub := newSubmitter(ex, st, 1_000_000)
	sub.cfg.GroupDelay = time.Hour // Cancel fires during the inter-group wait
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := sub.ExecuteBatch(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Confirmed, "only the first group ran")
	assert.Len(t, ex.calls, 2)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-trader/internal/allocator"
	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/config"
	"github.com/rickgao/kalshi-trader/internal/model"
	"github.com/rickgao/kalshi-trader/internal/reconcile"
	"github.com/rickgao/kalshi-trader/internal/store"
	"github.com/rickgao/kalshi-trader/internal/submit"
)

// ErrBatchPaused rejects execution of a paused batch.
var ErrBatchPaused = errors.New("batch is paused")

// Exchange is the account surface the pipeline reads.
type Exchange interface {
	GetBalance(ctx context.Context) (*api.BalanceResponse, error)
	GetAllFills(ctx context.Context) ([]api.APIFill, error)
	GetAllSettlements(ctx context.Context) ([]api.APISettlement, error)
}

// Storage is the persistence surface the pipeline drives.
type Storage interface {
	CreateBatch(ctx context.Context, b *model.Batch) error
	GetBatchByDate(ctx context.Context, date time.Time) (*model.Batch, error)
	InsertOrders(ctx context.Context, batchID int64, orders []model.Order) error
	RecomputeBatchAggregates(ctx context.Context, batchID int64) error
	SetBatchPaused(ctx context.Context, batchID int64, paused bool) error
	AllOrders(ctx context.Context) ([]model.Order, error)
	InsertRecoveredOrder(ctx context.Context, o model.Order) error
	ApplyCorrection(ctx context.Context, c reconcile.Correction) error
}

// BatchExecutor runs a batch's submission cycle.
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, batchID int64) (*submit.CycleResult, error)
}

// Candidates lists ranked markets for the configured series.
type Candidates interface {
	OpenMarkets(ctx context.Context, seriesTickers []string, horizon time.Duration, pageSize int) ([]model.Candidate, error)
}

// PrepareResult reports the outcome of a prepare cycle.
type PrepareResult struct {
	BatchDate      string `json:"batch_date"`
	BatchID        int64  `json:"batch_id,omitempty"`
	Candidates     int    `json:"candidates"`
	Orders         int    `json:"orders"`
	TotalCostCents int64  `json:"total_cost_cents"`
	NoOp           bool   `json:"no_op,omitempty"` // Nothing affordable today
}

// ReconcileResult reports the writes of a reconciliation pass.
type ReconcileResult struct {
	Recovered int `json:"recovered"`
	Corrected int `json:"corrected"`
}

// Pipeline wires catalog, allocator, submitter, and reconciler to storage.
// It owns the prepare / execute / reconcile operations the control server
// exposes.
type Pipeline struct {
	trading   config.TradingConfig
	catalog   Candidates
	allocator *allocator.Allocator
	exchange  Exchange
	store     Storage
	submitter BatchExecutor
	engine    *reconcile.Engine
	logger    *slog.Logger

	now func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(
	trading config.TradingConfig,
	cat Candidates,
	alloc *allocator.Allocator,
	exchange Exchange,
	st Storage,
	submitter BatchExecutor,
	engine *reconcile.Engine,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		trading:   trading,
		catalog:   cat,
		allocator: alloc,
		exchange:  exchange,
		store:     st,
		submitter: submitter,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
	}
}

// Prepare selects candidates, allocates the available balance, and persists
// today's batch with its pending orders. An empty allocation is a normal
// no-op, not an error; a batch already existing for today is an error so a
// double-fired scheduler cannot create duplicate orders.
func (p *Pipeline) Prepare(ctx context.Context) (*PrepareResult, error) {
	date := store.BatchDate(p.now())
	result := &PrepareResult{BatchDate: date.Format("2006-01-02")}

	candidates, err := p.catalog.OpenMarkets(ctx, p.trading.SeriesTickers, p.trading.CloseHorizon, p.trading.PageSize)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	result.Candidates = len(candidates)

	balance, err := p.exchange.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	allocations, err := p.allocator.Allocate(balance.BalanceCents, balance.PortfolioValueCents, candidates)
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	if len(allocations) == 0 {
		p.logger.Info("nothing affordable, no batch prepared",
			"balance_cents", balance.BalanceCents,
			"candidates", len(candidates),
		)
		result.NoOp = true
		return result, nil
	}

	batch := &model.Batch{
		BatchDate:  date,
		UnitCents:  p.trading.UnitCents,
		PreparedAt: p.now().UTC(),
	}
	if err := p.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	orders := make([]model.Order, 0, len(allocations))
	for _, a := range allocations {
		orders = append(orders, model.Order{
			BatchID:       batch.ID,
			Ticker:        a.Candidate.Market.Ticker,
			Side:          a.Candidate.Side,
			PriceCents:    a.Candidate.PriceCents,
			Units:         a.Units,
			CostCents:     a.CostCents,
			PayoutCents:   int64(a.Units) * model.FaceValueCents,
			Placement:     model.PlacementPending,
			Outcome:       model.OutcomeUndecided,
			ClientOrderID: uuid.New(),
		})
	}
	if err := p.store.InsertOrders(ctx, batch.ID, orders); err != nil {
		return nil, fmt.Errorf("insert orders: %w", err)
	}
	if err := p.store.RecomputeBatchAggregates(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("recompute aggregates: %w", err)
	}

	result.BatchID = batch.ID
	result.Orders = len(orders)
	for _, a := range allocations {
		result.TotalCostCents += a.CostCents
	}

	p.logger.Info("batch prepared",
		"batch_id", batch.ID,
		"date", result.BatchDate,
		"orders", result.Orders,
		"total_cost_cents", result.TotalCostCents,
	)
	return result, nil
}

// Execute submits today's pending orders. A paused batch is refused.
func (p *Pipeline) Execute(ctx context.Context) (*submit.CycleResult, error) {
	date := store.BatchDate(p.now())
	batch, err := p.store.GetBatchByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load batch for %s: %w", date.Format("2006-01-02"), err)
	}
	if batch.Paused {
		return nil, ErrBatchPaused
	}
	return p.submitter.ExecuteBatch(ctx, batch.ID)
}

// SetPaused pauses or resumes today's batch. A paused batch survives prepare
// and stays visible; only execution is held back.
func (p *Pipeline) SetPaused(ctx context.Context, paused bool) error {
	date := store.BatchDate(p.now())
	batch, err := p.store.GetBatchByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("load batch for %s: %w", date.Format("2006-01-02"), err)
	}
	if err := p.store.SetBatchPaused(ctx, batch.ID, paused); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	p.logger.Info("batch pause updated", "batch_id", batch.ID, "paused", paused)
	return nil
}

// Reconcile pulls the full fill and settlement history and folds it into
// local order state: recovering orders the database never saw and correcting
// those that drifted. Safe to run at any time, any number of times.
func (p *Pipeline) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	fills, err := p.exchange.GetAllFills(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fills: %w", err)
	}
	settlements, err := p.exchange.GetAllSettlements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	existing, err := p.store.AllOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	res := p.engine.Reconcile(api.FillsToModel(fills), api.SettlementsToModel(settlements), existing)

	touched := make(map[int64]bool)
	for _, o := range res.Recovered {
		if err := p.store.InsertRecoveredOrder(ctx, o); err != nil {
			return nil, fmt.Errorf("insert recovered order %s: %w", o.Ticker, err)
		}
	}
	for _, c := range res.Corrected {
		if err := p.store.ApplyCorrection(ctx, c); err != nil {
			return nil, fmt.Errorf("apply correction %s: %w", c.After.Ticker, err)
		}
		if c.After.BatchID != 0 {
			touched[c.After.BatchID] = true
		}
	}
	for batchID := range touched {
		if err := p.store.RecomputeBatchAggregates(ctx, batchID); err != nil {
			return nil, fmt.Errorf("recompute aggregates for batch %d: %w", batchID, err)
		}
	}

	if res.Changed() {
		p.logger.Info("reconciliation applied changes",
			"recovered", len(res.Recovered),
			"corrected", len(res.Corrected),
		)
	}
	return &ReconcileResult{Recovered: len(res.Recovered), Corrected: len(res.Corrected)}, nil
}

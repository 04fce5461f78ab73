// Package drift watches quoted probabilities for sudden drops.
//
// The monitor consumes probability samples (from the websocket stream or
// periodic REST snapshots), keeps a short history per ticker, and when a
// quote has fallen by at least the configured threshold against the sample
// from one window earlier, records an audit row. Degenerate quotes at 0 or
// face value are flagged suspect rather than trusted: they usually mean a
// one-sided book, not a real repricing. Audit rows are buffered and written
// in batches on a flush interval.
package drift

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// AuditWriter persists detected drops. Implemented by the store.
type AuditWriter interface {
	InsertAuditRows(ctx context.Context, rows []model.AuditRow) error
}

// Config holds monitor settings.
type Config struct {
	Window        time.Duration // Lookback for the comparison sample
	DropThreshold float64       // Percent drop that triggers an audit row
	BatchSize     int           // Audit rows per database batch
	FlushInterval time.Duration
	BufferSize    int // Initial sample queue capacity
}

// Monitor detects probability drops across observed tickers.
type Monitor struct {
	cfg    Config
	writer AuditWriter
	logger *slog.Logger

	input *sampleBuffer

	historyMu sync.Mutex
	history   map[string][]model.ProbabilitySample

	batchMu sync.Mutex
	batch   []model.AuditRow

	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a monitor.
func New(cfg Config, writer AuditWriter, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:     cfg,
		writer:  writer,
		logger:  logger,
		input:   newSampleBuffer(cfg.BufferSize),
		history: make(map[string][]model.ProbabilitySample),
		batch:   make([]model.AuditRow, 0, cfg.BatchSize),
	}
}

// Observe enqueues a sample for processing. Safe for concurrent use; never
// blocks the caller.
func (m *Monitor) Observe(s model.ProbabilitySample) {
	m.input.push(s)
}

// Start begins the consume and flush loops.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.flushTicker = time.NewTicker(m.cfg.FlushInterval)

	m.wg.Add(1)
	go m.consumeLoop()

	m.wg.Add(1)
	go m.flushLoop()

	m.logger.Info("drift monitor started",
		"window", m.cfg.Window,
		"drop_threshold", m.cfg.DropThreshold,
		"flush_interval", m.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the sample queue, flushes pending audit rows, and shuts down.
func (m *Monitor) Stop(ctx context.Context) error {
	m.logger.Info("stopping drift monitor")

	m.input.close()
	if m.cancel != nil {
		m.cancel()
	}
	if m.flushTicker != nil {
		m.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("drift monitor stop timed out")
	}

	// Anything still queued gets evaluated and flushed before exit.
	for {
		s, ok := m.input.tryPop()
		if !ok {
			break
		}
		m.handleSample(s)
	}
	m.flush(context.Background())

	m.logger.Info("drift monitor stopped")
	return nil
}

func (m *Monitor) consumeLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			s, ok := m.input.tryPop()
			if !ok {
				select {
				case <-m.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			m.handleSample(s)
		}
	}
}

func (m *Monitor) flushLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.flushTicker.C:
			m.flush(m.ctx)
		}
	}
}

// handleSample records the sample and emits an audit row when the quote has
// dropped at least the threshold against the sample one window earlier.
func (m *Monitor) handleSample(s model.ProbabilitySample) {
	baseline, ok := m.remember(s)
	if !ok {
		return
	}

	drop := model.DropPercent(baseline.ProbabilityCents, s.ProbabilityCents)
	if drop < m.cfg.DropThreshold {
		return
	}

	row := model.AuditRow{
		Ticker:           s.Ticker,
		ProbabilityCents: s.ProbabilityCents,
		ObservedAt:       s.ObservedAt,
		DropPct:          drop,
		Suspect:          suspect(s.ProbabilityCents),
	}

	m.logger.Warn("probability drop detected",
		"ticker", s.Ticker,
		"from", baseline.ProbabilityCents,
		"to", s.ProbabilityCents,
		"drop_pct", drop,
		"suspect", row.Suspect,
	)

	m.batchMu.Lock()
	m.batch = append(m.batch, row)
	shouldFlush := len(m.batch) >= m.cfg.BatchSize
	m.batchMu.Unlock()

	if shouldFlush {
		m.flush(m.ctx)
	}
}

// remember appends the sample to the ticker's history, prunes entries older
// than twice the window, and returns the newest sample at least one window
// older than s.
func (m *Monitor) remember(s model.ProbabilitySample) (model.ProbabilitySample, bool) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()

	hist := m.history[s.Ticker]

	cutoff := s.ObservedAt.Add(-2 * m.cfg.Window)
	for len(hist) > 0 && hist[0].ObservedAt.Before(cutoff) {
		hist = hist[1:]
	}

	var baseline model.ProbabilitySample
	found := false
	for i := len(hist) - 1; i >= 0; i-- {
		if s.ObservedAt.Sub(hist[i].ObservedAt) >= m.cfg.Window {
			baseline = hist[i]
			found = true
			break
		}
	}

	m.history[s.Ticker] = append(hist, s)
	return baseline, found
}

// flush writes buffered audit rows in one database batch.
func (m *Monitor) flush(ctx context.Context) {
	m.batchMu.Lock()
	if len(m.batch) == 0 {
		m.batchMu.Unlock()
		return
	}
	batch := m.batch
	m.batch = make([]model.AuditRow, 0, m.cfg.BatchSize)
	m.batchMu.Unlock()

	start := time.Now()
	if err := m.writer.InsertAuditRows(ctx, batch); err != nil {
		m.logger.Error("audit batch insert failed", "error", err, "count", len(batch))
		return
	}

	m.logger.Debug("flushed audit rows",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// suspect reports whether a quote carries no probability information.
func suspect(probabilityCents int) bool {
	return probabilityCents <= 0 || probabilityCents >= model.FaceValueCents
}

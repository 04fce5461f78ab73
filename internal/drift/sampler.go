package drift

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/model"
)

// SampleSink receives probability samples. Implemented by Monitor.
type SampleSink interface {
	Observe(s model.ProbabilitySample)
}

// MarketLister is the market-listing surface the sampler polls.
type MarketLister interface {
	GetAllMarketsWithOptions(ctx context.Context, opts api.GetMarketsOptions) ([]api.APIMarket, error)
}

// SamplerConfig holds REST sampler settings.
type SamplerConfig struct {
	Interval    time.Duration // Poll interval
	Concurrency int           // Max concurrent series requests
	Timeout     time.Duration // Per-series request timeout
	PageSize    int
}

// DefaultSamplerConfig returns sensible defaults.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Interval:    time.Minute,
		Concurrency: 4,
		Timeout:     30 * time.Second,
		PageSize:    1000,
	}
}

// Sampler periodically pulls quoted probabilities over REST and feeds them to
// the monitor. It backs up the websocket stream: a quiet or disconnected
// stream would otherwise leave the drop detector blind.
type Sampler struct {
	cfg    SamplerConfig
	rest   MarketLister
	series []string
	sink   SampleSink
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSampler creates a sampler over the given series categories.
func NewSampler(cfg SamplerConfig, rest MarketLister, series []string, sink SampleSink, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		cfg:    cfg,
		rest:   rest,
		series: series,
		sink:   sink,
		logger: logger,
	}
}

// Start begins the polling loop.
func (s *Sampler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("rest sampler started",
		"interval", s.cfg.Interval,
		"series", s.series,
	)
	return nil
}

// Stop gracefully shuts down the sampler.
func (s *Sampler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("rest sampler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sampler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Sample immediately on start.
	s.sampleAll()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sampleAll()
		}
	}
}

// sampleAll pulls one page set per series with bounded concurrency.
func (s *Sampler) sampleAll() {
	start := time.Now()

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	var sampled, errors atomic.Int64

	for _, series := range s.series {
		wg.Add(1)
		go func(series string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-s.ctx.Done():
				return
			}

			n, err := s.sampleSeries(series)
			if err != nil {
				s.logger.Warn("failed to sample series",
					"series", series,
					"err", err,
				)
				errors.Add(1)
				return
			}
			sampled.Add(int64(n))
		}(series)
	}

	wg.Wait()

	s.logger.Debug("sample cycle complete",
		"series", len(s.series),
		"samples", sampled.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// sampleSeries fetches open markets for one series and observes the yes ask
// of each.
func (s *Sampler) sampleSeries(series string) (int, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	markets, err := s.rest.GetAllMarketsWithOptions(ctx, api.GetMarketsOptions{
		SeriesTicker: series,
		Status:       "open",
		Limit:        s.cfg.PageSize,
	})
	if err != nil {
		return 0, err
	}

	observedAt := time.Now()
	for _, m := range markets {
		s.sink.Observe(model.ProbabilitySample{
			Ticker:           m.Ticker,
			ProbabilityCents: m.YesAsk,
			ObservedAt:       observedAt,
		})
	}
	return len(markets), nil
}

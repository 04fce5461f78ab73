package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/kalshi-trader/internal/allocator"
	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/auth"
	"github.com/rickgao/kalshi-trader/internal/catalog"
	"github.com/rickgao/kalshi-trader/internal/config"
	"github.com/rickgao/kalshi-trader/internal/database"
	"github.com/rickgao/kalshi-trader/internal/drift"
	"github.com/rickgao/kalshi-trader/internal/reconcile"
	"github.com/rickgao/kalshi-trader/internal/risk"
	"github.com/rickgao/kalshi-trader/internal/server"
	"github.com/rickgao/kalshi-trader/internal/store"
	"github.com/rickgao/kalshi-trader/internal/stream"
	"github.com/rickgao/kalshi-trader/internal/submit"
	"github.com/rickgao/kalshi-trader/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/trader.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting trader",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"series", cfg.Trading.SeriesTickers,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// Request signer and API client
	signer, err := auth.NewSigner(cfg.API.AccessKey, cfg.API.PrivateKeyPath)
	if err != nil {
		logger.Error("failed to load signing key", "error", err)
		os.Exit(1)
	}

	apiClient := api.NewClient(
		cfg.API.RestURL,
		signer,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithRateLimit(cfg.API.RatePerSecond, cfg.API.RateBurst),
	)

	// Trading pipeline
	cat := catalog.New(apiClient, logger)
	alloc := allocator.New(cfg.Risk.CapPct)
	guard := risk.New(cfg.Risk.MinPriceCents, cfg.Risk.CapPct)

	submitter := submit.New(
		submit.Config{
			GroupSize:  cfg.Trading.SubmitGroup,
			GroupDelay: cfg.Trading.SubmitDelay,
		},
		apiClient, st, guard, apiClient, logger,
	)

	basis := reconcile.ForName(cfg.Reconcile.CostBasis)
	engine := reconcile.New(
		reconcile.Config{
			TolerancePct:   cfg.Reconcile.TolerancePct,
			ToleranceCents: cfg.Reconcile.ToleranceCents,
		},
		basis, logger,
	)

	pipeline := server.NewPipeline(cfg.Trading, cat, alloc, apiClient, st, submitter, engine, logger)

	// Drift monitor over streamed quotes
	monitor := drift.New(
		drift.Config{
			Window:        cfg.Drift.Window,
			DropThreshold: cfg.Drift.DropThreshold,
			BatchSize:     cfg.Drift.BatchSize,
			FlushInterval: cfg.Drift.FlushInterval,
			BufferSize:    cfg.Drift.BufferSize,
		},
		st, logger,
	)
	if err := monitor.Start(ctx); err != nil {
		logger.Error("failed to start drift monitor", "error", err)
		os.Exit(1)
	}

	// REST sampler backs up the stream as a sample source.
	sampler := drift.NewSampler(drift.DefaultSamplerConfig(), apiClient, cfg.Trading.SeriesTickers, monitor, logger)
	if err := sampler.Start(ctx); err != nil {
		logger.Error("failed to start rest sampler", "error", err)
		os.Exit(1)
	}

	ws := startStream(ctx, cfg, signer, cat, monitor, logger)

	// Control server for the external scheduler
	ctrl := server.New(cfg.Server.Port, cfg.Server.AuthToken, pipeline, st, logger)
	go func() {
		if err := ctrl.ListenAndServe(); err != nil {
			logger.Error("control server error", "error", err)
			cancel()
		}
	}()

	logger.Info("trader running",
		"instance_id", cfg.Instance.ID,
		"port", cfg.Server.Port,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	ctrl.Shutdown(shutdownCtx)
	if ws != nil {
		ws.Close()
	}
	sampler.Stop(shutdownCtx)
	monitor.Stop(shutdownCtx)

	logger.Info("trader stopped")
}

// startStream subscribes the websocket stream to the tickers the catalog
// currently selects and feeds its samples into the drift monitor. A failed
// catalog read at startup disables the stream; the trading pipeline does its
// own catalog reads per prepare cycle and does not depend on it.
func startStream(
	ctx context.Context,
	cfg *config.TraderConfig,
	signer *auth.Signer,
	cat *catalog.Catalog,
	monitor *drift.Monitor,
	logger *slog.Logger,
) *stream.Stream {
	candidates, err := cat.OpenMarkets(ctx, cfg.Trading.SeriesTickers, cfg.Trading.CloseHorizon, cfg.Trading.PageSize)
	if err != nil {
		logger.Warn("stream disabled, catalog read failed", "error", err)
		return nil
	}
	if len(candidates) == 0 {
		logger.Info("stream disabled, no open markets in horizon")
		return nil
	}

	tickers := make([]string, 0, len(candidates))
	for _, c := range candidates {
		tickers = append(tickers, c.Market.Ticker)
	}

	streamCfg := stream.DefaultConfig()
	if cfg.API.WSURL != "" {
		streamCfg.URL = cfg.API.WSURL
	}
	ws := stream.New(streamCfg, signer, tickers, logger)
	go ws.Run(ctx)
	go func() {
		for sample := range ws.Samples() {
			monitor.Observe(sample)
		}
	}()

	logger.Info("stream started", "tickers", len(tickers))
	return ws
}

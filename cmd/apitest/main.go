// apitest exercises the signed REST client against the live exchange.
// Usage: go run ./cmd/apitest --config configs/trader.local.yaml
//
// Read-only: lists markets for the configured series, prints account
// balance, open positions, and recent fills. No orders are placed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/auth"
	"github.com/rickgao/kalshi-trader/internal/catalog"
	"github.com/rickgao/kalshi-trader/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/trader.local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	signer, err := auth.NewSigner(cfg.API.AccessKey, cfg.API.PrivateKeyPath)
	if err != nil {
		logger.Error("failed to load signing key", "error", err)
		os.Exit(1)
	}

	client := api.NewClient(
		cfg.API.RestURL,
		signer,
		api.WithLogger(logger),
		api.WithTimeout(30*time.Second),
		api.WithRateLimit(cfg.API.RatePerSecond, cfg.API.RateBurst),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Balance and portfolio value
	balance, err := client.GetBalance(ctx)
	if err != nil {
		logger.Error("get balance failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("balance: $%.2f  portfolio value: $%.2f\n",
		float64(balance.BalanceCents)/100,
		float64(balance.PortfolioValueCents)/100,
	)

	// Candidate markets per the trading config
	cat := catalog.New(client, logger)
	candidates, err := cat.OpenMarkets(ctx, cfg.Trading.SeriesTickers, cfg.Trading.CloseHorizon, cfg.Trading.PageSize)
	if err != nil {
		logger.Error("catalog read failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\n%d candidates for series %v within %s:\n",
		len(candidates), cfg.Trading.SeriesTickers, cfg.Trading.CloseHorizon)
	for i, c := range candidates {
		if i >= 20 {
			fmt.Printf("  ... and %d more\n", len(candidates)-20)
			break
		}
		fmt.Printf("  %-40s %s @ %d¢  oi=%d  closes %s\n",
			c.Market.Ticker, c.Side, c.PriceCents,
			c.Market.OpenInterest,
			c.Market.CloseTime.Format(time.RFC3339),
		)
	}

	// Open positions
	positions, err := client.GetPositions(ctx)
	if err != nil {
		logger.Error("get positions failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\n%d open positions:\n", len(positions))
	for _, p := range positions {
		fmt.Printf("  %-40s position=%d exposure=%d¢\n", p.Ticker, p.Position, p.MarketExposed)
	}

	// Recent fills
	fills, err := client.GetFills(ctx, api.GetFillsOptions{Limit: 10})
	if err != nil {
		logger.Error("get fills failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\nlast %d fills:\n", len(fills.Fills))
	for _, f := range fills.Fills {
		m := f.ToModel()
		fmt.Printf("  %-40s %s %s %d @ %d¢  %s\n",
			m.Ticker, m.Action, m.Side, m.Count, m.PriceCents,
			m.CreatedAt.Format(time.RFC3339),
		)
	}
}

// Package catalog selects the open markets the trading pipeline considers.
//
// The catalog is read-only: it pages markets out of the exchange for the
// configured series categories, keeps those closing within the horizon, picks
// the favorite side of each, and ranks them by open interest so the allocator
// sees the most liquid markets first.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/model"
)

// MarketLister is the market-listing surface of the api client.
type MarketLister interface {
	GetAllMarketsWithOptions(ctx context.Context, opts api.GetMarketsOptions) ([]api.APIMarket, error)
}

// Catalog produces ranked candidate markets.
type Catalog struct {
	rest   MarketLister
	logger *slog.Logger
}

// New creates a catalog over the given market lister.
func New(rest MarketLister, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{rest: rest, logger: logger}
}

// OpenMarkets fetches open markets for the given series closing within
// horizon and returns them as ranked candidates: open interest descending,
// ticker ascending on ties so the ordering is reproducible.
func (c *Catalog) OpenMarkets(ctx context.Context, seriesTickers []string, horizon time.Duration, pageSize int) ([]model.Candidate, error) {
	start := time.Now()
	maxClose := start.Add(horizon).Unix()

	var markets []api.APIMarket
	for _, series := range seriesTickers {
		page, err := c.rest.GetAllMarketsWithOptions(ctx, api.GetMarketsOptions{
			SeriesTicker: series,
			Status:       "open",
			MaxCloseTS:   maxClose,
			Limit:        pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list markets for series %s: %w", series, err)
		}
		markets = append(markets, page...)
	}

	candidates := make([]model.Candidate, 0, len(markets))
	for _, am := range markets {
		m := am.ToModel()
		cand, ok := Favorite(m)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}

	Rank(candidates)

	c.logger.Info("catalog selected candidates",
		"series", seriesTickers,
		"markets", len(markets),
		"candidates", len(candidates),
		"duration", time.Since(start),
	)
	return candidates, nil
}

// Favorite picks the side the market currently favors: the side whose ask is
// above 50 cents. Markets with no usable two-sided quote are skipped; a
// degenerate ask at 0 or at face value carries no probability information.
func Favorite(m model.Market) (model.Candidate, bool) {
	side := model.SideYes
	price := m.YesAsk
	if m.NoAsk > m.YesAsk {
		side = model.SideNo
		price = m.NoAsk
	}
	if price <= model.FaceValueCents/2 || price >= model.FaceValueCents {
		return model.Candidate{}, false
	}
	return model.Candidate{Market: m, Side: side, PriceCents: price}, true
}

// Rank orders candidates by open interest descending, ticker ascending.
func Rank(candidates []model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		oi, oj := candidates[i].Market.OpenInterest, candidates[j].Market.OpenInterest
		if oi != oj {
			return oi > oj
		}
		return candidates[i].Market.Ticker < candidates[j].Market.Ticker
	})
}

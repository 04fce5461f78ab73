package catalog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/rickgao/kalshi-trader/internal/api"
	"github.com/rickgao/kalshi-trader/internal/model"
)

type fakeLister struct {
	calls   []api.GetMarketsOptions
	markets map[string][]api.APIMarket
}

func (f *fakeLister) GetAllMarketsWithOptions(_ context.Context, opts api.GetMarketsOptions) ([]api.APIMarket, error) {
	f.calls = append(f.calls, opts)
	return f.markets[opts.SeriesTicker], nil
}

func TestOpenMarkets_FiltersAndRanks(t *testing.T) {
	lister := &fakeLister{markets: map[string][]api.APIMarket{
		"KXHIGHNY": {
			{Ticker: "KXHIGHNY-26AUG28-B85", YesAsk: 93, NoAsk: 9, OpenInterest: 500},
			{Ticker: "KXHIGHNY-26AUG28-B80", YesAsk: 12, NoAsk: 91, OpenInterest: 2000},
			// Degenerate quote, no probability information.
			{Ticker: "KXHIGHNY-26AUG28-B90", YesAsk: 100, NoAsk: 0, OpenInterest: 9000},
		},
		"INXD": {
			{Ticker: "INXD-26AUG28-T6400", YesAsk: 95, NoAsk: 7, OpenInterest: 500},
			// Toss-up, no favorite above 50.
			{Ticker: "INXD-26AUG28-T6500", YesAsk: 50, NoAsk: 50, OpenInterest: 800},
		},
	}}

	cat := New(lister, slog.New(slog.DiscardHandler))
	got, err := cat.OpenMarkets(context.Background(), []string{"KXHIGHNY", "INXD"}, 24*time.Hour, 200)
	if err != nil {
		t.Fatalf("OpenMarkets: %v", err)
	}

	want := []struct {
		ticker string
		side   model.Side
		price  int
	}{
		{"KXHIGHNY-26AUG28-B80", model.SideNo, 91},
		{"INXD-26AUG28-T6400", model.SideYes, 95},
		{"KXHIGHNY-26AUG28-B85", model.SideYes, 93},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, w := range want {
		c := got[i]
		if c.Market.Ticker != w.ticker || c.Side != w.side || c.PriceCents != w.price {
			t.Errorf("candidate %d = (%s, %s, %d), want (%s, %s, %d)",
				i, c.Market.Ticker, c.Side, c.PriceCents, w.ticker, w.side, w.price)
		}
	}
}

func TestOpenMarkets_QueryShape(t *testing.T) {
	lister := &fakeLister{markets: map[string][]api.APIMarket{}}
	cat := New(lister, slog.New(slog.DiscardHandler))

	before := time.Now().Add(6 * time.Hour).Unix()
	if _, err := cat.OpenMarkets(context.Background(), []string{"KXBTCD"}, 6*time.Hour, 100); err != nil {
		t.Fatalf("OpenMarkets: %v", err)
	}
	after := time.Now().Add(6 * time.Hour).Unix()

	if len(lister.calls) != 1 {
		t.Fatalf("got %d list calls, want 1", len(lister.calls))
	}
	call := lister.calls[0]
	if call.SeriesTicker != "KXBTCD" || call.Status != "open" || call.Limit != 100 {
		t.Errorf("unexpected options: %+v", call)
	}
	if call.MaxCloseTS < before || call.MaxCloseTS > after {
		t.Errorf("max_close_ts %d outside horizon window [%d, %d]", call.MaxCloseTS, before, after)
	}
}

func TestFavorite_TiesGoToYes(t *testing.T) {
	// Equal asks above 50: yes wins the tie so selection is deterministic.
	cand, ok := Favorite(model.Market{Ticker: "T", YesAsk: 60, NoAsk: 60})
	if !ok {
		t.Fatal("expected a candidate")
	}
	if cand.Side != model.SideYes || cand.PriceCents != 60 {
		t.Errorf("got (%s, %d), want (yes, 60)", cand.Side, cand.PriceCents)
	}
}

func TestRank_StableOnEqualOpenInterest(t *testing.T) {
	cs := []model.Candidate{
		{Market: model.Market{Ticker: "B", OpenInterest: 10}},
		{Market: model.Market{Ticker: "A", OpenInterest: 10}},
		{Market: model.Market{Ticker: "C", OpenInterest: 10}},
	}
	Rank(cs)
	for i, want := range []string{"A", "B", "C"} {
		if cs[i].Market.Ticker != want {
			t.Errorf("rank[%d] = %s, want %s", i, cs[i].Market.Ticker, want)
		}
	}
}

package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// DollarsToCents converts a dollar string to integer cents.
// "0.07" -> 7, "1.25" -> 125. Returns 0 for empty or invalid input.
func DollarsToCents(dollars string) int64 {
	dollars = strings.TrimSpace(dollars)
	if dollars == "" {
		return 0
	}

	f, err := strconv.ParseFloat(dollars, 64)
	if err != nil {
		return 0
	}

	return int64(f*100 + 0.5)
}

// ParseTime parses an ISO 8601 timestamp. Returns the zero time for empty or
// invalid input.
func ParseTime(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t
}

// seriesTickerOf derives the series ticker from a market ticker.
// Kalshi tickers are SERIES-EVENT-MARKET; the series is the first segment.
func seriesTickerOf(ticker string) string {
	if i := strings.IndexByte(ticker, '-'); i > 0 {
		return ticker[:i]
	}
	return ticker
}

// ToModel converts an APIMarket to a model.Market snapshot.
func (m *APIMarket) ToModel() model.Market {
	return model.Market{
		Ticker:       m.Ticker,
		EventTicker:  m.EventTicker,
		SeriesTicker: seriesTickerOf(m.Ticker),
		Title:        m.Title,
		YesAsk:       m.YesAsk,
		NoAsk:        m.NoAsk,
		LastPrice:    m.LastPrice,
		OpenInterest: m.OpenInterest,
		Volume24h:    m.Volume24h,
		CloseTime:    ParseTime(m.CloseTime),
		Status:       m.Status,
	}
}

// ToModel converts an APIFill to a model.Fill. The fill price is the price
// of the filled side.
func (f *APIFill) ToModel() model.Fill {
	side := model.Side(f.Side)
	price := f.YesPrice
	if side == model.SideNo {
		price = f.NoPrice
	}

	tradeID, _ := uuid.Parse(f.TradeID)

	return model.Fill{
		TradeID:         tradeID,
		ExchangeOrderID: f.OrderID,
		Ticker:          f.Ticker,
		Side:            side,
		Action:          model.Action(f.Action),
		Count:           f.Count,
		PriceCents:      price,
		CreatedAt:       ParseTime(f.CreatedTime),
	}
}

// ToModel converts an APISettlement to a model.Settlement. Revenue arrives in
// cents; the fee arrives as a dollar string and is converted.
func (s *APISettlement) ToModel() model.Settlement {
	return model.Settlement{
		Ticker:       s.Ticker,
		WinningSide:  model.Side(s.MarketResult),
		RevenueCents: s.RevenueCents,
		FeeCents:     DollarsToCents(s.FeeDollars),
		SettledAt:    ParseTime(s.SettledTime),
	}
}

// FillsToModel converts a slice of API fills.
func FillsToModel(fills []APIFill) []model.Fill {
	out := make([]model.Fill, 0, len(fills))
	for i := range fills {
		out = append(out, fills[i].ToModel())
	}
	return out
}

// SettlementsToModel converts a slice of API settlements.
func SettlementsToModel(settlements []APISettlement) []model.Settlement {
	out := make([]model.Settlement, 0, len(settlements))
	for i := range settlements {
		out = append(out, settlements[i].ToModel())
	}
	return out
}

package api

// MarketsResponse from GET /markets
type MarketsResponse struct {
	Markets []APIMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// APIMarket represents a market from the Kalshi API.
type APIMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	MarketType  string `json:"market_type"`
	Result      string `json:"result"`

	// Prices in cents
	YesBid    int `json:"yes_bid"`
	YesAsk    int `json:"yes_ask"`
	NoBid     int `json:"no_bid"`
	NoAsk     int `json:"no_ask"`
	LastPrice int `json:"last_price"`

	// Volume
	Volume       int64 `json:"volume"`
	Volume24h    int64 `json:"volume_24h"`
	OpenInterest int64 `json:"open_interest"`

	// Timestamps (ISO 8601)
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// GetMarketsOptions configures a GetMarkets request.
type GetMarketsOptions struct {
	Limit        int
	Cursor       string
	EventTicker  string
	SeriesTicker string
	Status       string
	MaxCloseTS   int64 // Unix seconds; only markets closing at or before this
}

// BalanceResponse from GET /portfolio/balance
type BalanceResponse struct {
	BalanceCents        int64 `json:"balance"`         // Available cash, cents
	PortfolioValueCents int64 `json:"portfolio_value"` // Cash + position value, cents
}

// PositionsResponse from GET /portfolio/positions
type PositionsResponse struct {
	MarketPositions []APIMarketPosition `json:"market_positions"`
	Cursor          string              `json:"cursor"`
}

// APIMarketPosition represents one market position.
type APIMarketPosition struct {
	Ticker        string `json:"ticker"`
	Position      int    `json:"position"` // Positive = YES contracts, negative = NO
	MarketExposed int64  `json:"market_exposure"`
	TotalTraded   int64  `json:"total_traded"`
	RestingOrders int    `json:"resting_orders_count"`
	Fees          int64  `json:"fees_paid"`
}

// CreateOrderRequest for POST /portfolio/orders
type CreateOrderRequest struct {
	Ticker        string `json:"ticker"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Count         int    `json:"count"`
	Type          string `json:"type"` // "limit" or "market"
	YesPriceCents int    `json:"yes_price,omitempty"`
	NoPriceCents  int    `json:"no_price,omitempty"`
	ClientOrderID string `json:"client_order_id"`
}

// CreateOrderResponse from POST /portfolio/orders
type CreateOrderResponse struct {
	Order APIOrder `json:"order"`
}

// APIOrder represents an order as reported by the exchange.
type APIOrder struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Ticker        string `json:"ticker"`
	Status        string `json:"status"` // "resting", "executed", "canceled", "pending"
	Action        string `json:"action"`
	Side          string `json:"side"`
	YesPrice      int    `json:"yes_price"`
	NoPrice       int    `json:"no_price"`
	Count         int    `json:"count"`          // Requested contracts
	RemainingCnt  int    `json:"remaining_count"` // Still unmatched
	TakerFillCnt  int    `json:"taker_fill_count"`
	TakerFillCost int64  `json:"taker_fill_cost"` // Cents actually paid
	CreatedTime   string `json:"created_time"`
}

// FillsResponse from GET /portfolio/fills
type FillsResponse struct {
	Fills  []APIFill `json:"fills"`
	Cursor string    `json:"cursor"`
}

// APIFill represents an exchange-reported execution.
type APIFill struct {
	TradeID     string `json:"trade_id"`
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`   // "yes" or "no"
	Action      string `json:"action"` // "buy" or "sell"
	Count       int    `json:"count"`
	YesPrice    int    `json:"yes_price"` // Cents
	NoPrice     int    `json:"no_price"`  // Cents
	IsTaker     bool   `json:"is_taker"`
	CreatedTime string `json:"created_time"`
}

// SettlementsResponse from GET /portfolio/settlements
type SettlementsResponse struct {
	Settlements []APISettlement `json:"settlements"`
	Cursor      string          `json:"cursor"`
}

// APISettlement represents an exchange-reported market resolution.
type APISettlement struct {
	Ticker       string `json:"ticker"`
	MarketResult string `json:"market_result"` // "yes" or "no"
	YesCount     int    `json:"yes_count"`
	NoCount      int    `json:"no_count"`
	RevenueCents int64  `json:"revenue"`     // Payout, cents
	FeeDollars   string `json:"fee"`         // Settlement fee as a dollar string
	SettledTime  string `json:"settled_time"`
}

// GetFillsOptions configures a GetFills request.
type GetFillsOptions struct {
	Limit  int
	Cursor string
	Ticker string
}

// GetSettlementsOptions configures a GetSettlements request.
type GetSettlementsOptions struct {
	Limit  int
	Cursor string
}

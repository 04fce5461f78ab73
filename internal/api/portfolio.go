package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetBalance fetches the account balance and exchange-reported portfolio value.
func (c *Client) GetBalance(ctx context.Context) (*BalanceResponse, error) {
	var resp BalanceResponse
	if err := c.get(ctx, "/portfolio/balance", nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &resp, nil
}

// PortfolioValueCents implements risk.PortfolioValueProvider using the
// exchange-reported portfolio value, not a locally summed approximation.
func (c *Client) PortfolioValueCents(ctx context.Context) (int64, error) {
	resp, err := c.GetBalance(ctx)
	if err != nil {
		return 0, err
	}
	return resp.PortfolioValueCents, nil
}

// GetPositions fetches all open market positions, paginating through results.
func (c *Client) GetPositions(ctx context.Context) ([]APIMarketPosition, error) {
	var all []APIMarketPosition
	cursor := ""

	for {
		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp PositionsResponse
		if err := c.get(ctx, "/portfolio/positions", query, &resp); err != nil {
			return nil, fmt.Errorf("get positions: %w", err)
		}

		all = append(all, resp.MarketPositions...)

		if resp.Cursor == "" {
			return all, nil
		}
		cursor = resp.Cursor
	}
}

// CreateOrder submits an order. The request's ClientOrderID is the
// idempotency token; resubmitting the same token never creates a second
// exchange order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*APIOrder, error) {
	var resp CreateOrderResponse
	if err := c.post(ctx, "/portfolio/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("create order %s: %w", req.Ticker, err)
	}
	return &resp.Order, nil
}

// GetFills fetches a page of fills.
func (c *Client) GetFills(ctx context.Context, opts GetFillsOptions) (*FillsResponse, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Ticker != "" {
		query.Set("ticker", opts.Ticker)
	}

	var resp FillsResponse
	if err := c.get(ctx, "/portfolio/fills", query, &resp); err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	return &resp, nil
}

// GetAllFills fetches the full fill history by paginating through results.
func (c *Client) GetAllFills(ctx context.Context) ([]APIFill, error) {
	var all []APIFill
	opts := GetFillsOptions{Limit: 200}

	for {
		resp, err := c.GetFills(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Fills...)

		if resp.Cursor == "" {
			return all, nil
		}
		opts.Cursor = resp.Cursor
	}
}

// GetSettlements fetches a page of settlements.
func (c *Client) GetSettlements(ctx context.Context, opts GetSettlementsOptions) (*SettlementsResponse, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp SettlementsResponse
	if err := c.get(ctx, "/portfolio/settlements", query, &resp); err != nil {
		return nil, fmt.Errorf("get settlements: %w", err)
	}
	return &resp, nil
}

// GetAllSettlements fetches the full settlement history by paginating
// through results.
func (c *Client) GetAllSettlements(ctx context.Context) ([]APISettlement, error) {
	var all []APISettlement
	opts := GetSettlementsOptions{Limit: 200}

	for {
		resp, err := c.GetSettlements(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Settlements...)

		if resp.Cursor == "" {
			return all, nil
		}
		opts.Cursor = resp.Cursor
	}
}

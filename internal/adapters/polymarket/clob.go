package polymarket

// clob.go — endpoints REST de datos de mercado del CLOB de Polymarket.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

const (
	bookPath           = "/book"
	lastTradePricePath = "/last-trade-price"
	midpointPath       = "/midpoint"
)

// FetchOrderBook obtiene el snapshot crudo del book de un token vía GET /book.
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (domain.RawBook, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, bookPath, url.QueryEscape(tokenID))

	var resp orderBookResponse
	if err := c.get(ctx, c.bookLimiter, u, &resp); err != nil {
		return domain.RawBook{}, fmt.Errorf("clob.FetchOrderBook: %w", err)
	}
	if resp.AssetID == "" {
		resp.AssetID = tokenID
	}

	book := mapRawBook(resp, time.Now().UTC())
	slog.Debug("order book fetched",
		"token", tokenID,
		"bids", len(book.Bids),
		"asks", len(book.Asks),
		"hash", resp.Hash,
	)
	return book, nil
}

// LastTradePrice devuelve el precio del último trade del token.
func (c *Client) LastTradePrice(ctx context.Context, tokenID string) (float64, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, lastTradePricePath, url.QueryEscape(tokenID))

	var resp lastTradePriceResponse
	if err := c.get(ctx, c.priceLimiter, u, &resp); err != nil {
		return 0, fmt.Errorf("clob.LastTradePrice: %w", err)
	}
	price, err := resp.Price.Float64()
	if err != nil {
		return 0, fmt.Errorf("clob.LastTradePrice: parse %q: %w", resp.Price, err)
	}
	return price, nil
}

// Midpoint devuelve el punto medio publicado por el CLOB.
func (c *Client) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, midpointPath, url.QueryEscape(tokenID))

	var resp midpointResponse
	if err := c.get(ctx, c.priceLimiter, u, &resp); err != nil {
		return 0, fmt.Errorf("clob.Midpoint: %w", err)
	}
	mid, err := resp.Mid.Float64()
	if err != nil {
		return 0, fmt.Errorf("clob.Midpoint: parse %q: %w", resp.Mid, err)
	}
	return mid, nil
}

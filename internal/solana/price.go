package solana

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// PriceClient fetches spot prices from the market data service. The
// upstream historically answers in three shapes (bare number, an object
// with a price field, or an explicit failure object); they are normalized
// here, once, so the rest of the engine only sees a price or an error.
type PriceClient struct {
	core   *restCore
	apiKey string
}

// NewPriceClient creates a client for the price feed.
func NewPriceClient(baseURL, apiKey string, rateLimit float64, burst int, logger *zap.Logger) *PriceClient {
	return &PriceClient{
		core:   newRestCore(baseURL, rateLimit, burst, logger.Named("price")),
		apiKey: apiKey,
	}
}

// GetPrice returns the current USD price for a token symbol.
func (c *PriceClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	req := c.core.client.R().
		SetHeader("Authorization", c.apiKey).
		SetQueryParam("asset", symbol)

	resp, err := c.core.doRequest(ctx, "GET", "/market/data", req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
	}

	price, err := normalizePriceResult(resp.Body())
	if err != nil {
		return 0, fmt.Errorf("price feed for %s: %w", symbol, err)
	}

	c.core.logger.Debug("Price fetched", zap.String("symbol", symbol), zap.Float64("price", price))
	return price, nil
}

// normalizePriceResult folds the three historic upstream shapes into a
// single price-or-error result. Anything else is an error, never a
// silent default.
func normalizePriceResult(body []byte) (float64, error) {
	// A pointer distinguishes a JSON number from null, which also
	// unmarshals into a plain float64 without error.
	var bare *float64
	if err := json.Unmarshal(body, &bare); err == nil && bare != nil {
		return *bare, nil
	}

	var obj struct {
		Price   *float64 `json:"price"`
		Success *bool    `json:"success"`
		Error   string   `json:"error"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return 0, fmt.Errorf("unrecognized price result: %s", string(body))
	}

	if obj.Success != nil && !*obj.Success {
		if obj.Error == "" {
			obj.Error = "upstream reported failure without a message"
		}
		return 0, fmt.Errorf("upstream error: %s", obj.Error)
	}
	if obj.Price != nil {
		return *obj.Price, nil
	}
	return 0, fmt.Errorf("unrecognized price result: %s", string(body))
}

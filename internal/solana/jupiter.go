package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Quote is an upstream-computed exchange rate and route for a swap,
// valid for a short window.
type Quote struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	SlippageBps          int             `json:"slippageBps"`
	RoutePlan            json.RawMessage `json:"routePlan"`
}

// OutAmountFloat converts the raw output amount using the token decimals.
func (q *Quote) OutAmountFloat(decimals int) float64 {
	raw, err := strconv.ParseFloat(q.OutAmount, 64)
	if err != nil {
		return 0
	}
	div := 1.0
	for i := 0; i < decimals; i++ {
		div *= 10
	}
	return raw / div
}

// PriceImpact parses the quoted price impact percentage.
func (q *Quote) PriceImpact() float64 {
	v, _ := strconv.ParseFloat(q.PriceImpactPct, 64)
	return v
}

// JupiterClient talks to the Jupiter swap aggregator.
type JupiterClient struct {
	core *restCore
}

// NewJupiterClient creates a client for the quote/swap service.
func NewJupiterClient(baseURL string, rateLimit float64, burst int, logger *zap.Logger) *JupiterClient {
	return &JupiterClient{core: newRestCore(baseURL, rateLimit, burst, logger.Named("jupiter"))}
}

// GetQuote requests a swap quote. An empty route is reported as a
// "no route" error so the caller's retry policy can see it.
func (c *JupiterClient) GetQuote(ctx context.Context, inputMint, outputMint string, rawAmount uint64, slippageBps int) (*Quote, error) {
	var quote Quote
	req := c.core.client.R().
		SetQueryParams(map[string]string{
			"inputMint":   inputMint,
			"outputMint":  outputMint,
			"amount":      strconv.FormatUint(rawAmount, 10),
			"slippageBps": strconv.Itoa(slippageBps),
		}).
		SetResult(&quote)

	if _, err := c.core.doRequest(ctx, "GET", "/quote", req); err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if quote.OutAmount == "" || quote.OutAmount == "0" {
		return nil, fmt.Errorf("no route found for %s -> %s", inputMint, outputMint)
	}

	c.core.logger.Debug("Quote received",
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount),
		zap.String("price_impact_pct", quote.PriceImpactPct))
	return &quote, nil
}

// BuildSwapTransaction asks the service to assemble a signable
// transaction for a quote. The returned transaction is base64-encoded.
func (c *JupiterClient) BuildSwapTransaction(ctx context.Context, quote *Quote, payer string, priorityFee string) (string, error) {
	if priorityFee == "" {
		priorityFee = "auto"
	}
	var result struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	req := c.core.client.R().
		SetBody(map[string]any{
			"quoteResponse":             quote,
			"userPublicKey":             payer,
			"wrapAndUnwrapSol":          true,
			"prioritizationFeeLamports": priorityFee,
		}).
		SetResult(&result)

	if _, err := c.core.doRequest(ctx, "POST", "/swap", req); err != nil {
		return "", fmt.Errorf("failed to build swap transaction: %w", err)
	}

	if result.SwapTransaction == "" {
		return "", fmt.Errorf("swap service returned an empty transaction")
	}
	return result.SwapTransaction, nil
}

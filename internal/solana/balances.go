package solana

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Holding is one token balance of a wallet.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Mint     string  `json:"mint"`
	UIAmount float64 `json:"uiAmount"`
	Decimals int     `json:"decimals"`
}

// BalanceClient fetches wallet holdings from the balance service.
type BalanceClient struct {
	core *restCore
}

// NewBalanceClient creates a client for the balance service.
func NewBalanceClient(baseURL string, rateLimit float64, burst int, logger *zap.Logger) *BalanceClient {
	return &BalanceClient{core: newRestCore(baseURL, rateLimit, burst, logger.Named("balances"))}
}

// GetHoldings returns all token balances for an address.
func (c *BalanceClient) GetHoldings(ctx context.Context, address string) ([]Holding, error) {
	var result struct {
		AllBalances []Holding `json:"allBalances"`
	}
	req := c.core.client.R().
		SetResult(&result).
		SetHeader("Content-Type", "application/json")

	if _, err := c.core.doRequest(ctx, "GET", "/balances/"+address, req); err != nil {
		return nil, fmt.Errorf("failed to get holdings for %s: %w", address, err)
	}

	return result.AllBalances, nil
}

// FindHolding returns the holding for a symbol, or zero amount when the
// wallet has no account for it.
func FindHolding(holdings []Holding, symbol string) Holding {
	for _, h := range holdings {
		if strings.EqualFold(h.Symbol, symbol) {
			return h
		}
	}
	return Holding{Symbol: strings.ToUpper(symbol)}
}

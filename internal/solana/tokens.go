package solana

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NativeMint is the wrapped-SOL mint address used for the native asset.
const NativeMint = "So11111111111111111111111111111111111111112"

// NativeSymbol is the native asset symbol.
const NativeSymbol = "SOL"

const tokenCacheTTL = 5 * time.Minute

// Token is one entry of the token directory.
type Token struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
}

// TokenDirectory resolves token symbols to mints through an upstream
// token list, cached with a TTL. A failed refresh serves the stale cache
// rather than failing the caller; only a cold cache plus a failed refresh
// is an error.
type TokenDirectory struct {
	core *restCore

	mu        sync.Mutex
	cache     map[string]Token
	fetchedAt time.Time
	ttl       time.Duration
}

// NewTokenDirectory creates a directory backed by the token list service.
func NewTokenDirectory(baseURL string, rateLimit float64, burst int, logger *zap.Logger) *TokenDirectory {
	return &TokenDirectory{
		core: newRestCore(baseURL, rateLimit, burst, logger.Named("tokens")),
		ttl:  tokenCacheTTL,
	}
}

// Resolve returns the token for a symbol, refreshing the cache when it is
// older than the TTL.
func (d *TokenDirectory) Resolve(ctx context.Context, symbol string) (Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.fetchedAt) > d.ttl {
		if err := d.refreshLocked(ctx); err != nil {
			if d.cache == nil {
				return Token{}, fmt.Errorf("token list unavailable and no cache exists: %w", err)
			}
			d.core.logger.Warn("Token list refresh failed, serving stale cache", zap.Error(err))
		}
	}

	token, ok := d.cache[strings.ToUpper(symbol)]
	if !ok {
		return Token{}, fmt.Errorf("token %q not found in directory", symbol)
	}
	return token, nil
}

func (d *TokenDirectory) refreshLocked(ctx context.Context) error {
	var tokens []Token
	req := d.core.client.R().
		SetResult(&tokens).
		SetHeader("Content-Type", "application/json")

	if _, err := d.core.doRequest(ctx, "GET", "/tokens", req); err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	cache := make(map[string]Token, len(tokens))
	for _, t := range tokens {
		cache[strings.ToUpper(t.Symbol)] = t
	}
	d.cache = cache
	d.fetchedAt = time.Now()
	d.core.logger.Info("Token directory refreshed", zap.Int("count", len(cache)))
	return nil
}

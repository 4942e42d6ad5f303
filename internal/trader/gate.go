package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-trade-agent-go/internal/solana"
	"solana-trade-agent-go/internal/status"
)

// AwaitMinimumBalance blocks until the address holds at least minimumSOL
// of the native asset. There is no timeout and no attempt cap: an agent
// must not trade until it is funded. Fetch errors are retried exactly
// like an insufficient balance. Only context cancellation returns early.
func (e *Engine) AwaitMinimumBalance(ctx context.Context, address string, minimumSOL float64) (float64, error) {
	for attempt := 1; ; attempt++ {
		holdings, err := e.balances.GetHoldings(ctx, address)
		if err == nil {
			balance := solana.FindHolding(holdings, solana.NativeSymbol).UIAmount
			if balance >= minimumSOL {
				e.store.Publish(status.StageWaiting,
					fmt.Sprintf("Balance ready: %.6f SOL", balance),
					status.Bool(true),
					map[string]any{"balance": balance, "minimum": minimumSOL}, nil, true)
				return balance, nil
			}
			e.store.Publish(status.StageWaiting,
				fmt.Sprintf("Waiting for balance: %.6f of %.6f SOL", balance, minimumSOL),
				nil,
				map[string]any{"balance": balance, "minimum": minimumSOL, "attempt": attempt}, nil, true)
		} else {
			// Transient RPC outages must not abort a long-lived agent.
			e.store.Publish(status.StageWaiting,
				fmt.Sprintf("Balance check failed, retrying: %v", err),
				nil,
				map[string]any{"attempt": attempt}, nil, true)
			e.logger.Warn("Balance fetch failed", zap.String("address", address), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(e.balancePollDelay):
		}
	}
}

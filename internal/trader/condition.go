package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-trade-agent-go/internal/config"
	"solana-trade-agent-go/internal/status"
)

// CheckCondition fetches the current price and evaluates it against the
// target. The boundary is inclusive in both directions.
func (e *Engine) CheckCondition(ctx context.Context, symbol string, targetPrice float64, direction Direction) ConditionResult {
	price, err := e.prices.GetPrice(ctx, symbol)
	if err != nil {
		return ConditionResult{
			Success:     false,
			TargetPrice: targetPrice,
			Error:       err.Error(),
		}
	}

	met := false
	switch direction {
	case DirectionAbove:
		met = price >= targetPrice
	case DirectionBelow:
		met = price <= targetPrice
	}

	return ConditionResult{
		Success:      true,
		CurrentPrice: price,
		TargetPrice:  targetPrice,
		ConditionMet: met,
	}
}

// WaitForCondition polls CheckCondition at the configured poll rate until
// the condition is met or maxWait elapses (default 24h when zero). A failed
// poll is logged and the loop continues; expiry returns TimedOut=true
// rather than an error.
func (e *Engine) WaitForCondition(ctx context.Context, symbol string, targetPrice float64, direction Direction, maxWait time.Duration) (ConditionResult, error) {
	if maxWait <= 0 {
		maxWait = config.DefaultConditionMaxWait
	}
	deadline := time.Now().Add(maxWait)

	for {
		result := e.CheckCondition(ctx, symbol, targetPrice, direction)
		switch {
		case result.Success && result.ConditionMet:
			e.store.Publish(status.StageMonitoring,
				fmt.Sprintf("Price condition met: %s at $%.4f (%s $%.4f)", symbol, result.CurrentPrice, direction, targetPrice),
				status.Bool(true),
				map[string]any{"current_price": result.CurrentPrice, "target_price": targetPrice}, nil, true)
			return result, nil
		case result.Success:
			e.store.Publish(status.StageMonitoring,
				fmt.Sprintf("Watching %s: $%.4f, waiting for %s $%.4f", symbol, result.CurrentPrice, direction, targetPrice),
				nil,
				map[string]any{"current_price": result.CurrentPrice, "target_price": targetPrice}, nil, true)
		default:
			e.logger.Warn("Price check failed, continuing to wait",
				zap.String("symbol", symbol), zap.String("error", result.Error))
			e.store.AppendLog(fmt.Sprintf("Price check failed: %s", result.Error), status.LevelWarn)
		}

		if time.Now().After(deadline) {
			result.TimedOut = true
			result.ConditionMet = false
			e.store.Publish(status.StageMonitoring,
				fmt.Sprintf("Price monitoring timed out after %s", maxWait),
				status.Bool(false), nil, nil, true)
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(e.conditionPollRate):
		}
	}
}

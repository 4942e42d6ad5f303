package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-trade-agent-go/internal/status"
)

// RangeStrategy trades when a price condition holds. It does not use the
// scheduler: it owns a fixed-period polling loop that runs for the
// lifetime of the process. A tick whose condition is not met is logged
// and skipped; the loop never stops itself.
type RangeStrategy struct {
	engine *Engine
	cfg    ExecutionConfig
}

func (s *RangeStrategy) Name() string { return StrategyRange }

func (s *RangeStrategy) Start(ctx context.Context) (map[string]any, error) {
	if s.cfg.PriceMonitoring == nil {
		return nil, fmt.Errorf("range strategy requires a price_monitoring section")
	}

	mon := s.cfg.PriceMonitoring
	e := s.engine

	e.store.Publish(status.StageMonitoring,
		fmt.Sprintf("Monitoring %s %s $%.4f", mon.Token, mon.Direction(), mon.TargetPrice),
		nil,
		map[string]any{"token": mon.Token, "target_price": mon.TargetPrice, "direction": string(mon.Direction())},
		nil, true)

	// Monitoring outlives the caller's (possibly request-scoped) context.
	go s.monitor(e.rootCtx)

	return map[string]any{
		"monitoring_active": true,
		"token":             mon.Token,
		"target_price":      mon.TargetPrice,
		"direction":         string(mon.Direction()),
	}, nil
}

func (s *RangeStrategy) monitor(ctx context.Context) {
	e := s.engine
	mon := s.cfg.PriceMonitoring
	intent := e.intentFromConfig(s.cfg.FromToken, s.cfg.ToToken, s.cfg.Amount)

	ticker := time.NewTicker(e.conditionPollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Range monitoring stopped", zap.String("token", mon.Token))
			return
		case <-ticker.C:
			check := e.CheckCondition(ctx, mon.Token, mon.TargetPrice, mon.Direction())
			switch {
			case !check.Success:
				// A failed poll never halts the loop.
				e.store.AppendLog(fmt.Sprintf("Price check failed: %s", check.Error), status.LevelWarn)
			case !check.ConditionMet:
				e.store.AppendLog(
					fmt.Sprintf("Condition not met: %s at $%.4f, waiting for %s $%.4f",
						mon.Token, check.CurrentPrice, mon.Direction(), mon.TargetPrice),
					status.LevelInfo)
			default:
				e.store.Publish(status.StageExecuting,
					fmt.Sprintf("Price condition met: %s at $%.4f, executing trade", mon.Token, check.CurrentPrice),
					nil,
					map[string]any{"current_price": check.CurrentPrice, "target_price": mon.TargetPrice}, nil, true)

				if _, err := e.runCycle(ctx, intent); err != nil {
					e.logger.Error("Range cycle failed", zap.Error(err))
				}
			}
		}
	}
}

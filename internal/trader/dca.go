package trader

import (
	"context"
	"fmt"

	"solana-trade-agent-go/internal/status"
)

// DCAStrategy buys on a fixed cadence. Without a schedule section it
// fires exactly once; with one it registers a recurring schedule whose
// callback is gate then pipeline.
type DCAStrategy struct {
	engine *Engine
	cfg    ExecutionConfig
}

func (s *DCAStrategy) Name() string { return StrategyDCA }

func (s *DCAStrategy) Start(ctx context.Context) (map[string]any, error) {
	e := s.engine
	intent := e.intentFromConfig(s.cfg.FromToken, s.cfg.ToToken, s.cfg.Amount)

	if s.cfg.Schedule == nil {
		return e.runCycle(ctx, intent)
	}

	callback := func(cbCtx context.Context) (map[string]any, error) {
		return e.runCycle(cbCtx, intent)
	}

	var scheduleID string
	var description string
	switch {
	case s.cfg.Schedule.IntervalMs > 0:
		scheduleID = e.sched.ScheduleInterval(callback, s.cfg.Schedule.Interval(), s.cfg.Schedule.ExecuteImmediately)
		description = fmt.Sprintf("every %s", s.cfg.Schedule.Interval())
	default:
		var err error
		scheduleID, err = e.sched.ScheduleDailyTimes(callback, s.cfg.Schedule.Times)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule: %w", err)
		}
		description = fmt.Sprintf("daily at %v UTC", s.cfg.Schedule.Times)
	}

	e.store.Publish(status.StageScheduled,
		fmt.Sprintf("DCA schedule active: %g %s -> %s %s", s.cfg.Amount, s.cfg.FromToken, s.cfg.ToToken, description),
		status.Bool(true),
		map[string]any{"schedule_id": scheduleID, "description": description}, nil, true)

	return map[string]any{
		"schedule_id": scheduleID,
		"description": description,
	}, nil
}

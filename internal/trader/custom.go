package trader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-trade-agent-go/internal/solana"
	"solana-trade-agent-go/internal/status"
)

// Execution modes inferred by the custom strategy.
const (
	ModeImmediate       = "immediate"
	ModeScheduled       = "scheduled"
	ModePriceTriggered  = "price_triggered"
	ModeSocialTriggered = "social_triggered"
	ModeHybrid          = "hybrid"
)

const defaultSocialCheckInterval = 60 * time.Second

// CustomStrategy receives a free-form configuration and infers the
// execution mode from which sections are present, then dispatches to the
// matching combination of primitives.
type CustomStrategy struct {
	engine *Engine
	cfg    ExecutionConfig
}

func (s *CustomStrategy) Name() string { return StrategyCustom }

// InferMode decides the execution mode from the configured sections.
func (s *CustomStrategy) InferMode() string {
	hasSchedule := s.cfg.Schedule != nil
	hasPrice := s.cfg.PriceMonitoring != nil
	hasSocial := s.cfg.SocialTrigger != nil

	switch {
	case hasSchedule && (hasPrice || hasSocial):
		return ModeHybrid
	case hasSchedule:
		return ModeScheduled
	case hasPrice:
		return ModePriceTriggered
	case hasSocial:
		return ModeSocialTriggered
	default:
		return ModeImmediate
	}
}

func (s *CustomStrategy) Start(ctx context.Context) (map[string]any, error) {
	e := s.engine
	mode := s.InferMode()

	e.store.AppendLog(fmt.Sprintf("Custom strategy mode: %s", mode), status.LevelInfo)

	switch mode {
	case ModeScheduled:
		dca := &DCAStrategy{engine: e, cfg: s.cfg}
		details, err := dca.Start(ctx)
		if details != nil {
			details["mode"] = mode
		}
		return details, err

	case ModePriceTriggered:
		rng := &RangeStrategy{engine: e, cfg: s.cfg}
		details, err := rng.Start(ctx)
		if details != nil {
			details["mode"] = mode
		}
		return details, err

	case ModeSocialTriggered:
		go s.monitorSocial(e.rootCtx)
		return map[string]any{
			"mode":              mode,
			"monitoring_active": true,
			"username":          s.cfg.SocialTrigger.Username,
		}, nil

	case ModeHybrid:
		return s.startHybrid(ctx)

	default:
		intent := e.intentFromConfig(s.cfg.FromToken, s.cfg.ToToken, s.cfg.Amount)
		details, err := e.runCycle(ctx, intent)
		if details != nil {
			details["mode"] = mode
		}
		return details, err
	}
}

// startHybrid registers the configured schedule with a callback that
// additionally gates each fire on the price condition and/or a new
// matching social post. Unmet gates skip the fire, they do not fail it.
func (s *CustomStrategy) startHybrid(ctx context.Context) (map[string]any, error) {
	e := s.engine
	intent := e.intentFromConfig(s.cfg.FromToken, s.cfg.ToToken, s.cfg.Amount)

	var watcher *postWatcher
	if s.cfg.SocialTrigger != nil {
		watcher = newPostWatcher(e, s.cfg.SocialTrigger)
	}

	callback := func(cbCtx context.Context) (map[string]any, error) {
		if s.cfg.PriceMonitoring != nil {
			mon := s.cfg.PriceMonitoring
			check := e.CheckCondition(cbCtx, mon.Token, mon.TargetPrice, mon.Direction())
			if !check.Success {
				return nil, fmt.Errorf("price check failed: %s", check.Error)
			}
			if !check.ConditionMet {
				e.store.AppendLog(
					fmt.Sprintf("Scheduled fire skipped: %s at $%.4f, condition %s $%.4f not met",
						mon.Token, check.CurrentPrice, mon.Direction(), mon.TargetPrice),
					status.LevelInfo)
				return map[string]any{"skipped": true, "current_price": check.CurrentPrice}, nil
			}
		}
		if watcher != nil {
			post, triggered, err := watcher.check(cbCtx)
			if err != nil {
				return nil, fmt.Errorf("social check failed: %w", err)
			}
			if !triggered {
				e.store.AppendLog("Scheduled fire skipped: no new matching post", status.LevelInfo)
				return map[string]any{"skipped": true}, nil
			}
			e.store.AppendLog(fmt.Sprintf("Triggering post from @%s: %s", post.Author, post.Text), status.LevelInfo)
		}
		return e.runCycle(cbCtx, intent)
	}

	sched := s.cfg.Schedule
	var scheduleID string
	var err error
	if sched.IntervalMs > 0 {
		scheduleID = e.sched.ScheduleInterval(callback, sched.Interval(), sched.ExecuteImmediately)
	} else {
		scheduleID, err = e.sched.ScheduleDailyTimes(callback, sched.Times)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule: %w", err)
		}
	}

	e.store.Publish(status.StageScheduled, "Hybrid strategy active", status.Bool(true),
		map[string]any{"schedule_id": scheduleID, "mode": ModeHybrid}, nil, true)

	return map[string]any{"mode": ModeHybrid, "schedule_id": scheduleID}, nil
}

// monitorSocial polls the social feed and runs a cycle for each new
// matching post. Like the range loop it never stops itself.
func (s *CustomStrategy) monitorSocial(ctx context.Context) {
	e := s.engine
	trigger := s.cfg.SocialTrigger
	intent := e.intentFromConfig(s.cfg.FromToken, s.cfg.ToToken, s.cfg.Amount)

	interval := defaultSocialCheckInterval
	if trigger.CheckIntervalMs > 0 {
		interval = time.Duration(trigger.CheckIntervalMs) * time.Millisecond
	}

	e.store.Publish(status.StageMonitoring,
		fmt.Sprintf("Watching @%s for new posts", trigger.Username),
		nil, map[string]any{"username": trigger.Username, "keywords": trigger.Keywords}, nil, true)

	watcher := newPostWatcher(e, trigger)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Social monitoring stopped", zap.String("username", trigger.Username))
			return
		case <-ticker.C:
			post, triggered, err := watcher.check(ctx)
			if err != nil {
				e.store.AppendLog(fmt.Sprintf("Social check failed: %v", err), status.LevelWarn)
				continue
			}
			if !triggered {
				continue
			}

			e.store.Publish(status.StageExecuting,
				fmt.Sprintf("New post from @%s matched, executing trade", trigger.Username),
				nil, map[string]any{"post": post.Text}, nil, true)

			if _, err := e.runCycle(ctx, intent); err != nil {
				e.logger.Error("Social-triggered cycle failed", zap.Error(err))
			}
		}
	}
}

// postWatcher tracks which posts have been seen and reports new ones
// matching the configured keywords. The first check only establishes the
// baseline and never triggers.
type postWatcher struct {
	engine   *Engine
	trigger  *SocialTriggerConfig
	seen     map[string]bool
	baseline bool
}

func newPostWatcher(e *Engine, trigger *SocialTriggerConfig) *postWatcher {
	return &postWatcher{engine: e, trigger: trigger, seen: make(map[string]bool)}
}

func (w *postWatcher) check(ctx context.Context) (*solana.Post, bool, error) {
	posts, err := w.engine.social.RecentPosts(ctx, w.trigger.Username)
	if err != nil {
		return nil, false, err
	}

	if !w.baseline {
		for _, p := range posts {
			w.seen[p.ID] = true
		}
		w.baseline = true
		return nil, false, nil
	}

	for i := range posts {
		p := posts[i]
		if w.seen[p.ID] {
			continue
		}
		w.seen[p.ID] = true
		if w.matches(p.Text) {
			return &p, true, nil
		}
	}
	return nil, false, nil
}

// matches reports whether the text contains any configured keyword.
// Without keywords every new post triggers.
func (w *postWatcher) matches(text string) bool {
	if len(w.trigger.Keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range w.trigger.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

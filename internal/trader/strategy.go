package trader

import (
	"context"
	"fmt"
	"time"

	"solana-trade-agent-go/internal/status"
)

// Strategy kinds accepted by StartExecution.
const (
	StrategyDCA    = "dca"
	StrategyRange  = "range"
	StrategyCustom = "custom"
)

// Strategy is a composition of gate, condition evaluator and pipeline
// that the surrounding HTTP layer starts.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Start begins execution. Recurring strategies return once their
	// schedule or monitoring loop is active; one-shot strategies return
	// the cycle outcome.
	Start(ctx context.Context) (map[string]any, error)
}

// ScheduleConfig selects recurring execution: either a fixed interval or
// a set of daily UTC wall-clock times.
type ScheduleConfig struct {
	IntervalMs         int64    `json:"interval_ms,omitempty"`
	Times              []string `json:"times,omitempty"`
	ExecuteImmediately bool     `json:"execute_immediately,omitempty"`
}

// Interval converts the configured milliseconds to a duration.
func (c *ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// PriceMonitoringConfig selects price-triggered execution.
type PriceMonitoringConfig struct {
	Token       string  `json:"token"`
	TargetPrice float64 `json:"target_price"`
	Above       bool    `json:"above"`
	MaxWaitMs   int64   `json:"max_wait_ms,omitempty"`
}

// Direction converts the boolean predicate to a Direction.
func (c *PriceMonitoringConfig) Direction() Direction {
	if c.Above {
		return DirectionAbove
	}
	return DirectionBelow
}

// SocialTriggerConfig selects social-post-triggered execution.
type SocialTriggerConfig struct {
	Username        string   `json:"username"`
	Keywords        []string `json:"keywords,omitempty"`
	CheckIntervalMs int64    `json:"check_interval_ms,omitempty"`
}

// ExecutionConfig is the free-form configuration a strategy receives.
// Which optional sections are present determines the execution mode.
type ExecutionConfig struct {
	FromToken       string                 `json:"from_token"`
	ToToken         string                 `json:"to_token"`
	Amount          float64                `json:"amount"`
	Schedule        *ScheduleConfig        `json:"schedule,omitempty"`
	PriceMonitoring *PriceMonitoringConfig `json:"price_monitoring,omitempty"`
	SocialTrigger   *SocialTriggerConfig   `json:"social_trigger,omitempty"`
}

// Validate rejects malformed configurations before any execution starts.
func (c *ExecutionConfig) Validate() error {
	if c.FromToken == "" || c.ToToken == "" {
		return fmt.Errorf("from_token and to_token are required")
	}
	if c.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %g", c.Amount)
	}
	if c.Schedule != nil && c.Schedule.IntervalMs <= 0 && len(c.Schedule.Times) == 0 {
		return fmt.Errorf("schedule requires interval_ms or times")
	}
	if c.PriceMonitoring != nil && c.PriceMonitoring.Token == "" {
		return fmt.Errorf("price_monitoring requires a token to monitor")
	}
	if c.SocialTrigger != nil && c.SocialTrigger.Username == "" {
		return fmt.Errorf("social_trigger requires a username")
	}
	return nil
}

// StartExecution validates the configuration and starts the requested
// strategy. Configuration errors are returned immediately, never retried.
func (e *Engine) StartExecution(ctx context.Context, cfg ExecutionConfig, kind string) (map[string]any, error) {
	if err := cfg.Validate(); err != nil {
		e.store.Publish(status.StageError, fmt.Sprintf("Invalid configuration: %v", err),
			status.Bool(false), nil, nil, true)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var strategy Strategy
	switch kind {
	case StrategyDCA:
		strategy = &DCAStrategy{engine: e, cfg: cfg}
	case StrategyRange:
		strategy = &RangeStrategy{engine: e, cfg: cfg}
	case StrategyCustom, "":
		strategy = &CustomStrategy{engine: e, cfg: cfg}
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}

	e.store.Publish(status.StageInitializing,
		fmt.Sprintf("Starting %s strategy: %g %s -> %s", strategy.Name(), cfg.Amount, cfg.FromToken, cfg.ToToken),
		nil, map[string]any{"strategy": strategy.Name()}, nil, true)

	return strategy.Start(ctx)
}

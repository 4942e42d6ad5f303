package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"solana-trade-agent-go/internal/config"
	"solana-trade-agent-go/internal/scheduler"
	"solana-trade-agent-go/internal/status"
)

// Clients bundles the upstream collaborators injected into the engine.
type Clients struct {
	Wallets  WalletService
	Balances BalanceSource
	Tokens   TokenResolver
	Quotes   QuoteService
	Prices   PriceFeed
	Chain    ConfirmationSource
	Social   SocialFeed
}

// Engine composes the balance gate, price condition evaluator, trade
// execution pipeline and strategy drivers for one agent.
type Engine struct {
	AgentID   string
	StartTime time.Time

	logger *zap.Logger
	cfg    *config.Config
	store  *status.Store
	sched  *scheduler.Scheduler
	db     *gorm.DB

	// rootCtx bounds the lifetime of monitoring loops started from
	// short-lived request contexts.
	rootCtx context.Context

	wallets  WalletService
	balances BalanceSource
	tokens   TokenResolver
	quotes   QuoteService
	prices   PriceFeed
	chain    ConfirmationSource
	social   SocialFeed

	// Timing knobs. Production values come from the config package
	// defaults; tests shrink them.
	balancePollDelay  time.Duration
	conditionPollRate time.Duration
	retryBackoffUnit  time.Duration
}

// NewEngine creates a trading engine. db may be nil to disable the trade
// journal.
func NewEngine(logger *zap.Logger, cfg *config.Config, clients Clients, store *status.Store, sched *scheduler.Scheduler, db *gorm.DB) *Engine {
	return &Engine{
		AgentID:   uuid.NewString(),
		StartTime: time.Now(),

		logger:  logger.Named("engine"),
		cfg:     cfg,
		store:   store,
		sched:   sched,
		db:      db,
		rootCtx: context.Background(),

		wallets:  clients.Wallets,
		balances: clients.Balances,
		tokens:   clients.Tokens,
		quotes:   clients.Quotes,
		prices:   clients.Prices,
		chain:    clients.Chain,
		social:   clients.Social,

		balancePollDelay:  config.DefaultBalancePollDelay,
		conditionPollRate: config.DefaultConditionPollRate,
		retryBackoffUnit:  time.Second,
	}
}

// BindContext sets the context that bounds monitoring loops. Stopping
// the process cancels it; individual requests do not.
func (e *Engine) BindContext(ctx context.Context) { e.rootCtx = ctx }

// Status returns the latest status snapshot.
func (e *Engine) Status() status.Snapshot { return e.store.Current() }

// Logs returns the retained execution log.
func (e *Engine) Logs() []status.Entry { return e.store.Logs() }

// ClearLogs drops the retained execution log.
func (e *Engine) ClearLogs() { e.store.ClearLogs() }

// StopAllSchedules cancels every active schedule and returns the count.
func (e *Engine) StopAllSchedules() int { return e.sched.StopAll() }

// ScheduleInfo returns the state of all active schedules.
func (e *Engine) ScheduleInfo() []scheduler.Info { return e.sched.Info() }

// intentFromConfig applies the configured trading defaults to a cycle.
func (e *Engine) intentFromConfig(fromToken, toToken string, amount float64) TradeIntent {
	return TradeIntent{
		FromToken:   fromToken,
		ToToken:     toToken,
		Amount:      amount,
		SlippageBps: e.cfg.Trading.SlippageBps,
		PriorityFee: e.cfg.Trading.PriorityFee,
		MaxRetries:  e.cfg.Trading.MaxRetries,
		Confirm:     e.cfg.Trading.ConfirmTransaction,
	}
}

// runCycle is one full execution cycle: wallet → balance gate → pipeline.
// It is the callback shape the scheduler records.
func (e *Engine) runCycle(ctx context.Context, intent TradeIntent) (map[string]any, error) {
	e.store.Publish(status.StageWalletInit, "Getting or creating wallet...", nil,
		map[string]any{"owner": e.cfg.Wallet.OwnerAddress}, nil, true)

	wallet, err := e.wallets.GetOrCreateWallet(ctx, e.cfg.Wallet.OwnerAddress)
	if err != nil {
		e.store.Publish(status.StageError, fmt.Sprintf("Wallet setup failed: %v", err),
			status.Bool(false), nil, nil, true)
		return nil, fmt.Errorf("wallet setup failed: %w", err)
	}

	if _, err := e.AwaitMinimumBalance(ctx, wallet.Address, e.cfg.Trading.MinimumSOLReserve); err != nil {
		return nil, err
	}

	result := e.ExecuteTrade(ctx, intent, wallet)
	details := map[string]any{
		"from_token":        intent.FromToken,
		"to_token":          intent.ToToken,
		"amount":            intent.Amount,
		"signature":         result.Signature,
		"estimated_out":     result.EstimatedOut,
		"execution_time_ms": result.ExecutionTime.Milliseconds(),
	}
	if !result.Success {
		details["error_category"] = result.ErrorCategory
		return details, fmt.Errorf("trade failed (%s): %s", result.ErrorCategory, result.Error)
	}
	return details, nil
}

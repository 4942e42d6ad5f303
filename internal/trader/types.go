package trader

import (
	"context"
	"time"

	"solana-trade-agent-go/internal/solana"
)

// Error categories attached to failed trade results.
const (
	ErrCategoryInsufficientFunds = "insufficient_funds"
	ErrCategorySlippageExceeded  = "slippage_exceeded"
	ErrCategoryTimeout           = "timeout"
	ErrCategoryNoRoute           = "no_route"
	ErrCategoryUnknown           = "unknown"
)

// Direction is the price-condition predicate direction.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// TradeIntent is a validated swap request, immutable per execution cycle.
type TradeIntent struct {
	FromToken   string  `json:"from_token"`
	ToToken     string  `json:"to_token"`
	Amount      float64 `json:"amount"`
	SlippageBps int     `json:"slippage_bps"`
	PriorityFee string  `json:"priority_fee"`
	MaxRetries  int     `json:"max_retries"`
	Confirm     bool    `json:"confirm"`
}

// TransferIntent is a validated value-transfer request.
type TransferIntent struct {
	ToAddress string  `json:"to_address"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Confirm   bool    `json:"confirm"`
}

// TradeResult is produced once per execution cycle and never mutated.
type TradeResult struct {
	Success        bool          `json:"success"`
	Signature      string        `json:"signature,omitempty"`
	EstimatedOut   float64       `json:"estimated_out,omitempty"`
	ActualOut      float64       `json:"actual_out,omitempty"`
	PriceImpactPct float64       `json:"price_impact_pct,omitempty"`
	ErrorCategory  string        `json:"error_category,omitempty"`
	Error          string        `json:"error,omitempty"`
	ExecutionTime  time.Duration `json:"execution_time_ms"`
}

// ConditionResult is the outcome of a single price-condition evaluation.
type ConditionResult struct {
	Success      bool    `json:"success"`
	CurrentPrice float64 `json:"current_price,omitempty"`
	TargetPrice  float64 `json:"target_price"`
	ConditionMet bool    `json:"condition_met"`
	TimedOut     bool    `json:"timed_out,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// WalletService is the remote wallet/signer collaborator.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, ownerAddress string) (solana.Wallet, error)
	SignAndBroadcast(ctx context.Context, walletID, serializedTxn string) (string, error)
	BuildTransferTransaction(ctx context.Context, build solana.TransferBuildRequest) (string, error)
}

// BalanceSource fetches wallet holdings.
type BalanceSource interface {
	GetHoldings(ctx context.Context, address string) ([]solana.Holding, error)
}

// TokenResolver maps token symbols to on-chain identities.
type TokenResolver interface {
	Resolve(ctx context.Context, symbol string) (solana.Token, error)
}

// QuoteService computes swap quotes and assembles swap transactions.
type QuoteService interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, rawAmount uint64, slippageBps int) (*solana.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *solana.Quote, payer string, priorityFee string) (string, error)
}

// PriceFeed returns the current USD price for a token.
type PriceFeed interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// ConfirmationSource observes on-chain state.
type ConfirmationSource interface {
	AwaitConfirmation(ctx context.Context, signature string) error
	TokenAccountExists(ctx context.Context, owner, mint string) (bool, error)
}

// SocialFeed supplies recent posts for the social trigger.
type SocialFeed interface {
	RecentPosts(ctx context.Context, username string) ([]solana.Post, error)
}

// ensure the solana clients satisfy the collaborator interfaces
var (
	_ WalletService      = (*solana.WalletClient)(nil)
	_ BalanceSource      = (*solana.BalanceClient)(nil)
	_ TokenResolver      = (*solana.TokenDirectory)(nil)
	_ QuoteService       = (*solana.JupiterClient)(nil)
	_ PriceFeed          = (*solana.PriceClient)(nil)
	_ ConfirmationSource = (*solana.RPCClient)(nil)
	_ SocialFeed         = (*solana.SocialClient)(nil)
)

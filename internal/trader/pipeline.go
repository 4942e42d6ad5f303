package trader

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"solana-trade-agent-go/internal/models"
	"solana-trade-agent-go/internal/solana"
	"solana-trade-agent-go/internal/status"
)

// toRawAmount converts a UI amount to the raw integer representation.
func toRawAmount(amount float64, decimals int) uint64 {
	scale := math.Pow(10, float64(decimals))
	return uint64(math.Round(amount * scale))
}

// ExecuteTrade runs the full swap pipeline for one intent: token
// resolution, precondition checks, quote, transaction build, remote
// signing and broadcast, and best-effort confirmation. Every step is
// observable through the status store. The result is recorded in the
// trade journal regardless of outcome.
func (e *Engine) ExecuteTrade(ctx context.Context, intent TradeIntent, wallet solana.Wallet) TradeResult {
	start := time.Now()
	result := e.executeSwap(ctx, intent, wallet)
	result.ExecutionTime = time.Since(start)

	e.recordTrade(intent, result)

	if result.Success {
		e.store.Publish(status.StageCompleted,
			fmt.Sprintf("Swap complete: %g %s -> %s (%s)", intent.Amount, intent.FromToken, intent.ToToken, result.Signature),
			status.Bool(true),
			map[string]any{
				"signature":     result.Signature,
				"estimated_out": result.EstimatedOut,
			}, nil, true)
	}
	return result
}

func (e *Engine) executeSwap(ctx context.Context, intent TradeIntent, wallet solana.Wallet) TradeResult {
	l := e.logger.With(
		zap.String("from_token", intent.FromToken),
		zap.String("to_token", intent.ToToken),
		zap.Float64("amount", intent.Amount),
	)

	fail := func(err error, category string) TradeResult {
		if category == "" {
			category = classifyError(err)
		}
		l.Error("Trade failed", zap.String("category", category), zap.Error(err))
		e.store.Publish(status.StageError, err.Error(), status.Bool(false),
			map[string]any{"error_category": category}, nil, true)
		return TradeResult{Success: false, ErrorCategory: category, Error: err.Error()}
	}

	// 1. Resolve token identities through the cached directory.
	e.store.Publish(status.StageExecuting,
		fmt.Sprintf("Resolving tokens %s -> %s", intent.FromToken, intent.ToToken), nil, nil, nil, true)

	fromToken, err := e.tokens.Resolve(ctx, intent.FromToken)
	if err != nil {
		return fail(fmt.Errorf("cannot resolve token %s: %w", intent.FromToken, err), "")
	}
	toToken, err := e.tokens.Resolve(ctx, intent.ToToken)
	if err != nil {
		return fail(fmt.Errorf("cannot resolve token %s: %w", intent.ToToken, err), "")
	}

	// 2. Precondition: the wallet must already hold the input amount.
	// This is a fail-fast check, not a race to spin on.
	holdings, err := e.balances.GetHoldings(ctx, wallet.Address)
	if err != nil {
		return fail(fmt.Errorf("cannot fetch holdings: %w", err), "")
	}
	fromHolding := solana.FindHolding(holdings, intent.FromToken)
	if fromHolding.UIAmount < intent.Amount {
		return fail(fmt.Errorf("insufficient %s balance: have %.6f, need %.6f",
			intent.FromToken, fromHolding.UIAmount, intent.Amount), ErrCategoryInsufficientFunds)
	}

	// 3. A missing destination account is informational only; the swap
	// transaction creates it.
	if exists, err := e.chain.TokenAccountExists(ctx, wallet.Address, toToken.Mint); err == nil && !exists {
		l.Info("No token account for destination token, swap will create it",
			zap.String("mint", toToken.Mint))
		e.store.AppendLog(
			fmt.Sprintf("No %s token account yet, it will be created by the swap", intent.ToToken),
			status.LevelInfo)
	}

	// 4. Swapping away native SOL must leave the fee reserve untouched.
	if fromToken.Mint == solana.NativeMint {
		reserve := e.cfg.Trading.MinimumSOLReserve
		if fromHolding.UIAmount-intent.Amount < reserve {
			return fail(fmt.Errorf("insufficient SOL: swapping %.6f leaves %.6f, below the %.6f reserve",
				intent.Amount, fromHolding.UIAmount-intent.Amount, reserve), ErrCategoryInsufficientFunds)
		}
	}

	// 5. Quote, with bounded linear backoff.
	e.store.Publish(status.StageExecuting,
		fmt.Sprintf("Requesting quote for %g %s -> %s", intent.Amount, intent.FromToken, intent.ToToken),
		nil, map[string]any{"slippage_bps": intent.SlippageBps}, nil, true)

	rawAmount := toRawAmount(intent.Amount, fromToken.Decimals)
	quote, err := retryWithBackoff(ctx, l, "quote", intent.MaxRetries, e.retryBackoffUnit, func() (*solana.Quote, error) {
		return e.quotes.GetQuote(ctx, fromToken.Mint, toToken.Mint, rawAmount, intent.SlippageBps)
	})
	if err != nil {
		return fail(err, "")
	}
	estimatedOut := quote.OutAmountFloat(toToken.Decimals)

	// 6. Swap transaction, same retry policy.
	e.store.Publish(status.StageExecuting, "Building swap transaction...", nil,
		map[string]any{"estimated_out": estimatedOut}, nil, true)

	serializedTxn, err := retryWithBackoff(ctx, l, "swap transaction", intent.MaxRetries, e.retryBackoffUnit, func() (string, error) {
		return e.quotes.BuildSwapTransaction(ctx, quote, wallet.Address, intent.PriorityFee)
	})
	if err != nil {
		return fail(err, "")
	}

	// 7. Deserialize to validate, then hand off for remote signing.
	if _, err := base64.StdEncoding.DecodeString(serializedTxn); err != nil {
		return fail(fmt.Errorf("swap transaction is not valid base64: %w", err), "")
	}
	e.store.Publish(status.StageExecuting, "Signing and broadcasting transaction...", nil, nil, nil, true)

	signature, err := e.wallets.SignAndBroadcast(ctx, wallet.WalletID, serializedTxn)
	if err != nil {
		return fail(fmt.Errorf("sign and broadcast failed: %w", err), "")
	}
	l.Info("Transaction broadcast", zap.String("signature", signature))

	result := TradeResult{
		Success:        true,
		Signature:      signature,
		EstimatedOut:   estimatedOut,
		PriceImpactPct: quote.PriceImpact(),
	}

	// 8. Confirmation is best-effort observability: the broadcast already
	// succeeded and is the authoritative outcome.
	if intent.Confirm {
		if err := e.chain.AwaitConfirmation(ctx, signature); err != nil {
			l.Warn("Confirmation uncertain", zap.String("signature", signature), zap.Error(err))
			e.store.AppendLog(
				fmt.Sprintf("Confirmation uncertain for %s: %v", signature, err),
				status.LevelWarn)
		} else {
			result.ActualOut = estimatedOut
		}
	}

	return result
}

// recordTrade appends the cycle outcome to the trade journal.
func (e *Engine) recordTrade(intent TradeIntent, result TradeResult) {
	if e.db == nil {
		return
	}
	record := models.TradeRecord{
		AgentID:       e.AgentID,
		FromToken:     intent.FromToken,
		ToToken:       intent.ToToken,
		Amount:        intent.Amount,
		Success:       result.Success,
		Signature:     result.Signature,
		EstimatedOut:  result.EstimatedOut,
		ActualOut:     result.ActualOut,
		PriceImpact:   result.PriceImpactPct,
		ErrorCategory: result.ErrorCategory,
		DurationMs:    result.ExecutionTime.Milliseconds(),
		Timestamp:     time.Now().Unix(),
	}
	if err := e.db.Create(&record).Error; err != nil {
		// The journal is observability, not state; the cycle outcome stands.
		e.logger.Error("Failed to save trade record", zap.Error(err))
	}
}

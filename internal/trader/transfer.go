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

// ExecuteTransfer runs the value-transfer pipeline: a direct native
// transfer for SOL, or resolve mint, derive both parties' associated
// accounts and conditionally create the recipient's, for any other
// token. Confirmation follows the same best-effort semantics as swaps.
func (e *Engine) ExecuteTransfer(ctx context.Context, intent TransferIntent, wallet solana.Wallet) TradeResult {
	start := time.Now()
	l := e.logger.With(
		zap.String("token", intent.Token),
		zap.String("to_address", intent.ToAddress),
		zap.Float64("amount", intent.Amount),
	)

	fail := func(err error, category string) TradeResult {
		if category == "" {
			category = classifyError(err)
		}
		l.Error("Transfer failed", zap.String("category", category), zap.Error(err))
		e.store.Publish(status.StageError, err.Error(), status.Bool(false),
			map[string]any{"error_category": category}, nil, true)
		return TradeResult{Success: false, ErrorCategory: category, Error: err.Error(), ExecutionTime: time.Since(start)}
	}

	e.store.Publish(status.StageExecuting,
		fmt.Sprintf("Transferring %g %s to %s", intent.Amount, intent.Token, intent.ToAddress),
		nil, nil, nil, true)

	holdings, err := e.balances.GetHoldings(ctx, wallet.Address)
	if err != nil {
		return fail(fmt.Errorf("cannot fetch holdings: %w", err), "")
	}

	build := solana.TransferBuildRequest{
		FromAddress: wallet.Address,
		ToAddress:   intent.ToAddress,
	}

	if strings.EqualFold(intent.Token, solana.NativeSymbol) {
		balance := solana.FindHolding(holdings, solana.NativeSymbol).UIAmount
		reserve := e.cfg.Trading.MinimumSOLReserve
		if balance-intent.Amount < reserve {
			return fail(fmt.Errorf("insufficient SOL: sending %.6f leaves %.6f, below the %.6f reserve",
				intent.Amount, balance-intent.Amount, reserve), ErrCategoryInsufficientFunds)
		}
		build.RawAmount = toRawAmount(intent.Amount, 9)
	} else {
		token, err := e.tokens.Resolve(ctx, intent.Token)
		if err != nil {
			return fail(fmt.Errorf("cannot resolve token %s: %w", intent.Token, err), "")
		}
		holding := solana.FindHolding(holdings, intent.Token)
		if holding.UIAmount < intent.Amount {
			return fail(fmt.Errorf("insufficient %s balance: have %.6f, need %.6f",
				intent.Token, holding.UIAmount, intent.Amount), ErrCategoryInsufficientFunds)
		}

		build.Mint = token.Mint
		build.RawAmount = toRawAmount(intent.Amount, token.Decimals)

		// The recipient may have no associated account yet; the built
		// transaction then includes a creation instruction.
		exists, err := e.chain.TokenAccountExists(ctx, intent.ToAddress, token.Mint)
		if err != nil {
			l.Warn("Could not check recipient token account", zap.Error(err))
		}
		build.CreateRecipientAccount = err == nil && !exists
	}

	serializedTxn, err := e.wallets.BuildTransferTransaction(ctx, build)
	if err != nil {
		return fail(fmt.Errorf("transfer build failed: %w", err), "")
	}

	signature, err := e.wallets.SignAndBroadcast(ctx, wallet.WalletID, serializedTxn)
	if err != nil {
		return fail(fmt.Errorf("sign and broadcast failed: %w", err), "")
	}
	l.Info("Transfer broadcast", zap.String("signature", signature))

	if intent.Confirm {
		if err := e.chain.AwaitConfirmation(ctx, signature); err != nil {
			l.Warn("Confirmation uncertain", zap.String("signature", signature), zap.Error(err))
			e.store.AppendLog(
				fmt.Sprintf("Confirmation uncertain for %s: %v", signature, err),
				status.LevelWarn)
		}
	}

	e.store.Publish(status.StageCompleted,
		fmt.Sprintf("Transfer complete: %g %s to %s (%s)", intent.Amount, intent.Token, intent.ToAddress, signature),
		status.Bool(true),
		map[string]any{"signature": signature}, nil, true)

	return TradeResult{Success: true, Signature: signature, ExecutionTime: time.Since(start)}
}

package trader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-trade-agent-go/internal/models"
	"solana-trade-agent-go/internal/solana"
)

func swapIntent(amount float64) TradeIntent {
	return TradeIntent{
		FromToken:   "SOL",
		ToToken:     "USDC",
		Amount:      amount,
		SlippageBps: 150,
		PriorityFee: "auto",
		MaxRetries:  3,
		Confirm:     true,
	}
}

func expectResolution(mocks *testMocks) {
	mocks.tokens.On("Resolve", "SOL").Return(solToken(), nil)
	mocks.tokens.On("Resolve", "USDC").Return(usdcToken(), nil)
}

func TestExecuteTradeSuccess(t *testing.T) {
	engine, mocks, _ := setupEngine(t)

	expectResolution(mocks)
	mocks.balances.On("GetHoldings", testAddress).Return(holdings(1.0, 0), nil)
	mocks.chain.On("TokenAccountExists", testAddress, testUSDCMint).Return(true, nil)

	quote := &solana.Quote{OutAmount: "15000000", PriceImpactPct: "0.01", SlippageBps: 150}
	mocks.quotes.On("GetQuote", solana.NativeMint, testUSDCMint, uint64(100000000), 150).Return(quote, nil)
	mocks.quotes.On("BuildSwapTransaction", quote, testAddress, "auto").Return("AQIDBA==", nil)
	mocks.wallets.On("SignAndBroadcast", "wallet-1", "AQIDBA==").Return("sig123", nil)
	mocks.chain.On("AwaitConfirmation", "sig123").Return(nil)

	result := engine.ExecuteTrade(context.Background(), swapIntent(0.1), testWallet)

	assert.True(t, result.Success)
	assert.Equal(t, "sig123", result.Signature)
	assert.Equal(t, 15.0, result.EstimatedOut)
	assert.Equal(t, 15.0, result.ActualOut)
	assert.Equal(t, 0.01, result.PriceImpactPct)
	assert.Empty(t, result.ErrorCategory)
	mocks.quotes.AssertExpectations(t)
	mocks.wallets.AssertExpectations(t)
}

func TestExecuteTradeInsufficientFundsFailsFast(t *testing.T) {
	engine, mocks, _ := setupEngine(t)

	expectResolution(mocks)
	mocks.balances.On("GetHoldings", testAddress).Return(holdings(0, 0), nil)

	result := engine.ExecuteTrade(context.Background(), swapIntent(1.0), testWallet)

	assert.False(t, result.Success)
	assert.Equal(t, ErrCategoryInsufficientFunds, result.ErrorCategory)
	// No retry attempts ever reach the quote service.
	mocks.quotes.AssertNotCalled(t, "GetQuote")
	mocks.wallets.AssertNotCalled(t, "SignAndBroadcast")
}

func TestExecuteTradeEnforcesNativeReserve(t *testing.T) {
	engine, mocks, _ := setupEngine(t)

	expectResolution(mocks)
	// Enough to cover the amount but not the fee reserve on top.
	mocks.balances.On("GetHoldings", testAddress).Return(holdings(1.0, 0), nil)
	mocks.chain.On("TokenAccountExists", testAddress, testUSDCMint).Return(true, nil)

	result := engine.ExecuteTrade(context.Background(), swapIntent(0.999), testWallet)

	assert.False(t, result.Success)
	assert.Equal(t, ErrCategoryInsufficientFunds, result.ErrorCategory)
	assert.Contains(t, result.Error, "reserve")
	mocks.quotes.AssertNotCalled(t, "GetQuote")
}

func TestExecuteTradeRetriesQuote(t *testing.T) {
	engine, mocks, _ := setupEngine(t)

	expectResolution(mocks)
	mocks.balances.On("GetHoldings", testAddress).Return(holdings(1.0, 0), nil)
	mocks.chain.On("TokenAccountExists", testAddress, testUSDCMint).Return(true, nil)

	quote := &solana.Quote{OutAmount: "15000000"}
	mocks.quotes.On("GetQuote", solana.NativeMint, testUSDCMint, uint64(100000000), 150).
		Return((*solana.Quote)(nil), errors.New("service unavailable")).Twice()
	mocks.quotes.On("GetQuote", solana.NativeMint, testUSDCMint, uint64(100000000), 150).
		Return(quote, nil).Once()
	mocks.quotes.On("BuildSwapTransaction", quote, testAddress, "auto").Return("AQIDBA==", nil)
	mocks.wallets.On("SignAndBroadcast", "wallet-1", "AQIDBA==").Return("sig123", nil)
	mocks.chain.On("AwaitConfirmation", "sig123").Return(nil)

	result := engine.ExecuteTrade(context.Background(), swapIntent(0.1), testWallet)

	assert.True(t, result.Success)
	mocks.quotes.AssertNumberOfCalls(t, "GetQuote", 3)
}

func TestExecuteTradeNoRouteExhaustsRetries(t *testing.T) {
	engine, mocks, _ := setupEngine(t)

	expectResolution(mocks)
	mocks.balances.On("GetHoldings", testAddress).Return(holdings(1.0, 0), nil)
	mocks.chain.On("TokenAccountExists", testAddress, testUSDCMint).Return(true, nil)

	mocks.quotes.On("GetQuote", solana.NativeMint, testUSDCMint, uint64(100000000), 150).
		Return((*solana.Quote)(nil), errors.New("no route found for swap"))

	result := engine.ExecuteTrade(context.Background(), swapIntent(0.1), testWallet)

	assert.False(t, result.Success)
	assert.Equal(t, ErrCategoryNoRoute, result.ErrorCategory)
	mocks.quotes.AssertNumberOfCalls(t, "GetQuote", 3)
	mocks.wallets.AssertNotCalled(t, "SignAndBroadcast")
}

func TestExecuteTradeConfirmationFailureIsNonFatal(t *testing.T) {
	engine, mocks, store := setupEngine(t)

	expectResolution(mocks)
	mocks.balances.On("GetHoldings", testAddress).Return(holdings(1.0, 0), nil)
	mocks.chain.On("TokenAccountExists", testAddress, testUSDCMint).Return(true, nil)

	quote := &solana.Quote{OutAmount: "15000000"}
	mocks.quotes.On("GetQuote", solana.NativeMint, testUSDCMint, uint64(100000000), 150).Return(quote, nil)
	mocks.quotes.On("BuildSwapTransaction", quote, testAddress, "auto").Return("AQIDBA==", nil)
	mocks.wallets.On("SignAndBroadcast", "wallet-1", "AQIDBA==").Return("sig123", nil)
	mocks.chain.On("AwaitConfirmation", "sig123").Return(errors.New("confirmation timed out"))

	result := engine.ExecuteTrade(context.Background(), swapIntent(0.1), testWallet)

	// Broadcast succeeded, so the trade did; confirmation is best-effort.
	assert.True(t, result.Success)
	assert.Equal(t, "sig123", result.Signature)
	assert.Zero(t, result.ActualOut)

	uncertain := false
	for _, entry := range store.Logs() {
		if entry.Level == "warn" {
			uncertain = true
		}
	}
	assert.True(t, uncertain, "expected a confirmation-uncertain log entry")
}

func TestExecuteTradeUnresolvableToken(t *testing.T) {
	engine, mocks, _ := setupEngine(t)

	mocks.tokens.On("Resolve", "SOL").Return(solana.Token{}, errors.New("token \"SOL\" not found in directory"))

	result := engine.ExecuteTrade(context.Background(), swapIntent(0.1), testWallet)

	assert.False(t, result.Success)
	mocks.balances.AssertNotCalled(t, "GetHoldings")
}

func TestExecuteTradeWritesJournal(t *testing.T) {
	engine, mocks, _ := setupEngine(t)
	engine.db = setupJournal(t)

	expectResolution(mocks)
	mocks.balances.On("GetHoldings", testAddress).Return(holdings(0, 0), nil)

	engine.ExecuteTrade(context.Background(), swapIntent(1.0), testWallet)

	var records []models.TradeRecord
	assert.NoError(t, engine.db.Find(&records).Error)
	assert.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, ErrCategoryInsufficientFunds, records[0].ErrorCategory)
	assert.Equal(t, engine.AgentID, records[0].AgentID)
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err      string
		category string
	}{
		{"insufficient funds for transaction", ErrCategoryInsufficientFunds},
		{"not enough SOL to cover fees", ErrCategoryInsufficientFunds},
		{"slippage tolerance exceeded", ErrCategorySlippageExceeded},
		{"request timed out", ErrCategoryTimeout},
		{"context deadline exceeded", ErrCategoryTimeout},
		{"no route found for swap", ErrCategoryNoRoute},
		{"something else entirely", ErrCategoryUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.category, classifyError(errors.New(c.err)), c.err)
	}
	assert.Empty(t, classifyError(nil))
}

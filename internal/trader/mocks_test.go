package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"solana-trade-agent-go/internal/config"
	"solana-trade-agent-go/internal/models"
	"solana-trade-agent-go/internal/scheduler"
	"solana-trade-agent-go/internal/solana"
	"solana-trade-agent-go/internal/status"
)

const (
	testUSDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testOwner    = "OwnerAddress1111111111111111111111111111111"
	testAddress  = "AgentWallet1111111111111111111111111111111"
)

var testWallet = solana.Wallet{WalletID: "wallet-1", Address: testAddress}

// MockWalletService is a mock implementation of WalletService.
type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetOrCreateWallet(ctx context.Context, ownerAddress string) (solana.Wallet, error) {
	args := m.Called(ownerAddress)
	return args.Get(0).(solana.Wallet), args.Error(1)
}

func (m *MockWalletService) SignAndBroadcast(ctx context.Context, walletID, serializedTxn string) (string, error) {
	args := m.Called(walletID, serializedTxn)
	return args.String(0), args.Error(1)
}

func (m *MockWalletService) BuildTransferTransaction(ctx context.Context, build solana.TransferBuildRequest) (string, error) {
	args := m.Called(build)
	return args.String(0), args.Error(1)
}

// MockBalanceSource is a mock implementation of BalanceSource.
type MockBalanceSource struct {
	mock.Mock
}

func (m *MockBalanceSource) GetHoldings(ctx context.Context, address string) ([]solana.Holding, error) {
	args := m.Called(address)
	return args.Get(0).([]solana.Holding), args.Error(1)
}

// MockTokenResolver is a mock implementation of TokenResolver.
type MockTokenResolver struct {
	mock.Mock
}

func (m *MockTokenResolver) Resolve(ctx context.Context, symbol string) (solana.Token, error) {
	args := m.Called(symbol)
	return args.Get(0).(solana.Token), args.Error(1)
}

// MockQuoteService is a mock implementation of QuoteService.
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) GetQuote(ctx context.Context, inputMint, outputMint string, rawAmount uint64, slippageBps int) (*solana.Quote, error) {
	args := m.Called(inputMint, outputMint, rawAmount, slippageBps)
	return args.Get(0).(*solana.Quote), args.Error(1)
}

func (m *MockQuoteService) BuildSwapTransaction(ctx context.Context, quote *solana.Quote, payer string, priorityFee string) (string, error) {
	args := m.Called(quote, payer, priorityFee)
	return args.String(0), args.Error(1)
}

// MockPriceFeed is a mock implementation of PriceFeed.
type MockPriceFeed struct {
	mock.Mock
}

func (m *MockPriceFeed) GetPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(symbol)
	return args.Get(0).(float64), args.Error(1)
}

// MockConfirmationSource is a mock implementation of ConfirmationSource.
type MockConfirmationSource struct {
	mock.Mock
}

func (m *MockConfirmationSource) AwaitConfirmation(ctx context.Context, signature string) error {
	args := m.Called(signature)
	return args.Error(0)
}

func (m *MockConfirmationSource) TokenAccountExists(ctx context.Context, owner, mint string) (bool, error) {
	args := m.Called(owner, mint)
	return args.Bool(0), args.Error(1)
}

// MockSocialFeed is a mock implementation of SocialFeed.
type MockSocialFeed struct {
	mock.Mock
}

func (m *MockSocialFeed) RecentPosts(ctx context.Context, username string) ([]solana.Post, error) {
	args := m.Called(username)
	return args.Get(0).([]solana.Post), args.Error(1)
}

type testMocks struct {
	wallets  *MockWalletService
	balances *MockBalanceSource
	tokens   *MockTokenResolver
	quotes   *MockQuoteService
	prices   *MockPriceFeed
	chain    *MockConfirmationSource
	social   *MockSocialFeed
}

// setupEngine creates an engine wired to fresh mocks, a nop logger and
// shrunken timing knobs so wait loops run in milliseconds.
func setupEngine(t *testing.T) (*Engine, *testMocks, *status.Store) {
	t.Helper()

	mocks := &testMocks{
		wallets:  new(MockWalletService),
		balances: new(MockBalanceSource),
		tokens:   new(MockTokenResolver),
		quotes:   new(MockQuoteService),
		prices:   new(MockPriceFeed),
		chain:    new(MockConfirmationSource),
		social:   new(MockSocialFeed),
	}

	cfg := &config.Config{
		Wallet: config.Wallet{OwnerAddress: testOwner},
		Trading: config.Trading{
			SlippageBps:        config.DefaultSlippageBps,
			MaxRetries:         config.DefaultMaxRetries,
			MinimumSOLReserve:  config.DefaultMinimumSOLReserve,
			ConfirmTransaction: true,
			PriorityFee:        "auto",
		},
	}

	store := status.NewStore(zap.NewNop())
	sched := scheduler.New(zap.NewNop(), store)
	t.Cleanup(func() { sched.StopAll() })

	engine := NewEngine(zap.NewNop(), cfg, Clients{
		Wallets:  mocks.wallets,
		Balances: mocks.balances,
		Tokens:   mocks.tokens,
		Quotes:   mocks.quotes,
		Prices:   mocks.prices,
		Chain:    mocks.chain,
		Social:   mocks.social,
	}, store, sched, nil)

	engine.balancePollDelay = time.Millisecond
	engine.conditionPollRate = 5 * time.Millisecond
	engine.retryBackoffUnit = time.Millisecond

	return engine, mocks, store
}

// setupJournal opens a fresh in-memory trade journal.
func setupJournal(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.TradeRecord{}))
	return db
}

func solToken() solana.Token {
	return solana.Token{Symbol: "SOL", Name: "Solana", Mint: solana.NativeMint, Decimals: 9}
}

func usdcToken() solana.Token {
	return solana.Token{Symbol: "USDC", Name: "USD Coin", Mint: testUSDCMint, Decimals: 6}
}

func holdings(sol, usdc float64) []solana.Holding {
	return []solana.Holding{
		{Symbol: "SOL", Mint: solana.NativeMint, UIAmount: sol, Decimals: 9},
		{Symbol: "USDC", Mint: testUSDCMint, UIAmount: usdc, Decimals: 6},
	}
}

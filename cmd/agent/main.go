package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-trade-agent-go/internal/config"
	"solana-trade-agent-go/internal/database"
	"solana-trade-agent-go/internal/logger"
	"solana-trade-agent-go/internal/scheduler"
	"solana-trade-agent-go/internal/solana"
	"solana-trade-agent-go/internal/status"
	"solana-trade-agent-go/internal/trader"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize the trade journal
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open trade journal", zap.Error(err))
	}
	log.Info("Trade journal opened and schema migrated.")

	// Upstream clients
	sol := &cfg.Solana
	clients := trader.Clients{
		Wallets:  solana.NewWalletClient(sol.WalletAPIURL, sol.WalletAPIKey, sol.RateLimit, sol.RateLimitBurst, log),
		Balances: solana.NewBalanceClient(sol.WalletAPIURL, sol.RateLimit, sol.RateLimitBurst, log),
		Tokens:   solana.NewTokenDirectory(sol.WalletAPIURL, sol.RateLimit, sol.RateLimitBurst, log),
		Quotes:   solana.NewJupiterClient(sol.JupiterAPIURL, sol.RateLimit, sol.RateLimitBurst, log),
		Prices:   solana.NewPriceClient(sol.PriceAPIURL, sol.PriceAPIKey, sol.RateLimit, sol.RateLimitBurst, log),
		Chain:    solana.NewRPCClient(sol.RPCURL, sol.RateLimit, sol.RateLimitBurst, log),
		Social:   solana.NewSocialClient(sol.SocialAPIURL, sol.RateLimit, sol.RateLimitBurst, log),
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Status store, scheduler and engine
	store := status.NewStore(log)
	sched := scheduler.New(log, store)
	engine := trader.NewEngine(log, &cfg, clients, store, sched, db)
	engine.BindContext(ctx)

	api := trader.NewAPIServer(engine, cfg.Server.Port, log)
	api.Start()
	log.Info("Agent ready", zap.String("agent_id", engine.AgentID), zap.Int("port", cfg.Server.Port))

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	sched.StopAll()
	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("Timed out waiting for in-flight executions")
	}

	log.Info("Agent has been shut down.")
}

package solana

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Wallet is a remotely managed signing wallet.
type Wallet struct {
	WalletID string `json:"walletId"`
	Address  string `json:"address"`
}

// WalletClient talks to the remote wallet/signer service. Private keys
// never enter this process; signing and broadcasting happen upstream.
type WalletClient struct {
	core   *restCore
	apiKey string
}

// NewWalletClient creates a client for the wallet service.
func NewWalletClient(baseURL, apiKey string, rateLimit float64, burst int, logger *zap.Logger) *WalletClient {
	return &WalletClient{
		core:   newRestCore(baseURL, rateLimit, burst, logger.Named("wallet")),
		apiKey: apiKey,
	}
}

// GetOrCreateWallet returns the wallet for an owner, creating it upstream
// on first use.
func (c *WalletClient) GetOrCreateWallet(ctx context.Context, ownerAddress string) (Wallet, error) {
	var wallet Wallet
	req := c.core.client.R().
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(map[string]string{"owner": ownerAddress}).
		SetResult(&wallet)

	if _, err := c.core.doRequest(ctx, "POST", "/wallets", req); err != nil {
		return Wallet{}, fmt.Errorf("failed to get or create wallet: %w", err)
	}

	c.core.logger.Info("Wallet ready", zap.String("address", wallet.Address))
	return wallet, nil
}

// SignAndBroadcast hands a serialized transaction to the remote signer
// and returns the resulting transaction signature.
func (c *WalletClient) SignAndBroadcast(ctx context.Context, walletID, serializedTxn string) (string, error) {
	var result struct {
		Signature string `json:"transactionId"`
	}
	req := c.core.client.R().
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(map[string]string{
			"walletId":    walletID,
			"transaction": serializedTxn,
		}).
		SetResult(&result)

	if _, err := c.core.doRequest(ctx, "POST", "/transactions", req); err != nil {
		return "", fmt.Errorf("failed to sign and broadcast transaction: %w", err)
	}

	if result.Signature == "" {
		return "", fmt.Errorf("signer returned no transaction signature")
	}
	return result.Signature, nil
}

// TransferBuildRequest describes a value transfer to assemble upstream.
// Mint is empty for native SOL transfers. CreateRecipientAccount asks for
// an associated-account creation instruction ahead of the transfer.
type TransferBuildRequest struct {
	FromAddress            string `json:"fromAddress"`
	ToAddress              string `json:"toAddress"`
	Mint                   string `json:"mint,omitempty"`
	RawAmount              uint64 `json:"rawAmount"`
	CreateRecipientAccount bool   `json:"createRecipientAccount,omitempty"`
}

// BuildTransferTransaction asks the wallet service to assemble a signable
// transfer transaction, base64-encoded.
func (c *WalletClient) BuildTransferTransaction(ctx context.Context, build TransferBuildRequest) (string, error) {
	var result struct {
		Transaction string `json:"transaction"`
	}
	req := c.core.client.R().
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(build).
		SetResult(&result)

	if _, err := c.core.doRequest(ctx, "POST", "/transactions/transfer", req); err != nil {
		return "", fmt.Errorf("failed to build transfer transaction: %w", err)
	}

	if result.Transaction == "" {
		return "", fmt.Errorf("wallet service returned an empty transaction")
	}
	return result.Transaction, nil
}

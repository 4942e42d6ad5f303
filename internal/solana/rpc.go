package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	confirmationPollDelay = 2 * time.Second
	confirmationTimeout   = 60 * time.Second
)

// RPCClient is a minimal Solana JSON-RPC client covering the calls the
// engine needs: signature confirmation and token account existence.
type RPCClient struct {
	core *restCore
}

// NewRPCClient creates a client for a Solana RPC node.
func NewRPCClient(rpcURL string, rateLimit float64, burst int, logger *zap.Logger) *RPCClient {
	return &RPCClient{core: newRestCore(rpcURL, rateLimit, burst, logger.Named("rpc"))}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	req := c.core.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}).
		SetResult(&envelope)

	if _, err := c.core.doRequest(ctx, "POST", "", req); err != nil {
		return fmt.Errorf("rpc %s failed: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc %s error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("rpc %s: decoding result: %w", method, err)
		}
	}
	return nil
}

type signatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

func (st *signatureStatus) failed() bool {
	return len(st.Err) > 0 && string(st.Err) != "null"
}

// AwaitConfirmation polls the signature status until it reaches confirmed
// or finalized commitment, the transaction errors on chain, or the
// confirmation window elapses.
func (c *RPCClient) AwaitConfirmation(ctx context.Context, signature string) error {
	deadline := time.Now().Add(confirmationTimeout)

	for {
		var result struct {
			Value []*signatureStatus `json:"value"`
		}
		err := c.call(ctx, "getSignatureStatuses",
			[]any{[]string{signature}, map[string]bool{"searchTransactionHistory": true}},
			&result)
		if err == nil && len(result.Value) > 0 && result.Value[0] != nil {
			st := result.Value[0]
			if st.failed() {
				return fmt.Errorf("transaction %s failed on chain: %s", signature, string(st.Err))
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				c.core.logger.Info("Transaction confirmed",
					zap.String("signature", signature),
					zap.String("commitment", st.ConfirmationStatus))
				return nil
			}
		}
		if err != nil {
			c.core.logger.Warn("Signature status poll failed", zap.Error(err))
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("confirmation timed out for %s", signature)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmationPollDelay):
		}
	}
}

// TokenAccountExists reports whether the owner already has an associated
// account for a mint.
func (c *RPCClient) TokenAccountExists(ctx context.Context, owner, mint string) (bool, error) {
	var result struct {
		Value []json.RawMessage `json:"value"`
	}
	err := c.call(ctx, "getTokenAccountsByOwner",
		[]any{owner, map[string]string{"mint": mint}, map[string]string{"encoding": "jsonParsed"}},
		&result)
	if err != nil {
		return false, err
	}
	return len(result.Value) > 0, nil
}

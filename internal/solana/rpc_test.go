package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newRPCServer(t *testing.T, handler func(method string) string) (*RPCClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(req.Method)))
	}))
	client := NewRPCClient(server.URL, 0, 0, zap.NewNop())
	return client, server
}

func TestAwaitConfirmationConfirmed(t *testing.T) {
	client, server := newRPCServer(t, func(method string) string {
		assert.Equal(t, "getSignatureStatuses", method)
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[{"confirmationStatus":"confirmed","err":null}]}}`
	})
	defer server.Close()

	err := client.AwaitConfirmation(context.Background(), "sig123")
	assert.NoError(t, err)
}

func TestAwaitConfirmationFinalized(t *testing.T) {
	client, server := newRPCServer(t, func(string) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[{"confirmationStatus":"finalized","err":null}]}}`
	})
	defer server.Close()

	assert.NoError(t, client.AwaitConfirmation(context.Background(), "sig123"))
}

func TestAwaitConfirmationOnChainFailure(t *testing.T) {
	client, server := newRPCServer(t, func(string) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[{"confirmationStatus":"confirmed","err":{"InstructionError":[0,"Custom"]}}]}}`
	})
	defer server.Close()

	err := client.AwaitConfirmation(context.Background(), "sig123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed on chain")
}

func TestAwaitConfirmationContextCancel(t *testing.T) {
	// A pending status keeps the poll loop running until the context ends.
	client, server := newRPCServer(t, func(string) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[null]}}`
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.AwaitConfirmation(ctx, "sig123")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenAccountExists(t *testing.T) {
	client, server := newRPCServer(t, func(method string) string {
		assert.Equal(t, "getTokenAccountsByOwner", method)
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[{"pubkey":"abc"}]}}`
	})
	defer server.Close()

	exists, err := client.TokenAccountExists(context.Background(), "owner", "mint")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestTokenAccountMissing(t *testing.T) {
	client, server := newRPCServer(t, func(string) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[]}}`
	})
	defer server.Close()

	exists, err := client.TokenAccountExists(context.Background(), "owner", "mint")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestRPCErrorResponse(t *testing.T) {
	client, server := newRPCServer(t, func(string) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`
	})
	defer server.Close()

	_, err := client.TokenAccountExists(context.Background(), "owner", "mint")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

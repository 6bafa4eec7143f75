package solana

import (
	"context"
	"fmt"

	"arcade-pot/internal/jsonrpc"
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	rpc *jsonrpc.Client
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...jsonrpc.Option) *HTTPClient {
	return &HTTPClient{rpc: jsonrpc.New("solana", endpoint, opts...)}
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// GetTransaction retrieves a transaction by signature at confirmed commitment.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *getTransactionResult
	if err := c.rpc.Call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}

	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:          result.Meta.Err,
			PreBalances:  result.Meta.PreBalances,
			PostBalances: result.Meta.PostBalances,
			LogMessages:  result.Meta.LogMessages,
		}
		if la := result.Meta.LoadedAddresses; la != nil {
			tx.Meta.LoadedWritable = la.Writable
			tx.Meta.LoadedReadonly = la.Readonly
		}
	}

	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys: result.Transaction.Message.AccountKeys,
		}
	}

	return tx, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err             interface{}      `json:"err"`
	PreBalances     []uint64         `json:"preBalances"`
	PostBalances    []uint64         `json:"postBalances"`
	LogMessages     []string         `json:"logMessages"`
	LoadedAddresses *loadedAddresses `json:"loadedAddresses"`
}

type loadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

// GetLatestBlockhash returns a recent blockhash at confirmed commitment.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	params := []interface{}{
		map[string]interface{}{"commitment": "confirmed"},
	}

	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.rpc.Call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	if result.Value.Blockhash == "" {
		return "", fmt.Errorf("empty blockhash")
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a base64-encoded signed transaction.
func (c *HTTPClient) SendTransaction(ctx context.Context, encoded string) (string, error) {
	params := []interface{}{
		encoded,
		map[string]interface{}{
			"encoding":            "base64",
			"preflightCommitment": "confirmed",
		},
	}

	var signature string
	if err := c.rpc.Call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetSignatureStatus returns the status of one signature.
func (c *HTTPClient) GetSignatureStatus(ctx context.Context, signature string, searchHistory bool) (*SignatureStatus, error) {
	params := []interface{}{
		[]string{signature},
		map[string]interface{}{"searchTransactionHistory": searchHistory},
	}

	var result struct {
		Value []*struct {
			Slot               int64       `json:"slot"`
			ConfirmationStatus string      `json:"confirmationStatus"`
			Err                interface{} `json:"err"`
		} `json:"value"`
	}
	if err := c.rpc.Call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return nil, nil
	}

	v := result.Value[0]
	return &SignatureStatus{
		Slot:               v.Slot,
		ConfirmationStatus: v.ConfirmationStatus,
		Err:                v.Err,
	}, nil
}

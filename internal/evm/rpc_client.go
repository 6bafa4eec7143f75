package evm

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"arcade-pot/internal/jsonrpc"
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	rpc *jsonrpc.Client
}

// NewHTTPClient creates a new EVM RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...jsonrpc.Option) *HTTPClient {
	return &HTTPClient{rpc: jsonrpc.New("evm", endpoint, opts...)}
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

type rawTransaction struct {
	Hash      string  `json:"hash"`
	From      string  `json:"from"`
	To        *string `json:"to"`
	Value     string  `json:"value"`
	BlockHash *string `json:"blockHash"`
}

// GetTransactionByHash retrieves a transaction by hash.
func (c *HTTPClient) GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var result *rawTransaction
	if err := c.rpc.Call(ctx, "eth_getTransactionByHash", []interface{}{hash}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	value, err := ParseQuantity(result.Value)
	if err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}

	tx := &Transaction{
		Hash:  result.Hash,
		From:  strings.ToLower(result.From),
		Value: value,
	}
	if result.To != nil {
		tx.To = strings.ToLower(*result.To)
	}
	if result.BlockHash != nil {
		tx.BlockHash = *result.BlockHash
	}
	return tx, nil
}

// GetTransactionReceipt retrieves the receipt of a mined transaction.
func (c *HTTPClient) GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var result *struct {
		Status    string `json:"status"`
		BlockHash string `json:"blockHash"`
	}
	if err := c.rpc.Call(ctx, "eth_getTransactionReceipt", []interface{}{hash}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	status, err := parseUint64(result.Status)
	if err != nil {
		return nil, fmt.Errorf("parse receipt status: %w", err)
	}
	return &Receipt{Status: status, BlockHash: result.BlockHash}, nil
}

// GetBlockByHash retrieves a block header without transactions.
func (c *HTTPClient) GetBlockByHash(ctx context.Context, hash string) (*Block, error) {
	var result *struct {
		Hash      string `json:"hash"`
		Timestamp string `json:"timestamp"`
	}
	if err := c.rpc.Call(ctx, "eth_getBlockByHash", []interface{}{hash, false}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	ts, err := parseUint64(result.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse block timestamp: %w", err)
	}
	return &Block{Hash: result.Hash, Timestamp: int64(ts)}, nil
}

// GetTransactionCount returns the pending nonce of address.
func (c *HTTPClient) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	var result string
	if err := c.rpc.Call(ctx, "eth_getTransactionCount", []interface{}{address, "pending"}, &result); err != nil {
		return 0, err
	}
	return parseUint64(result)
}

// GasPrice returns the suggested gas price in wei.
func (c *HTTPClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.rpc.Call(ctx, "eth_gasPrice", nil, &result); err != nil {
		return nil, err
	}
	return ParseQuantity(result)
}

// ChainID returns the chain id.
func (c *HTTPClient) ChainID(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.rpc.Call(ctx, "eth_chainId", nil, &result); err != nil {
		return nil, err
	}
	return ParseQuantity(result)
}

// SendRawTransaction broadcasts a signed transaction.
func (c *HTTPClient) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	var hash string
	if err := c.rpc.Call(ctx, "eth_sendRawTransaction", []interface{}{"0x" + hex.EncodeToString(raw)}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

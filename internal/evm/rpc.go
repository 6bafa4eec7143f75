package evm

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// RPCClient defines the EVM JSON-RPC interface used for verification and payouts.
type RPCClient interface {
	// GetTransactionByHash returns nil, nil if the transaction is unknown.
	GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error)

	// GetTransactionReceipt returns nil, nil while the transaction is pending or unknown.
	GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error)

	// GetBlockByHash returns nil, nil if the block is unknown.
	GetBlockByHash(ctx context.Context, hash string) (*Block, error)

	// GetTransactionCount returns the pending nonce of address.
	GetTransactionCount(ctx context.Context, address string) (uint64, error)

	// GasPrice returns the suggested legacy gas price in wei.
	GasPrice(ctx context.Context) (*big.Int, error)

	// ChainID returns the chain id the node serves.
	ChainID(ctx context.Context) (*big.Int, error)

	// SendRawTransaction broadcasts a signed transaction and returns its hash.
	SendRawTransaction(ctx context.Context, raw []byte) (string, error)
}

// Transaction is the subset of eth_getTransactionByHash used here.
type Transaction struct {
	Hash      string
	From      string
	To        string // lowercase, empty for contract creation
	Value     *big.Int
	BlockHash string // empty while pending
}

// Receipt is the subset of eth_getTransactionReceipt used here.
type Receipt struct {
	Status    uint64 // 1 success, 0 reverted
	BlockHash string
}

// Block is the subset of eth_getBlockByHash used here.
type Block struct {
	Hash      string
	Timestamp int64 // Unix seconds
}

// ParseQuantity decodes a 0x-prefixed hex quantity.
func ParseQuantity(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") || len(s) < 3 {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return v, nil
}

// parseUint64 decodes a 0x-prefixed hex quantity that fits uint64.
func parseUint64(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") || len(s) < 3 {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return strconv.ParseUint(s[2:], 16, 64)
}

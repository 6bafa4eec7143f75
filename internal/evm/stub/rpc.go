package stub

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"

	"arcade-pot/internal/evm"
)

// RPCClient implements evm.RPCClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*evm.Transaction
	Receipts     map[string]*evm.Receipt
	Blocks       map[string]*evm.Block
	Nonce        uint64
	Price        *big.Int
	Chain        *big.Int
	// Sent holds raw transactions passed to SendRawTransaction.
	Sent [][]byte
	// Err, when set, is returned by every call.
	Err error
	// SendErr, when set, is returned by SendRawTransaction.
	SendErr error
	// AutoMine stores a successful receipt for every sent transaction.
	AutoMine bool
}

// NewRPCClient creates a new stub RPC client serving Base mainnet.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*evm.Transaction),
		Receipts:     make(map[string]*evm.Receipt),
		Blocks:       make(map[string]*evm.Block),
		Price:        big.NewInt(1_000_000),
		Chain:        big.NewInt(evm.BaseChainID),
		AutoMine:     true,
	}
}

// Compile-time interface check.
var _ evm.RPCClient = (*RPCClient)(nil)

// GetTransactionByHash returns the stored transaction.
func (c *RPCClient) GetTransactionByHash(_ context.Context, hash string) (*evm.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Transactions[strings.ToLower(hash)], nil
}

// GetTransactionReceipt returns the stored receipt.
func (c *RPCClient) GetTransactionReceipt(_ context.Context, hash string) (*evm.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Receipts[strings.ToLower(hash)], nil
}

// GetBlockByHash returns the stored block.
func (c *RPCClient) GetBlockByHash(_ context.Context, hash string) (*evm.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Blocks[strings.ToLower(hash)], nil
}

// GetTransactionCount returns the configured nonce.
func (c *RPCClient) GetTransactionCount(_ context.Context, _ string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Nonce, nil
}

// GasPrice returns the configured gas price.
func (c *RPCClient) GasPrice(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return new(big.Int).Set(c.Price), nil
}

// ChainID returns the configured chain id.
func (c *RPCClient) ChainID(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return new(big.Int).Set(c.Chain), nil
}

// SendRawTransaction records the transaction and bumps the nonce.
func (c *RPCClient) SendRawTransaction(_ context.Context, raw []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, raw)
	c.Nonce++

	hash := evmHash(raw)
	if c.AutoMine {
		c.Receipts[hash] = &evm.Receipt{Status: 1, BlockHash: "0xmined"}
	}
	return hash, nil
}

// AddPayment stores a mined transfer with its receipt and block.
func (c *RPCClient) AddPayment(hash, to string, value *big.Int, status uint64, blockTime int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash = strings.ToLower(hash)
	block := "0xblock-" + hash
	c.Transactions[hash] = &evm.Transaction{Hash: hash, To: strings.ToLower(to), Value: value, BlockHash: block}
	c.Receipts[hash] = &evm.Receipt{Status: status, BlockHash: block}
	c.Blocks[block] = &evm.Block{Hash: block, Timestamp: blockTime}
}

// SentCount returns the number of transactions sent.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

func evmHash(raw []byte) string {
	return "0x" + hex.EncodeToString(evm.Keccak256(raw))
}

// AddRevertedReceipts stores a reverted receipt for every sent transaction.
func (c *RPCClient) AddRevertedReceipts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, raw := range c.Sent {
		c.Receipts[evmHash(raw)] = &evm.Receipt{Status: 0, BlockHash: "0xmined"}
	}
}

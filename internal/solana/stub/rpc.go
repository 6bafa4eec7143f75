package stub

import (
	"context"
	"errors"
	"sync"

	"arcade-pot/internal/solana"
)

// ErrUnavailable simulates a transport failure.
var ErrUnavailable = errors.New("rpc unavailable")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Statuses     map[string]*solana.SignatureStatus
	// Evicted marks signatures that aged out of the node's recent status cache.
	Evicted      map[string]bool
	Blockhash    string
	// Sent holds base64 transactions passed to SendTransaction.
	Sent []string
	// Err, when set, is returned by every call.
	Err error
	// SendErr, when set, is returned by SendTransaction.
	SendErr error
	// SendResult is the signature SendTransaction reports. Empty echoes nothing.
	SendResult string
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Statuses:     make(map[string]*solana.SignatureStatus),
		Evicted:      make(map[string]bool),
		Blockhash:    "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// GetTransaction returns the stored transaction or nil if unknown.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	return c.Transactions[signature], nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return "", c.Err
	}
	return c.Blockhash, nil
}

// SendTransaction records the transaction.
func (c *RPCClient) SendTransaction(_ context.Context, encoded string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return "", c.Err
	}
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, encoded)
	return c.SendResult, nil
}

// GetSignatureStatus returns the stored status. Unknown signatures are
// reported confirmed unless Statuses has an explicit entry. Evicted
// signatures are only found with searchHistory.
func (c *RPCClient) GetSignatureStatus(_ context.Context, signature string, searchHistory bool) (*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if c.Evicted[signature] && !searchHistory {
		return nil, nil
	}
	if status, ok := c.Statuses[signature]; ok {
		return status, nil
	}
	return &solana.SignatureStatus{ConfirmationStatus: "confirmed"}, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// SentCount returns the number of transactions sent.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

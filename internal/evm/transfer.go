package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/slog"
	"github.com/shopspring/decimal"
)

// WeiDecimals is the number of decimal places between ETH and wei.
const WeiDecimals = 18

// TransferGas is the gas limit of a plain value transfer.
const TransferGas = 21000

// BaseChainID is the chain id of Base mainnet.
const BaseChainID = 8453

// DefaultPollInterval is the default receipt polling interval.
const DefaultPollInterval = 2 * time.Second

// Transfer errors.
var (
	ErrReverted      = errors.New("transaction reverted")
	ErrChainMismatch = errors.New("node serves a different chain")
)

// ToWei converts an ETH amount to wei, truncating sub-wei dust.
func ToWei(amount decimal.Decimal) (*big.Int, error) {
	wei := amount.Shift(WeiDecimals).Truncate(0)
	if !wei.IsPositive() {
		return nil, fmt.Errorf("amount %s is below one wei", amount)
	}
	return wei.BigInt(), nil
}

// FromWei converts wei to ETH.
func FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -WeiDecimals)
}

// TransfererOptions configures Transferer.
type TransfererOptions struct {
	RPC          RPCClient
	Key          *secp256k1.PrivateKey
	ChainID      int64
	PollInterval time.Duration
	Log          slog.Logger
}

// Transferer sends native ETH transfers from the house key.
type Transferer struct {
	rpc          RPCClient
	key          *secp256k1.PrivateKey
	from         string
	chainID      *big.Int
	pollInterval time.Duration
	log          slog.Logger

	// sendMu serializes nonce allocation.
	sendMu sync.Mutex
}

// NewTransferer creates a new Transferer.
func NewTransferer(opts TransfererOptions) (*Transferer, error) {
	if opts.RPC == nil {
		return nil, errors.New("evm transferer: rpc client is required")
	}
	if opts.Key == nil {
		return nil, errors.New("evm transferer: signing key is required")
	}
	if opts.ChainID == 0 {
		opts.ChainID = BaseChainID
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}

	return &Transferer{
		rpc:          opts.RPC,
		key:          opts.Key,
		from:         AddressOf(opts.Key),
		chainID:      big.NewInt(opts.ChainID),
		pollInterval: opts.PollInterval,
		log:          opts.Log,
	}, nil
}

// Address returns the lowercase address transfers are sent from.
func (t *Transferer) Address() string {
	return t.from
}

// Transfer sends amount ETH to the address and waits for a successful receipt.
// When the transaction was broadcast but did not succeed, the hash is
// returned together with the error.
func (t *Transferer) Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	dest, err := ParseAddress(to)
	if err != nil {
		return "", err
	}
	value, err := ToWei(amount)
	if err != nil {
		return "", err
	}

	hash, err := t.send(ctx, dest, value)
	if err != nil {
		return "", err
	}
	t.log.Debugf("Sent %s wei to %s in %s", value, strings.ToLower(to), hash)

	if err := t.waitReceipt(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}

func (t *Transferer) send(ctx context.Context, to [AddressLength]byte, value *big.Int) (string, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	chainID, err := t.rpc.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("get chain id: %w", err)
	}
	if chainID.Cmp(t.chainID) != 0 {
		return "", fmt.Errorf("%w: got %s, want %s", ErrChainMismatch, chainID, t.chainID)
	}

	nonce, err := t.rpc.GetTransactionCount(ctx, t.from)
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := t.rpc.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("get gas price: %w", err)
	}

	tx := &LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      TransferGas,
		To:       to,
		Value:    value,
	}
	raw, hash := SignLegacyTx(tx, t.chainID, t.key)

	sent, err := t.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("send raw transaction: %w", err)
	}
	if sent != "" && !strings.EqualFold(sent, hash) {
		t.log.Warnf("Node returned hash %s, expected %s", sent, hash)
		hash = sent
	}
	return hash, nil
}

// waitReceipt polls until the transaction is mined or ctx ends.
func (t *Transferer) waitReceipt(ctx context.Context, hash string) error {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("await receipt of %s: %w", hash, ctx.Err())
		case <-ticker.C:
			receipt, err := t.rpc.GetTransactionReceipt(ctx, hash)
			if err != nil {
				t.log.Debugf("Receipt of %s: %v", hash, err)
				continue
			}
			if receipt == nil {
				continue
			}
			if receipt.Status != 1 {
				return ErrReverted
			}
			return nil
		}
	}
}

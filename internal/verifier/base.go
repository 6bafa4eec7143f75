package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/evm"
)

// BaseOptions configures BaseVerifier.
type BaseOptions struct {
	RPC          evm.RPCClient
	HouseAddress string
	Timeout      time.Duration
	Now          func() time.Time
	Log          slog.Logger
}

// BaseVerifier verifies native ETH transfers on Base.
type BaseVerifier struct {
	rpc     evm.RPCClient
	house   string // lowercase 0x address
	timeout time.Duration
	now     func() time.Time
	log     slog.Logger
}

// Compile-time interface check.
var _ Verifier = (*BaseVerifier)(nil)

// NewBaseVerifier creates a new BaseVerifier.
func NewBaseVerifier(opts BaseOptions) (*BaseVerifier, error) {
	house, err := evm.NormalizeAddress(opts.HouseAddress)
	if err != nil {
		return nil, fmt.Errorf("house wallet: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	return &BaseVerifier{
		rpc:     opts.RPC,
		house:   house,
		timeout: opts.Timeout,
		now:     opts.Now,
		log:     opts.Log,
	}, nil
}

// Network returns domain.NetworkBase.
func (v *BaseVerifier) Network() domain.Network {
	return domain.NetworkBase
}

// Verify checks that hash sent at least expected ETH to the house address
// within tolerance. The transaction and receipt are read concurrently; the
// block timestamp is read once both are present.
func (v *BaseVerifier) Verify(ctx context.Context, hash string, expected decimal.Decimal) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var (
		tx      *evm.Transaction
		receipt *evm.Receipt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tx, err = v.rpc.GetTransactionByHash(gctx, hash)
		return err
	})
	g.Go(func() error {
		var err error
		receipt, err = v.rpc.GetTransactionReceipt(gctx, hash)
		return err
	})
	if err := g.Wait(); err != nil {
		v.log.Debugf("Verify %s: %v", hash, err)
		return nil, notFound(err)
	}

	if tx == nil || receipt == nil || receipt.BlockHash == "" {
		return nil, ErrNotFound
	}
	if receipt.Status != 1 {
		return nil, ErrReverted
	}
	if tx.To != v.house {
		return nil, ErrWrongRecipient
	}
	if tx.Value == nil {
		return nil, ErrNotFound
	}
	if tx.Value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: was an ERC-20 token sent instead of ETH?", ErrZeroValue)
	}

	block, err := v.rpc.GetBlockByHash(ctx, receipt.BlockHash)
	if err != nil {
		v.log.Debugf("Block %s of %s: %v", receipt.BlockHash, hash, err)
		return nil, notFound(err)
	}
	if block == nil || block.Timestamp == 0 {
		return nil, ErrNotFound
	}

	amount := evm.FromWei(tx.Value)
	if err := checkAmount(domain.NetworkBase, amount, expected, block.Timestamp, v.now()); err != nil {
		return nil, err
	}

	return &Result{AmountNative: amount, ConfirmedAt: block.Timestamp}, nil
}

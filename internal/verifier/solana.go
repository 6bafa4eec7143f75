package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/solana"
)

// SolanaOptions configures SolanaVerifier.
type SolanaOptions struct {
	RPC          solana.RPCClient
	HouseAddress string
	Timeout      time.Duration
	Now          func() time.Time
	Log          slog.Logger
}

// SolanaVerifier verifies SOL transfers by the house account's balance change.
type SolanaVerifier struct {
	rpc     solana.RPCClient
	house   string
	timeout time.Duration
	now     func() time.Time
	log     slog.Logger
}

// Compile-time interface check.
var _ Verifier = (*SolanaVerifier)(nil)

// NewSolanaVerifier creates a new SolanaVerifier.
func NewSolanaVerifier(opts SolanaOptions) (*SolanaVerifier, error) {
	house, err := solana.ParsePublicKey(opts.HouseAddress)
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
	return &SolanaVerifier{
		rpc:     opts.RPC,
		house:   house.String(),
		timeout: opts.Timeout,
		now:     opts.Now,
		log:     opts.Log,
	}, nil
}

// Network returns domain.NetworkSolana.
func (v *SolanaVerifier) Network() domain.Network {
	return domain.NetworkSolana
}

// Verify checks that signature credited the house account at least
// expected SOL within tolerance.
func (v *SolanaVerifier) Verify(ctx context.Context, signature string, expected decimal.Decimal) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var (
		tx     *solana.Transaction
		status *solana.SignatureStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tx, err = v.rpc.GetTransaction(gctx, signature)
		return err
	})
	g.Go(func() error {
		var err error
		// payments up to MaxAge old are long gone from the status cache
		status, err = v.rpc.GetSignatureStatus(gctx, signature, true)
		return err
	})
	if err := g.Wait(); err != nil {
		v.log.Debugf("Verify %s: %v", signature, err)
		return nil, notFound(err)
	}

	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return nil, ErrNotFound
	}
	if tx.Meta.Err != nil {
		return nil, ErrReverted
	}
	if status == nil {
		return nil, ErrNotFound
	}
	if status.Err != nil {
		return nil, ErrReverted
	}
	if !status.Confirmed() {
		return nil, ErrNotFound
	}

	delta, ok := tx.BalanceDelta(v.house)
	if !ok {
		if !containsAccount(tx.Accounts(), v.house) {
			return nil, ErrWrongRecipient
		}
		// house listed but balances missing
		return nil, ErrNotFound
	}
	if tx.BlockTime == 0 {
		return nil, ErrNotFound
	}

	amount := decimal.Zero
	if delta > 0 {
		amount = solana.FromLamports(delta)
	}
	if err := checkAmount(domain.NetworkSolana, amount, expected, tx.BlockTime, v.now()); err != nil {
		return nil, err
	}

	return &Result{AmountNative: amount, ConfirmedAt: tx.BlockTime}, nil
}

func containsAccount(accounts []string, account string) bool {
	for _, a := range accounts {
		if a == account {
			return true
		}
	}
	return false
}

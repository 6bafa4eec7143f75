package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/shopspring/decimal"
)

// LamportsDecimals is the number of decimal places between SOL and lamports.
const LamportsDecimals = 9

// DefaultPollInterval is the default signature status polling interval.
const DefaultPollInterval = 2 * time.Second

// ErrTransactionFailed is returned when a sent transaction executed with an error.
var ErrTransactionFailed = errors.New("transaction failed on chain")

// ToLamports converts a SOL amount to lamports, truncating sub-lamport dust.
func ToLamports(amount decimal.Decimal) (uint64, error) {
	lamports := amount.Shift(LamportsDecimals).Truncate(0)
	if !lamports.IsPositive() {
		return 0, fmt.Errorf("amount %s is below one lamport", amount)
	}
	if !lamports.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s overflows lamports", amount)
	}
	return lamports.BigInt().Uint64(), nil
}

// FromLamports converts lamports to SOL.
func FromLamports(lamports int64) decimal.Decimal {
	return decimal.New(lamports, -LamportsDecimals)
}

// TransfererOptions configures Transferer.
type TransfererOptions struct {
	RPC RPCClient
	// WS is optional. Without it confirmation relies on status polling.
	WS           SignatureSubscriber
	Key          ed25519.PrivateKey
	PollInterval time.Duration
	Log          slog.Logger
}

// Transferer sends native SOL transfers from the house keypair.
type Transferer struct {
	rpc          RPCClient
	ws           SignatureSubscriber
	key          ed25519.PrivateKey
	from         PublicKey
	pollInterval time.Duration
	log          slog.Logger
}

// NewTransferer creates a new Transferer.
func NewTransferer(opts TransfererOptions) (*Transferer, error) {
	if opts.RPC == nil {
		return nil, errors.New("solana transferer: rpc client is required")
	}
	if len(opts.Key) != ed25519.PrivateKeySize {
		return nil, errors.New("solana transferer: signing key is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}

	var from PublicKey
	copy(from[:], opts.Key.Public().(ed25519.PublicKey))

	return &Transferer{
		rpc:          opts.RPC,
		ws:           opts.WS,
		key:          opts.Key,
		from:         from,
		pollInterval: opts.PollInterval,
		log:          opts.Log,
	}, nil
}

// Address returns the base58 address transfers are sent from.
func (t *Transferer) Address() string {
	return t.from.String()
}

// Transfer sends amount SOL to the wallet and waits for confirmed commitment.
// When the transaction was broadcast but not confirmed, the signature is
// returned together with the error.
func (t *Transferer) Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	if err := ValidateWalletAddress(to); err != nil {
		return "", err
	}
	dest, _ := ParsePublicKey(to)

	lamports, err := ToLamports(amount)
	if err != nil {
		return "", err
	}

	blockhash, err := t.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	msg, err := TransferMessage(t.from, dest, lamports, blockhash)
	if err != nil {
		return "", err
	}
	raw, signature := SignTransaction(msg, t.key)

	sent, err := t.rpc.SendTransaction(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	if sent != "" && sent != signature {
		t.log.Warnf("Node returned signature %s, expected %s", sent, signature)
		signature = sent
	}
	t.log.Debugf("Sent %d lamports to %s in %s", lamports, to, signature)

	if err := t.waitConfirmed(ctx, signature); err != nil {
		return signature, err
	}
	return signature, nil
}

// waitConfirmed blocks until signature is confirmed, failed or ctx ends.
// A websocket subscription is used when available, racing status polling
// since a signature confirmed before subscribing may never be notified.
func (t *Transferer) waitConfirmed(ctx context.Context, signature string) error {
	var notifications <-chan SignatureNotification
	if t.ws != nil {
		ch, err := t.ws.SubscribeSignature(ctx, signature)
		if err != nil {
			t.log.Debugf("Signature subscription unavailable, polling: %v", err)
		} else {
			notifications = ch
		}
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("await confirmation of %s: %w", signature, ctx.Err())
		case notif, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			if notif.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, notif.Err)
			}
			return nil
		case <-ticker.C:
			status, err := t.rpc.GetSignatureStatus(ctx, signature, false)
			if err != nil {
				t.log.Debugf("Signature status of %s: %v", signature, err)
				continue
			}
			if status == nil {
				continue
			}
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if status.Confirmed() {
				return nil
			}
		}
	}
}

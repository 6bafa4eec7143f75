// Package verifier confirms that a claimed on-chain transaction paid the
// house wallet the expected entry fee.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
)

const (
	// Tolerance is the fraction an amount may fall below the expected minimum.
	Tolerance = 0.10

	// MaxAge is the recency window for confirmed payments.
	MaxAge = 2 * time.Hour

	// DefaultTimeout bounds each verification including all RPC reads.
	DefaultTimeout = 15 * time.Second
)

// Verification errors.
var (
	// ErrNotFound means the transaction is absent or not yet confirmed.
	// Transport errors and timeouts map here too; callers should retry.
	ErrNotFound = errors.New("transaction not found or not yet confirmed")

	ErrReverted           = errors.New("transaction failed on chain")
	ErrWrongRecipient     = errors.New("payment not sent to the house wallet")
	ErrZeroValue          = errors.New("transaction transferred no native value")
	ErrInsufficientAmount = errors.New("insufficient amount")
	ErrStale              = errors.New("transaction is older than two hours")
)

// Retryable reports whether err may succeed later without a new transaction.
func Retryable(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Result is a verified payment.
type Result struct {
	AmountNative decimal.Decimal
	ConfirmedAt  int64 // unix seconds
}

// Verifier verifies payments on one network.
type Verifier interface {
	Network() domain.Network
	Verify(ctx context.Context, txID string, expected decimal.Decimal) (*Result, error)
}

// minimumAmount returns expected × (1 − Tolerance).
func minimumAmount(expected decimal.Decimal) decimal.Decimal {
	return expected.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(Tolerance)))
}

// checkAmount applies the value, tolerance and recency rules shared by both networks.
func checkAmount(network domain.Network, amount, expected decimal.Decimal, confirmedAt int64, now time.Time) error {
	if !amount.IsPositive() {
		return ErrZeroValue
	}
	minimum := minimumAmount(expected)
	if amount.LessThan(minimum) {
		places := network.DisplayPlaces()
		return fmt.Errorf("%w: received %s %s, minimum required %s %s",
			ErrInsufficientAmount,
			amount.StringFixed(places), network.Asset(),
			minimum.StringFixed(places), network.Asset())
	}
	if now.Unix()-confirmedAt > int64(MaxAge/time.Second) {
		return ErrStale
	}
	return nil
}

// notFound wraps a transport error as retryable.
func notFound(err error) error {
	return fmt.Errorf("%w: %v", ErrNotFound, err)
}

package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
)

// PaymentStore provides access to payments storage.
type PaymentStore interface {
	// Insert adds a verified payment and sets p.ID.
	// Returns ErrDuplicateKey if tx_id or session_token exists.
	Insert(ctx context.Context, p *domain.Payment) error

	// ExistsByTxID reports whether any payment references the transaction.
	ExistsByTxID(ctx context.Context, txID string) (bool, error)

	// GetBySessionToken retrieves the payment bound to a credential. Returns ErrNotFound if not exists.
	GetBySessionToken(ctx context.Context, token string) (*domain.Payment, error)

	// TotalsByDay sums payments of a day key grouped by network.
	// Networks without payments are absent from the result.
	TotalsByDay(ctx context.Context, dayKey string) (map[domain.Network]PoolTotal, error)

	// List retrieves payments ordered by created_at DESC, id DESC.
	List(ctx context.Context, limit, offset int) ([]*domain.Payment, error)
}

// PoolTotal is the aggregate of one network's payments for a day.
type PoolTotal struct {
	Native decimal.Decimal // sum of native amounts
	USD    float64         // sum of amount_native * price at payment time
	Count  int
}

// ScoreStore provides access to scores storage.
type ScoreStore interface {
	// Admit inserts the score and flags its payment as submitted in one atomic unit.
	// Returns ErrNotFound if the payment does not exist and
	// ErrAlreadySubmitted if a score was already recorded for it.
	Admit(ctx context.Context, s *domain.Score) error

	// CountAbove counts scores of a day key strictly greater than score.
	CountAbove(ctx context.Context, dayKey string, score int64) (int, error)

	// Top retrieves up to limit scores of a day key ordered by
	// score DESC, submitted_at ASC, id ASC.
	Top(ctx context.Context, dayKey string, limit int) ([]*domain.Score, error)
}

// WinnerStore provides access to winners storage.
type WinnerStore interface {
	// Get retrieves the record of a day key. Returns ErrNotFound if not exists.
	Get(ctx context.Context, dayKey string) (*domain.Winner, error)

	// CreatePending inserts w with status pending unless a record for the day
	// key already exists. Returns the stored record, which is the earlier one
	// when the insert lost, and whether this call created it.
	CreatePending(ctx context.Context, w *domain.Winner) (*domain.Winner, bool, error)

	// UpdateLeg persists the status, transfer id and detail of one leg.
	// Pool and prize figures are never rewritten. Returns ErrNotFound if no
	// record exists and ErrFinalized if the record is paid or the leg sent.
	UpdateLeg(ctx context.Context, dayKey string, leg *domain.Leg) error

	// SetStatus sets the payout status. Returns ErrNotFound if no record
	// exists and ErrFinalized if it is already paid.
	SetStatus(ctx context.Context, dayKey string, status domain.PayoutStatus) error

	// MarkPaid force-sets status paid with operator notes. Returns ErrNotFound if no record exists.
	MarkPaid(ctx context.Context, dayKey, notes string) error

	// Recent retrieves up to limit records ordered by day_key DESC.
	Recent(ctx context.Context, limit int) ([]*domain.Winner, error)
}

// AttemptLog is an append-only record of settlement leg attempts.
type AttemptLog interface {
	// Append records one attempt.
	Append(ctx context.Context, a *domain.LegAttempt) error

	// GetByDay retrieves attempts of a day key ordered by attempted_at ASC.
	GetByDay(ctx context.Context, dayKey string) ([]*domain.LegAttempt, error)
}

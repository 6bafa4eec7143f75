package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// PaymentStore implements storage.PaymentStore using PostgreSQL.
type PaymentStore struct {
	pool *Pool
}

// NewPaymentStore creates a new PaymentStore.
func NewPaymentStore(pool *Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PaymentStore = (*PaymentStore)(nil)

const paymentColumns = `
	id, wallet_address, network, tx_id, amount_native::text, fee_usd, price_usd,
	session_id, session_token, session_used, score_submitted, created_at, day_key
`

// Insert adds a new payment. Returns ErrDuplicateKey if tx_id or session_token exists.
func (s *PaymentStore) Insert(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (
			wallet_address, network, tx_id, amount_native, fee_usd, price_usd,
			session_id, session_token, session_used, score_submitted, created_at, day_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		p.WalletAddress,
		string(p.Network),
		p.TxID,
		p.AmountNative.String(),
		p.FeeUSD,
		p.PriceUSD,
		p.SessionID,
		p.SessionToken,
		p.SessionUsed,
		p.ScoreSubmitted,
		p.CreatedAt,
		p.DayKey,
	).Scan(&p.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ExistsByTxID reports whether a payment references the transaction.
func (s *PaymentStore) ExistsByTxID(ctx context.Context, txID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE tx_id = $1)`, txID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment exists: %w", err)
	}
	return exists, nil
}

// GetBySessionToken retrieves a payment by credential. Returns ErrNotFound if not exists.
func (s *PaymentStore) GetBySessionToken(ctx context.Context, token string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_token = $1`

	p, err := scanPayment(s.pool.QueryRow(ctx, query, token))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get payment by session token: %w", err)
	}
	return p, nil
}

// TotalsByDay sums payments of a day key grouped by network.
func (s *PaymentStore) TotalsByDay(ctx context.Context, dayKey string) (map[domain.Network]storage.PoolTotal, error) {
	query := `
		SELECT network,
		       COALESCE(SUM(amount_native), 0)::text,
		       COALESCE(SUM(amount_native * price_usd::numeric), 0)::double precision,
		       COUNT(*)
		FROM payments
		WHERE day_key = $1
		GROUP BY network
	`

	rows, err := s.pool.Query(ctx, query, dayKey)
	if err != nil {
		return nil, fmt.Errorf("sum payments by day: %w", err)
	}
	defer rows.Close()

	result := make(map[domain.Network]storage.PoolTotal)
	for rows.Next() {
		var (
			network, native string
			t               storage.PoolTotal
		)
		if err := rows.Scan(&network, &native, &t.USD, &t.Count); err != nil {
			return nil, fmt.Errorf("scan payment total row: %w", err)
		}
		t.Native, err = decimal.NewFromString(native)
		if err != nil {
			return nil, fmt.Errorf("parse payment total %q: %w", native, err)
		}
		result[domain.Network(network)] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment total rows: %w", err)
	}
	return result, nil
}

// List retrieves payments ordered by created_at DESC, id DESC.
func (s *PaymentStore) List(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	if limit <= 0 || offset < 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}

// scanPayment scans a single row into a Payment.
func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p       domain.Payment
		network string
		amount  string
	)

	err := row.Scan(
		&p.ID,
		&p.WalletAddress,
		&network,
		&p.TxID,
		&amount,
		&p.FeeUSD,
		&p.PriceUSD,
		&p.SessionID,
		&p.SessionToken,
		&p.SessionUsed,
		&p.ScoreSubmitted,
		&p.CreatedAt,
		&p.DayKey,
	)
	if err != nil {
		return nil, err
	}

	p.Network = domain.Network(network)
	p.AmountNative, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &p, nil
}

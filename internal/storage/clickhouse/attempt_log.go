package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// AttemptLog implements storage.AttemptLog using ClickHouse.
type AttemptLog struct {
	conn *Conn
}

// NewAttemptLog creates a new AttemptLog.
func NewAttemptLog(conn *Conn) *AttemptLog {
	return &AttemptLog{conn: conn}
}

// Compile-time interface check.
var _ storage.AttemptLog = (*AttemptLog)(nil)

// Append records one attempt.
func (s *AttemptLog) Append(ctx context.Context, a *domain.LegAttempt) error {
	if a == nil || a.LegID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO settlement_attempts (
			leg_id, day_key, network, wallet, prize, status, transfer_id, detail, attempted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		a.LegID, a.DayKey, string(a.Network), a.Wallet, a.Prize.String(),
		string(a.Status), a.TransferID, a.Detail, uint64(a.AttemptedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByDay retrieves attempts of a day key ordered by attempted_at ASC.
func (s *AttemptLog) GetByDay(ctx context.Context, dayKey string) ([]*domain.LegAttempt, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT leg_id, day_key, network, wallet, prize, status, transfer_id, detail, attempted_at
		FROM settlement_attempts
		WHERE day_key = ?
		ORDER BY attempted_at ASC, leg_id ASC
	`, dayKey)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var result []*domain.LegAttempt
	for rows.Next() {
		var (
			a                      domain.LegAttempt
			network, prize, status string
			attemptedAt            uint64
		)
		if err := rows.Scan(&a.LegID, &a.DayKey, &network, &a.Wallet, &prize, &status, &a.TransferID, &a.Detail, &attemptedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Network = domain.Network(network)
		a.Status = domain.LegStatus(status)
		a.AttemptedAt = int64(attemptedAt)
		if a.Prize, err = decimal.NewFromString(prize); err != nil {
			return nil, fmt.Errorf("parse prize %q: %w", prize, err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return result, nil
}

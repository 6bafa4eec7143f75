package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// ScoreStore implements storage.ScoreStore using PostgreSQL.
type ScoreStore struct {
	pool *Pool
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(pool *Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// Admit flags the payment and inserts the score in one transaction.
// The conditional update serializes concurrent submissions on the payment row.
func (s *ScoreStore) Admit(ctx context.Context, sc *domain.Score) error {
	return s.pool.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payments
			SET score_submitted = TRUE, session_used = TRUE
			WHERE id = $1 AND score_submitted = FALSE
		`, sc.PaymentID)
		if err != nil {
			return fmt.Errorf("flag payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, sc.PaymentID).Scan(&exists); err != nil {
				return fmt.Errorf("check payment exists: %w", err)
			}
			if !exists {
				return storage.ErrNotFound
			}
			return storage.ErrAlreadySubmitted
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO scores (
				payment_id, wallet_address, network, score, frames, game_mode, turbo, submitted_at, day_key
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`,
			sc.PaymentID,
			sc.WalletAddress,
			string(sc.Network),
			sc.Score,
			sc.Frames,
			sc.GameMode,
			sc.Turbo,
			sc.SubmittedAt,
			sc.DayKey,
		).Scan(&sc.ID)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrAlreadySubmitted
			}
			return fmt.Errorf("insert score: %w", err)
		}
		return nil
	})
}

// CountAbove counts scores of a day key strictly greater than score.
func (s *ScoreStore) CountAbove(ctx context.Context, dayKey string, score int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scores WHERE day_key = $1 AND score > $2`, dayKey, score).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scores above: %w", err)
	}
	return n, nil
}

// Top retrieves up to limit scores ordered by score DESC, submitted_at ASC, id ASC.
func (s *ScoreStore) Top(ctx context.Context, dayKey string, limit int) ([]*domain.Score, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, payment_id, wallet_address, network, score, frames, game_mode, turbo, submitted_at, day_key
		FROM scores
		WHERE day_key = $1
		ORDER BY score DESC, submitted_at ASC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, dayKey, limit)
	if err != nil {
		return nil, fmt.Errorf("get top scores: %w", err)
	}
	defer rows.Close()

	var scores []*domain.Score
	for rows.Next() {
		var (
			sc      domain.Score
			network string
		)
		err := rows.Scan(
			&sc.ID,
			&sc.PaymentID,
			&sc.WalletAddress,
			&network,
			&sc.Score,
			&sc.Frames,
			&sc.GameMode,
			&sc.Turbo,
			&sc.SubmittedAt,
			&sc.DayKey,
		)
		if err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		sc.Network = domain.Network(network)
		scores = append(scores, &sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return scores, nil
}

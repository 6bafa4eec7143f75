package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// WinnerStore implements storage.WinnerStore using PostgreSQL.
// Each network's leg lives in a column group prefixed with the network name.
type WinnerStore struct {
	pool *Pool
}

// NewWinnerStore creates a new WinnerStore.
func NewWinnerStore(pool *Pool) *WinnerStore {
	return &WinnerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WinnerStore = (*WinnerStore)(nil)

const winnerColumns = `
	day_key, wallet_address, network, score,
	solana_pool::text, solana_prize::text, solana_house::text, solana_leg_status, solana_transfer_id, solana_detail,
	base_pool::text, base_prize::text, base_house::text, base_leg_status, base_transfer_id, base_detail,
	status, notes, created_at, updated_at
`

// Get retrieves the record of a day key. Returns ErrNotFound if not exists.
func (s *WinnerStore) Get(ctx context.Context, dayKey string) (*domain.Winner, error) {
	w, err := scanWinner(s.pool.QueryRow(ctx, `SELECT `+winnerColumns+` FROM winners WHERE day_key = $1`, dayKey))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get winner: %w", err)
	}
	return w, nil
}

// CreatePending inserts w as pending unless the day key already has a record.
// The stored row is re-read so a losing insert observes the earlier figures.
func (s *WinnerStore) CreatePending(ctx context.Context, w *domain.Winner) (*domain.Winner, bool, error) {
	now := w.CreatedAt
	if now == 0 {
		now = time.Now().Unix()
	}
	sol := w.Leg(domain.NetworkSolana)
	base := w.Leg(domain.NetworkBase)

	query := `
		INSERT INTO winners (
			day_key, wallet_address, network, score,
			solana_pool, solana_prize, solana_house, solana_leg_status,
			base_pool, base_prize, base_house, base_leg_status,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (day_key) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		w.DayKey,
		w.WalletAddress,
		string(w.Network),
		w.Score,
		sol.Pool.String(), sol.Prize.String(), sol.House.String(), string(domain.LegPending),
		base.Pool.String(), base.Prize.String(), base.House.String(), string(domain.LegPending),
		string(domain.PayoutPending),
		now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert pending winner: %w", err)
	}

	stored, err := s.Get(ctx, w.DayKey)
	if err != nil {
		return nil, false, err
	}
	return stored, tag.RowsAffected() == 1, nil
}

// UpdateLeg persists the outcome fields of one leg.
func (s *WinnerStore) UpdateLeg(ctx context.Context, dayKey string, leg *domain.Leg) error {
	if leg == nil || !leg.Network.IsValid() {
		return storage.ErrInvalidInput
	}

	// Column prefix comes from a validated network, never from input text.
	p := string(leg.Network)
	query := fmt.Sprintf(`
		UPDATE winners
		SET %[1]s_leg_status = $2, %[1]s_transfer_id = $3, %[1]s_detail = $4, updated_at = $5
		WHERE day_key = $1 AND status <> $6 AND %[1]s_leg_status <> $7
	`, p)

	tag, err := s.pool.Exec(ctx, query, dayKey, string(leg.Status), leg.TransferID, leg.Detail, time.Now().Unix(),
		string(domain.PayoutPaid), string(domain.LegSent))
	if err != nil {
		return fmt.Errorf("update winner leg: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrFinalized(ctx, dayKey)
	}
	return nil
}

// missOrFinalized explains an update that matched no row.
func (s *WinnerStore) missOrFinalized(ctx context.Context, dayKey string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM winners WHERE day_key = $1)`, dayKey).Scan(&exists); err != nil {
		return fmt.Errorf("check winner: %w", err)
	}
	if exists {
		return storage.ErrFinalized
	}
	return storage.ErrNotFound
}

// SetStatus sets the payout status of a day key.
func (s *WinnerStore) SetStatus(ctx context.Context, dayKey string, status domain.PayoutStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE winners SET status = $2, updated_at = $3 WHERE day_key = $1 AND status <> $4`,
		dayKey, string(status), time.Now().Unix(), string(domain.PayoutPaid),
	)
	if err != nil {
		return fmt.Errorf("set winner status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrFinalized(ctx, dayKey)
	}
	return nil
}

// MarkPaid force-sets status paid with operator notes.
func (s *WinnerStore) MarkPaid(ctx context.Context, dayKey, notes string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE winners SET status = $2, notes = $3, updated_at = $4 WHERE day_key = $1`,
		dayKey, string(domain.PayoutPaid), notes, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("mark winner paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Recent retrieves up to limit records ordered by day_key DESC.
func (s *WinnerStore) Recent(ctx context.Context, limit int) ([]*domain.Winner, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `SELECT `+winnerColumns+` FROM winners ORDER BY day_key DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent winners: %w", err)
	}
	defer rows.Close()

	winners := []*domain.Winner{}
	for rows.Next() {
		w, err := scanWinner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan winner row: %w", err)
		}
		winners = append(winners, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate winner rows: %w", err)
	}
	return winners, nil
}

// legColumns holds the raw scanned values of one leg column group.
type legColumns struct {
	pool, prize, house string
	status             string
	transferID, detail string
}

func (c *legColumns) targets() []any {
	return []any{&c.pool, &c.prize, &c.house, &c.status, &c.transferID, &c.detail}
}

func (c *legColumns) toLeg(n domain.Network) (*domain.Leg, error) {
	leg := &domain.Leg{
		Network:    n,
		Status:     domain.LegStatus(c.status),
		TransferID: c.transferID,
		Detail:     c.detail,
	}
	var err error
	if leg.Pool, err = decimal.NewFromString(c.pool); err != nil {
		return nil, fmt.Errorf("parse %s pool: %w", n, err)
	}
	if leg.Prize, err = decimal.NewFromString(c.prize); err != nil {
		return nil, fmt.Errorf("parse %s prize: %w", n, err)
	}
	if leg.House, err = decimal.NewFromString(c.house); err != nil {
		return nil, fmt.Errorf("parse %s house: %w", n, err)
	}
	return leg, nil
}

// scanWinner scans a single row into a Winner.
func scanWinner(row pgx.Row) (*domain.Winner, error) {
	var (
		w               domain.Winner
		network, status string
		sol, base       legColumns
	)

	dest := []any{&w.DayKey, &w.WalletAddress, &network, &w.Score}
	dest = append(dest, sol.targets()...)
	dest = append(dest, base.targets()...)
	dest = append(dest, &status, &w.Notes, &w.CreatedAt, &w.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	w.Network = domain.Network(network)
	w.Status = domain.PayoutStatus(status)
	w.Legs = make(map[domain.Network]*domain.Leg, len(domain.Networks))

	solLeg, err := sol.toLeg(domain.NetworkSolana)
	if err != nil {
		return nil, err
	}
	baseLeg, err := base.toLeg(domain.NetworkBase)
	if err != nil {
		return nil, err
	}
	w.Legs[domain.NetworkSolana] = solLeg
	w.Legs[domain.NetworkBase] = baseLeg
	return &w, nil
}

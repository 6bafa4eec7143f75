package memory

import (
	"context"
	"sort"
	"sync"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// PaymentStore is an in-memory implementation of storage.PaymentStore.
// ScoreStore shares its lock so that admission stays atomic.
type PaymentStore struct {
	mu      sync.RWMutex
	nextID  int64
	data    map[int64]*domain.Payment // keyed by id
	byTx    map[string]int64
	byToken map[string]int64
}

// NewPaymentStore creates a new in-memory payment store.
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		data:    make(map[int64]*domain.Payment),
		byTx:    make(map[string]int64),
		byToken: make(map[string]int64),
	}
}

// Insert adds a new payment. Returns ErrDuplicateKey if tx_id or session_token exists.
func (s *PaymentStore) Insert(_ context.Context, p *domain.Payment) error {
	if p == nil || p.TxID == "" || p.SessionToken == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTx[p.TxID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byToken[p.SessionToken]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	p.ID = s.nextID

	// Store a copy to prevent external mutation
	paymentCopy := *p
	s.data[p.ID] = &paymentCopy
	s.byTx[p.TxID] = p.ID
	s.byToken[p.SessionToken] = p.ID
	return nil
}

// ExistsByTxID reports whether a payment references the transaction.
func (s *PaymentStore) ExistsByTxID(_ context.Context, txID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.byTx[txID]
	return exists, nil
}

// GetBySessionToken retrieves a payment by credential. Returns ErrNotFound if not exists.
func (s *PaymentStore) GetBySessionToken(_ context.Context, token string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byToken[token]
	if !exists {
		return nil, storage.ErrNotFound
	}

	paymentCopy := *s.data[id]
	return &paymentCopy, nil
}

// TotalsByDay sums payments of a day key grouped by network.
func (s *PaymentStore) TotalsByDay(_ context.Context, dayKey string) (map[domain.Network]storage.PoolTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[domain.Network]storage.PoolTotal)
	for _, p := range s.data {
		if p.DayKey != dayKey {
			continue
		}
		t := result[p.Network]
		t.Native = t.Native.Add(p.AmountNative)
		t.USD += p.ValueUSD()
		t.Count++
		result[p.Network] = t
	}
	return result, nil
}

// List retrieves payments ordered by created_at DESC, id DESC.
func (s *PaymentStore) List(_ context.Context, limit, offset int) ([]*domain.Payment, error) {
	if limit <= 0 || offset < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Payment, 0, len(s.data))
	for _, p := range s.data {
		paymentCopy := *p
		all = append(all, &paymentCopy)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].ID > all[j].ID
	})

	if offset >= len(all) {
		return []*domain.Payment{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Compile-time interface check
var _ storage.PaymentStore = (*PaymentStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// WinnerStore is an in-memory implementation of storage.WinnerStore.
type WinnerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Winner // keyed by day_key
}

// NewWinnerStore creates a new in-memory winner store.
func NewWinnerStore() *WinnerStore {
	return &WinnerStore{
		data: make(map[string]*domain.Winner),
	}
}

// Get retrieves the record of a day key. Returns ErrNotFound if not exists.
func (s *WinnerStore) Get(_ context.Context, dayKey string) (*domain.Winner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[dayKey]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return w.Clone(), nil
}

// CreatePending inserts w as pending unless the day key already has a record.
func (s *WinnerStore) CreatePending(_ context.Context, w *domain.Winner) (*domain.Winner, bool, error) {
	if w == nil || w.DayKey == "" || w.WalletAddress == "" {
		return nil, false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.data[w.DayKey]; exists {
		return existing.Clone(), false, nil
	}

	stored := w.Clone()
	stored.Status = domain.PayoutPending
	if stored.CreatedAt == 0 {
		stored.CreatedAt = time.Now().Unix()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.data[w.DayKey] = stored
	return stored.Clone(), true, nil
}

// UpdateLeg persists the outcome fields of one leg.
func (s *WinnerStore) UpdateLeg(_ context.Context, dayKey string, leg *domain.Leg) error {
	if leg == nil || !leg.Network.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[dayKey]
	if !exists {
		return storage.ErrNotFound
	}

	stored := w.Leg(leg.Network)
	if w.Status == domain.PayoutPaid || stored.Status == domain.LegSent {
		return storage.ErrFinalized
	}
	stored.Status = leg.Status
	stored.TransferID = leg.TransferID
	stored.Detail = leg.Detail
	w.UpdatedAt = time.Now().Unix()
	return nil
}

// SetStatus sets the payout status of a day key.
func (s *WinnerStore) SetStatus(_ context.Context, dayKey string, status domain.PayoutStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[dayKey]
	if !exists {
		return storage.ErrNotFound
	}
	if w.Status == domain.PayoutPaid {
		return storage.ErrFinalized
	}
	w.Status = status
	w.UpdatedAt = time.Now().Unix()
	return nil
}

// MarkPaid force-sets status paid with operator notes.
func (s *WinnerStore) MarkPaid(_ context.Context, dayKey, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[dayKey]
	if !exists {
		return storage.ErrNotFound
	}
	w.Status = domain.PayoutPaid
	w.Notes = notes
	w.UpdatedAt = time.Now().Unix()
	return nil
}

// Recent retrieves up to limit records ordered by day_key DESC.
func (s *WinnerStore) Recent(_ context.Context, limit int) ([]*domain.Winner, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Winner, 0, len(s.data))
	for _, w := range s.data {
		result = append(result, w.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DayKey > result[j].DayKey
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Compile-time interface check
var _ storage.WinnerStore = (*WinnerStore)(nil)

package memory

import (
	"context"
	"sort"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// ScoreStore is an in-memory implementation of storage.ScoreStore.
// It flags payments held by the PaymentStore it was created with.
type ScoreStore struct {
	payments *PaymentStore
	nextID   int64
	data     []*domain.Score
}

// NewScoreStore creates a new in-memory score store bound to payments.
func NewScoreStore(payments *PaymentStore) *ScoreStore {
	return &ScoreStore{payments: payments}
}

// Admit inserts a score and flags its payment under a single lock.
func (s *ScoreStore) Admit(_ context.Context, sc *domain.Score) error {
	if sc == nil || sc.PaymentID == 0 {
		return storage.ErrInvalidInput
	}

	s.payments.mu.Lock()
	defer s.payments.mu.Unlock()

	p, exists := s.payments.data[sc.PaymentID]
	if !exists {
		return storage.ErrNotFound
	}
	if p.ScoreSubmitted {
		return storage.ErrAlreadySubmitted
	}

	p.ScoreSubmitted = true
	p.SessionUsed = true

	s.nextID++
	sc.ID = s.nextID
	scoreCopy := *sc
	s.data = append(s.data, &scoreCopy)
	return nil
}

// CountAbove counts scores of a day key strictly greater than score.
func (s *ScoreStore) CountAbove(_ context.Context, dayKey string, score int64) (int, error) {
	s.payments.mu.RLock()
	defer s.payments.mu.RUnlock()

	n := 0
	for _, sc := range s.data {
		if sc.DayKey == dayKey && sc.Score > score {
			n++
		}
	}
	return n, nil
}

// Top retrieves up to limit scores ordered by score DESC, submitted_at ASC, id ASC.
func (s *ScoreStore) Top(_ context.Context, dayKey string, limit int) ([]*domain.Score, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.payments.mu.RLock()
	defer s.payments.mu.RUnlock()

	var result []*domain.Score
	for _, sc := range s.data {
		if sc.DayKey == dayKey {
			scoreCopy := *sc
			result = append(result, &scoreCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SubmittedAt != b.SubmittedAt {
			return a.SubmittedAt < b.SubmittedAt
		}
		return a.ID < b.ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Compile-time interface check
var _ storage.ScoreStore = (*ScoreStore)(nil)

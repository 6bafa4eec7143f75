package memory

import (
	"context"
	"sort"
	"sync"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// AttemptLog is an in-memory implementation of storage.AttemptLog.
type AttemptLog struct {
	mu   sync.RWMutex
	data []*domain.LegAttempt
}

// NewAttemptLog creates a new in-memory attempt log.
func NewAttemptLog() *AttemptLog {
	return &AttemptLog{}
}

// Append records one attempt.
func (s *AttemptLog) Append(_ context.Context, a *domain.LegAttempt) error {
	if a == nil || a.LegID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attemptCopy := *a
	s.data = append(s.data, &attemptCopy)
	return nil
}

// GetByDay retrieves attempts ordered by attempted_at ASC.
func (s *AttemptLog) GetByDay(_ context.Context, dayKey string) ([]*domain.LegAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LegAttempt
	for _, a := range s.data {
		if a.DayKey == dayKey {
			attemptCopy := *a
			result = append(result, &attemptCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AttemptedAt < result[j].AttemptedAt
	})
	return result, nil
}

// Compile-time interface check
var _ storage.AttemptLog = (*AttemptLog)(nil)

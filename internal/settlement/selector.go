package settlement

import (
	"context"
	"errors"
	"fmt"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// ErrNoScores is returned when a day key has no scores. Settlement treats it
// as nothing to settle.
var ErrNoScores = errors.New("no scores for day")

// Selector picks the winning score of a day.
type Selector struct {
	scores storage.ScoreStore
}

// NewSelector creates a new Selector.
func NewSelector(scores storage.ScoreStore) *Selector {
	return &Selector{scores: scores}
}

// SelectWinner returns the highest score of dayKey. Ties go to the earliest
// submission, then to the lowest id.
func (s *Selector) SelectWinner(ctx context.Context, dayKey string) (*domain.Score, error) {
	top, err := s.scores.Top(ctx, dayKey, 1)
	if err != nil {
		return nil, fmt.Errorf("select winner of %s: %w", dayKey, err)
	}
	if len(top) == 0 {
		return nil, ErrNoScores
	}
	return top[0], nil
}

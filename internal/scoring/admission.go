// Package scoring admits game results against anti-cheat rules and
// session state, and ranks them per day.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/observability"
	"arcade-pot/internal/session"
	"arcade-pot/internal/storage"
)

// Session errors surfaced by admission.
var (
	ErrInvalidSession   = session.ErrInvalidSession
	ErrSessionNotFound  = session.ErrSessionNotFound
	ErrAlreadySubmitted = session.ErrAlreadySubmitted
)

// LeaderboardSize is the number of scores returned by Leaderboard.
const LeaderboardSize = 10

// SessionValidator resolves a credential to its payment.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Payment, error)
}

// AdmissionOptions configures Admission.
type AdmissionOptions struct {
	Sessions SessionValidator
	Scores   storage.ScoreStore
	Now      func() time.Time
	Log      slog.Logger
}

// Admission validates and records scores.
type Admission struct {
	sessions SessionValidator
	scores   storage.ScoreStore
	now      func() time.Time
	log      slog.Logger
}

// NewAdmission creates a new Admission.
func NewAdmission(opts AdmissionOptions) *Admission {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	return &Admission{
		sessions: opts.Sessions,
		scores:   opts.Scores,
		now:      opts.Now,
		log:      opts.Log,
	}
}

// Admit validates a submission, consumes its session and returns the
// player's 1-based rank for the day.
func (a *Admission) Admit(ctx context.Context, sub Submission) (int, error) {
	rank, err := a.admit(ctx, sub)
	observability.RecordScoreSubmission(outcome(err))
	if err != nil {
		a.log.Debugf("Rejected score %d (%d frames, %s): %v", sub.Score, sub.Frames, sub.GameMode, err)
	}
	return rank, err
}

func (a *Admission) admit(ctx context.Context, sub Submission) (int, error) {
	if err := CheckRules(sub); err != nil {
		return 0, err
	}

	payment, err := a.sessions.Validate(ctx, sub.Token)
	if err != nil {
		return 0, err
	}

	now := a.now().UTC()
	score := &domain.Score{
		PaymentID:     payment.ID,
		WalletAddress: payment.WalletAddress,
		Network:       payment.Network,
		Score:         sub.Score,
		Frames:        sub.Frames,
		GameMode:      sub.GameMode,
		Turbo:         sub.Turbo,
		SubmittedAt:   now.Unix(),
		DayKey:        domain.DayKey(now),
	}
	if err := a.scores.Admit(ctx, score); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadySubmitted):
			return 0, ErrAlreadySubmitted
		case errors.Is(err, storage.ErrNotFound):
			return 0, ErrSessionNotFound
		default:
			return 0, fmt.Errorf("record score: %w", err)
		}
	}

	above, err := a.scores.CountAbove(ctx, score.DayKey, score.Score)
	if err != nil {
		return 0, fmt.Errorf("rank score: %w", err)
	}
	a.log.Infof("Admitted score %d for %s payment %d, rank %d", score.Score, score.Network, payment.ID, above+1)
	return above + 1, nil
}

// Leaderboard returns the day's top scores ordered by score, then submission time.
func (a *Admission) Leaderboard(ctx context.Context, dayKey string) ([]*domain.Score, error) {
	scores, err := a.scores.Top(ctx, dayKey, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return scores, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrTooFast):
		return "too_fast"
	case errors.Is(err, ErrImpossibleScore):
		return "impossible"
	case IsValidationError(err):
		return "invalid"
	case errors.Is(err, ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrSessionNotFound):
		return "invalid_session"
	default:
		return "error"
	}
}

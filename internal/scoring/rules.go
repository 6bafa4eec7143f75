package scoring

import (
	"errors"
	"fmt"
)

// Anti-cheat bounds.
const (
	// MaxScore is the absolute ceiling of the game.
	MaxScore = 999990

	// MinFrames is 30 seconds of play at 60 fps.
	MinFrames = 1800

	// QuickGameMaxScore is the highest score accepted below MinFrames.
	QuickGameMaxScore = 100

	// MaxPointsPerFrame bounds the scoring rate.
	MaxPointsPerFrame = 50
)

// GameModes is the set of accepted game modes.
var GameModes = []string{"pacman", "mspacman", "cookie", "otto"}

// Rule errors, in evaluation order.
var (
	ErrInvalidScore    = errors.New("invalid score value")
	ErrInvalidFrames   = errors.New("invalid frames value")
	ErrInvalidGameMode = errors.New("invalid game mode")
	ErrTooFast         = errors.New("game ended too quickly for that score")
	ErrImpossibleScore = errors.New("score exceeds maximum possible for the reported game duration")
)

// Submission is a game result presented with its credential.
type Submission struct {
	Token    string
	Score    int64
	Frames   int64
	GameMode string
	Turbo    bool
}

// CheckRules applies the structural and rate rules. The first failing rule wins.
func CheckRules(s Submission) error {
	if s.Score < 0 || s.Score > MaxScore {
		return fmt.Errorf("%w: %d", ErrInvalidScore, s.Score)
	}
	if s.Frames < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrames, s.Frames)
	}
	if !validMode(s.GameMode) {
		return fmt.Errorf("%w: %q", ErrInvalidGameMode, s.GameMode)
	}
	if s.Frames < MinFrames && s.Score > QuickGameMaxScore {
		return ErrTooFast
	}
	// ceil(score/rate) > frames; frames*rate would overflow for huge frame counts
	if (s.Score+MaxPointsPerFrame-1)/MaxPointsPerFrame > s.Frames {
		return ErrImpossibleScore
	}
	return nil
}

// IsValidationError reports whether err is a rule violation rather than a session or storage failure.
func IsValidationError(err error) bool {
	for _, rule := range []error{ErrInvalidScore, ErrInvalidFrames, ErrInvalidGameMode, ErrTooFast, ErrImpossibleScore} {
		if errors.Is(err, rule) {
			return true
		}
	}
	return false
}

func validMode(mode string) bool {
	for _, m := range GameModes {
		if m == mode {
			return true
		}
	}
	return false
}

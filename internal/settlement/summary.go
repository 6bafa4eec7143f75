package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/ledger"
	"arcade-pot/internal/storage"
)

// HistorySize is the number of past settlements returned by History.
const HistorySize = 7

// DaySummary is the operator view of one day key.
type DaySummary struct {
	DayKey string
	// Leader is the current best score, nil when nobody played.
	Leader *domain.Score
	Pot    *ledger.Pot
	Prizes map[domain.Network]decimal.Decimal
	House  map[domain.Network]decimal.Decimal
	// Winner is the settlement record, nil before the first run.
	Winner   *domain.Winner
	Attempts []*domain.LegAttempt
}

// Summary assembles the live pot, leader and settlement record of dayKey.
func (o *Orchestrator) Summary(ctx context.Context, dayKey string) (*DaySummary, error) {
	if _, err := domain.ParseDayKey(dayKey); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	pot, err := o.pots.PotFor(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("load pot of %s: %w", dayKey, err)
	}
	summary := &DaySummary{
		DayKey: dayKey,
		Pot:    pot,
		Prizes: make(map[domain.Network]decimal.Decimal, len(domain.Networks)),
		House:  make(map[domain.Network]decimal.Decimal, len(domain.Networks)),
	}
	for _, network := range domain.Networks {
		summary.Prizes[network], summary.House[network] = ledger.Split(network, pot.Native(network))
	}

	leader, err := o.selector.SelectWinner(ctx, dayKey)
	switch {
	case err == nil:
		summary.Leader = leader
	case !errors.Is(err, ErrNoScores):
		return nil, err
	}

	winner, err := o.winners.Get(ctx, dayKey)
	switch {
	case err == nil:
		summary.Winner = winner
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("load winner of %s: %w", dayKey, err)
	}

	if o.attempts != nil {
		attempts, err := o.attempts.GetByDay(ctx, dayKey)
		if err != nil {
			o.log.Warnf("Load attempts of %s: %v", dayKey, err)
		}
		summary.Attempts = attempts
	}
	return summary, nil
}

// History returns the most recent settlement records, newest first.
func (o *Orchestrator) History(ctx context.Context) ([]*domain.Winner, error) {
	winners, err := o.winners.Recent(ctx, HistorySize)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return winners, nil
}

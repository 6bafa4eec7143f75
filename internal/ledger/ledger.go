// Package ledger aggregates daily pools from recorded payments.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

// PrizeShare is the fraction of each pool paid to the winner.
var PrizeShare = decimal.RequireFromString("0.9")

// Pool is one network's total for a day.
type Pool struct {
	Native  decimal.Decimal
	USD     float64
	Players int
}

// Pot is the per-network pools of a day key valued at payment time.
type Pot struct {
	DayKey      string
	Pools       map[domain.Network]Pool
	USDTotal    float64
	PlayerCount int
}

// Native returns the pool of network, zero when nobody paid on it.
func (p *Pot) Native(network domain.Network) decimal.Decimal {
	return p.Pools[network].Native
}

// PrizeUSD estimates the winner's share in USD.
func (p *Pot) PrizeUSD() float64 {
	share, _ := PrizeShare.Float64()
	return p.USDTotal * share
}

// Ledger reads pots. It never mutates payments.
type Ledger struct {
	payments storage.PaymentStore
}

// New creates a new Ledger.
func New(payments storage.PaymentStore) *Ledger {
	return &Ledger{payments: payments}
}

// PotFor sums the payments of dayKey. Every supported network is present
// in the result, with a zero pool when it had no payments.
func (l *Ledger) PotFor(ctx context.Context, dayKey string) (*Pot, error) {
	totals, err := l.payments.TotalsByDay(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("sum payments of %s: %w", dayKey, err)
	}

	pot := &Pot{
		DayKey: dayKey,
		Pools:  make(map[domain.Network]Pool, len(domain.Networks)),
	}
	for _, network := range domain.Networks {
		total, ok := totals[network]
		if !ok {
			pot.Pools[network] = Pool{Native: decimal.Zero}
			continue
		}
		pot.Pools[network] = Pool{Native: total.Native, USD: total.USD, Players: total.Count}
		pot.USDTotal += total.USD
		pot.PlayerCount += total.Count
	}
	return pot, nil
}

// Split divides a pool into the winner's prize and the house cut.
// Prize is truncated to the network's base unit so that prize + house == pool.
func Split(network domain.Network, pool decimal.Decimal) (prize, house decimal.Decimal) {
	prize = pool.Mul(PrizeShare).Truncate(network.Decimals())
	return prize, pool.Sub(prize)
}

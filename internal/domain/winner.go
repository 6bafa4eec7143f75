package domain

import "github.com/shopspring/decimal"

// PayoutStatus is the settlement state of a day key.
type PayoutStatus string

const (
	PayoutPending         PayoutStatus = "pending"
	PayoutPartialOrManual PayoutStatus = "partial_or_manual"
	PayoutPaid            PayoutStatus = "paid"
)

// String returns the string representation of PayoutStatus.
func (s PayoutStatus) String() string {
	return string(s)
}

// LegStatus is the state of one network's portion of a settlement.
type LegStatus string

const (
	LegPending        LegStatus = "pending"
	LegSent           LegStatus = "sent"
	LegFailed         LegStatus = "failed"
	LegManualRequired LegStatus = "manual_required"
	LegNoPool         LegStatus = "no_pool"
)

// Resolved reports whether nothing more is owed on the leg.
func (s LegStatus) Resolved() bool {
	return s == LegSent || s == LegNoPool
}

// Leg is one network's pool, prize split and transfer outcome.
type Leg struct {
	Network    Network
	Pool       decimal.Decimal
	Prize      decimal.Decimal
	House      decimal.Decimal
	Status     LegStatus
	TransferID string
	Detail     string // FAILED: <reason>, manual instructions, etc.
}

// Winner is the settlement record for one day key.
type Winner struct {
	DayKey        string
	WalletAddress string
	Network       Network
	Score         int64
	Legs          map[Network]*Leg
	Status        PayoutStatus
	Notes         string
	CreatedAt     int64 // unix seconds, UTC
	UpdatedAt     int64
}

// Leg returns the leg for n, creating an empty one if missing.
func (w *Winner) Leg(n Network) *Leg {
	if w.Legs == nil {
		w.Legs = make(map[Network]*Leg, len(Networks))
	}
	leg, ok := w.Legs[n]
	if !ok {
		leg = &Leg{Network: n, Status: LegPending}
		w.Legs[n] = leg
	}
	return leg
}

// Clone returns a deep copy of the winner record.
func (w *Winner) Clone() *Winner {
	c := *w
	c.Legs = make(map[Network]*Leg, len(w.Legs))
	for n, leg := range w.Legs {
		legCopy := *leg
		c.Legs[n] = &legCopy
	}
	return &c
}

// LegAttempt is one recorded transfer attempt for a leg.
type LegAttempt struct {
	LegID       string
	DayKey      string
	Network     Network
	Wallet      string
	Prize       decimal.Decimal
	Status      LegStatus
	TransferID  string
	Detail      string
	AttemptedAt int64 // unix milliseconds
}

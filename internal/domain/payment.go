package domain

import "github.com/shopspring/decimal"

// Payment is one verified entry fee.
// Corresponds to the payments table. TxID is globally unique.
type Payment struct {
	ID             int64
	WalletAddress  string
	Network        Network
	TxID           string          // transaction signature or hash
	AmountNative   decimal.Decimal // whole native units (SOL, ETH)
	FeeUSD         float64         // entry fee charged
	PriceUSD       float64         // native asset price at payment time
	SessionID      string
	SessionToken   string
	SessionUsed    bool
	ScoreSubmitted bool
	CreatedAt      int64 // unix seconds, UTC
	DayKey         string
}

// ValueUSD returns the payment-time USD value of the native amount paid.
func (p *Payment) ValueUSD() float64 {
	v, _ := p.AmountNative.Mul(decimal.NewFromFloat(p.PriceUSD)).Float64()
	return v
}

package api

import (
	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/ledger"
)

// shortenWallet renders first6...last4 for public display.
func shortenWallet(addr string) string {
	if len(addr) < 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func amount(network domain.Network, d decimal.Decimal) string {
	return d.StringFixed(network.DisplayPlaces())
}

func roundUSD(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

type scoreView struct {
	Wallet      string `json:"wallet"`
	Chain       string `json:"chain"`
	Score       int64  `json:"score"`
	Frames      int64  `json:"frames,omitempty"`
	GameMode    string `json:"gameMode"`
	Turbo       bool   `json:"turbo"`
	SubmittedAt int64  `json:"submittedAt,omitempty"`
}

func publicScore(s *domain.Score) scoreView {
	return scoreView{
		Wallet:   shortenWallet(s.WalletAddress),
		Chain:    s.Network.String(),
		Score:    s.Score,
		GameMode: s.GameMode,
		Turbo:    s.Turbo,
	}
}

func fullScore(s *domain.Score) *scoreView {
	if s == nil {
		return nil
	}
	return &scoreView{
		Wallet:      s.WalletAddress,
		Chain:       s.Network.String(),
		Score:       s.Score,
		Frames:      s.Frames,
		GameMode:    s.GameMode,
		Turbo:       s.Turbo,
		SubmittedAt: s.SubmittedAt,
	}
}

type potView struct {
	SolTotal       string  `json:"solTotal"`
	EthTotal       string  `json:"ethTotal"`
	USDTotal       float64 `json:"usdTotal"`
	PlayerCount    int     `json:"playerCount"`
	WinnerPrizeUSD float64 `json:"winnerPrizeUsd"`
}

func newPotView(p *ledger.Pot) potView {
	return potView{
		SolTotal:       amount(domain.NetworkSolana, p.Native(domain.NetworkSolana)),
		EthTotal:       amount(domain.NetworkBase, p.Native(domain.NetworkBase)),
		USDTotal:       roundUSD(p.USDTotal),
		PlayerCount:    p.PlayerCount,
		WinnerPrizeUSD: roundUSD(p.PrizeUSD()),
	}
}

type legView struct {
	Pool       string `json:"pool"`
	Prize      string `json:"prize"`
	House      string `json:"house"`
	Status     string `json:"status"`
	TransferID string `json:"transferId,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type winnerView struct {
	DayKey    string             `json:"dayKey"`
	Wallet    string             `json:"wallet"`
	Chain     string             `json:"chain"`
	Score     int64              `json:"score"`
	SolPrize  string             `json:"solPrize"`
	EthPrize  string             `json:"ethPrize"`
	Status    string             `json:"payoutStatus"`
	Notes     string             `json:"notes,omitempty"`
	Legs      map[string]legView `json:"legs,omitempty"`
	CreatedAt int64              `json:"createdAt,omitempty"`
	UpdatedAt int64              `json:"updatedAt,omitempty"`
}

func prizeOf(w *domain.Winner, n domain.Network) string {
	prize := decimal.Zero
	if leg, ok := w.Legs[n]; ok {
		prize = leg.Prize
	}
	return amount(n, prize)
}

// publicWinner omits legs and the full wallet.
func publicWinner(w *domain.Winner) winnerView {
	return winnerView{
		DayKey:   w.DayKey,
		Wallet:   shortenWallet(w.WalletAddress),
		Chain:    w.Network.String(),
		Score:    w.Score,
		SolPrize: prizeOf(w, domain.NetworkSolana),
		EthPrize: prizeOf(w, domain.NetworkBase),
		Status:   w.Status.String(),
	}
}

func fullWinner(w *domain.Winner) *winnerView {
	if w == nil {
		return nil
	}
	v := publicWinner(w)
	v.Wallet = w.WalletAddress
	v.Notes = w.Notes
	v.CreatedAt = w.CreatedAt
	v.UpdatedAt = w.UpdatedAt
	v.Legs = make(map[string]legView, len(w.Legs))
	for _, n := range domain.Networks {
		leg, ok := w.Legs[n]
		if !ok {
			continue
		}
		v.Legs[n.String()] = legView{
			Pool:       amount(n, leg.Pool),
			Prize:      amount(n, leg.Prize),
			House:      amount(n, leg.House),
			Status:     string(leg.Status),
			TransferID: leg.TransferID,
			Detail:     leg.Detail,
		}
	}
	return &v
}

type attemptView struct {
	LegID       string `json:"legId"`
	Chain       string `json:"chain"`
	Wallet      string `json:"wallet"`
	Prize       string `json:"prize"`
	Status      string `json:"status"`
	TransferID  string `json:"transferId,omitempty"`
	Detail      string `json:"detail,omitempty"`
	AttemptedAt int64  `json:"attemptedAt"`
}

type paymentView struct {
	ID             int64   `json:"id"`
	WalletAddress  string  `json:"walletAddress"`
	Chain          string  `json:"chain"`
	TxSignature    string  `json:"txSignature"`
	AmountNative   string  `json:"amountNative"`
	AmountUSD      float64 `json:"amountUsd"`
	PriceUSD       float64 `json:"priceAtPayment"`
	SessionUsed    bool    `json:"sessionUsed"`
	ScoreSubmitted bool    `json:"scoreSubmitted"`
	CreatedAt      int64   `json:"createdAt"`
	DayKey         string  `json:"dayKey"`
}

// newPaymentView never includes the session credential.
func newPaymentView(p *domain.Payment) paymentView {
	return paymentView{
		ID:             p.ID,
		WalletAddress:  p.WalletAddress,
		Chain:          p.Network.String(),
		TxSignature:    p.TxID,
		AmountNative:   p.AmountNative.String(),
		AmountUSD:      p.FeeUSD,
		PriceUSD:       p.PriceUSD,
		SessionUsed:    p.SessionUsed,
		ScoreSubmitted: p.ScoreSubmitted,
		CreatedAt:      p.CreatedAt,
		DayKey:         p.DayKey,
	}
}

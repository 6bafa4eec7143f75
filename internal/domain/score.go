package domain

// Score is one admitted game result. Immutable once written.
type Score struct {
	ID            int64
	PaymentID     int64
	WalletAddress string
	Network       Network
	Score         int64
	Frames        int64
	GameMode      string
	Turbo         bool
	SubmittedAt   int64 // unix seconds, UTC
	DayKey        string
}

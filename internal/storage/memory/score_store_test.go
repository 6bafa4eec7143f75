package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
)

func admit(t *testing.T, payments *PaymentStore, scores *ScoreStore, tx string, score, at int64) *domain.Score {
	t.Helper()
	ctx := context.Background()

	p := newPayment(tx, "2024-01-01", domain.NetworkSolana, "0.01")
	if err := payments.Insert(ctx, p); err != nil {
		t.Fatalf("Insert payment failed: %v", err)
	}
	sc := &domain.Score{
		PaymentID:     p.ID,
		WalletAddress: p.WalletAddress,
		Network:       p.Network,
		Score:         score,
		Frames:        5000,
		GameMode:      "pacman",
		SubmittedAt:   at,
		DayKey:        p.DayKey,
	}
	if err := scores.Admit(ctx, sc); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	return sc
}

func TestScoreStore_AdmitFlagsPayment(t *testing.T) {
	payments := NewPaymentStore()
	scores := NewScoreStore(payments)
	ctx := context.Background()

	sc := admit(t, payments, scores, "tx1", 1200, 1)

	p, _ := payments.GetBySessionToken(ctx, "token-tx1")
	if !p.ScoreSubmitted || !p.SessionUsed {
		t.Errorf("payment flags not set: submitted=%v used=%v", p.ScoreSubmitted, p.SessionUsed)
	}

	again := *sc
	if err := scores.Admit(ctx, &again); !errors.Is(err, storage.ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}

	if err := scores.Admit(ctx, &domain.Score{PaymentID: 999}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScoreStore_RankAndOrder(t *testing.T) {
	payments := NewPaymentStore()
	scores := NewScoreStore(payments)
	ctx := context.Background()

	admit(t, payments, scores, "a", 500, 10)
	late := admit(t, payments, scores, "b", 300, 30)
	early := admit(t, payments, scores, "c", 300, 20)
	admit(t, payments, scores, "d", 100, 5)

	above, _ := scores.CountAbove(ctx, "2024-01-01", 300)
	if above != 1 {
		t.Errorf("CountAbove(300) = %d, want 1", above)
	}

	top, err := scores.Top(ctx, "2024-01-01", 3)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(top))
	}
	if top[0].Score != 500 || top[1].ID != early.ID || top[2].ID != late.ID {
		t.Errorf("unexpected order: %d, %d, %d", top[0].Score, top[1].ID, top[2].ID)
	}
}

func TestScoreStore_ConcurrentAdmitSamePayment(t *testing.T) {
	payments := NewPaymentStore()
	scores := NewScoreStore(payments)
	ctx := context.Background()

	p := newPayment("race", "2024-01-01", domain.NetworkBase, "0.0001")
	if err := payments.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := scores.Admit(ctx, &domain.Score{PaymentID: p.ID, Score: int64(i), DayKey: p.DayKey})
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("expected exactly one admission, got %d", admitted)
	}
}

package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/session"
	"arcade-pot/internal/storage/memory"
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current time and advances by one second.
func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

type fixture struct {
	issuer    *session.Issuer
	admission *Admission
	txSeq     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &tickingClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	payments := memory.NewPaymentStore()
	scores := memory.NewScoreStore(payments)

	issuer, err := session.NewIssuer(session.IssuerOptions{
		Payments: payments,
		Secret:   []byte("test-secret"),
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return &fixture{
		issuer:    issuer,
		admission: NewAdmission(AdmissionOptions{Sessions: issuer, Scores: scores, Now: clock.Now}),
	}
}

func (f *fixture) token(t *testing.T, wallet string) string {
	t.Helper()
	f.txSeq++
	issued, err := f.issuer.Issue(context.Background(), session.IssueRequest{
		Wallet:       wallet,
		Network:      domain.NetworkBase,
		TxID:         fmt.Sprintf("0xtx%d", f.txSeq),
		AmountNative: decimal.RequireFromString("0.0001"),
		FeeUSD:       0.25,
		PriceUSD:     2500,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return issued.Token
}

func play(token string, score int64) Submission {
	return Submission{Token: token, Score: score, Frames: 36000, GameMode: "pacman"}
}

func TestAdmission_Rank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, score := range []int64{500, 300, 300, 100} {
		if _, err := f.admission.Admit(ctx, play(f.token(t, fmt.Sprintf("0xplayer%d", i)), score)); err != nil {
			t.Fatalf("Admit(%d): %v", score, err)
		}
	}

	rank, err := f.admission.Admit(ctx, play(f.token(t, "0xlate"), 300))
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if rank != 2 {
		t.Errorf("rank = %d, want 2", rank)
	}

	rank, err = f.admission.Admit(ctx, play(f.token(t, "0xtop"), 900))
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if rank != 1 {
		t.Errorf("rank = %d, want 1", rank)
	}
}

func TestAdmission_SecondSubmissionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.token(t, "0xplayer")

	if _, err := f.admission.Admit(ctx, play(token, 1000)); err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	if _, err := f.admission.Admit(ctx, play(token, 2000)); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second Admit = %v, want ErrAlreadySubmitted", err)
	}
}

func TestAdmission_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "0xplayer")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(score int64) {
			defer wg.Done()
			_, err := f.admission.Admit(context.Background(), play(token, score))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadySubmitted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(1000 + i))
	}
	wg.Wait()

	if successes != 1 || rejected != workers-1 {
		t.Errorf("successes=%d rejected=%d, want 1 and %d", successes, rejected, workers-1)
	}
}

func TestAdmission_RulesBeforeSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An invalid token with a bad score reports the score rule, not the session.
	_, err := f.admission.Admit(ctx, Submission{Token: "garbage", Score: 500, Frames: 1000, GameMode: "pacman"})
	if !errors.Is(err, ErrTooFast) {
		t.Errorf("Admit = %v, want ErrTooFast", err)
	}

	_, err = f.admission.Admit(ctx, play("garbage", 10))
	if !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Admit = %v, want ErrInvalidSession", err)
	}
}

func TestAdmission_RejectedRuleKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.token(t, "0xplayer")

	if _, err := f.admission.Admit(ctx, Submission{Token: token, Score: 6000, Frames: 100, GameMode: "pacman"}); err == nil {
		t.Fatal("expected rule violation")
	}
	if _, err := f.issuer.Validate(ctx, token); err != nil {
		t.Errorf("session should still be valid after a rejected score: %v", err)
	}
}

func TestAdmission_Leaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		score := int64(100 * (i % 4))
		if _, err := f.admission.Admit(ctx, play(f.token(t, fmt.Sprintf("0xplayer%02d", i)), score)); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}

	top, err := f.admission.Leaderboard(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(top) != LeaderboardSize {
		t.Fatalf("len = %d, want %d", len(top), LeaderboardSize)
	}
	if top[0].Score != 300 || top[0].WalletAddress != "0xplayer03" {
		t.Errorf("leader = %+v, want earliest 300", top[0])
	}
	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		if cur.Score > prev.Score || (cur.Score == prev.Score && cur.SubmittedAt < prev.SubmittedAt) {
			t.Errorf("leaderboard out of order at %d: %+v after %+v", i, cur, prev)
		}
	}
}

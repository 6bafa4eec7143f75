package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/storage"
	"arcade-pot/internal/storage/memory"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newIssuer(t *testing.T, payments storage.PaymentStore, c *clock) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(IssuerOptions{
		Payments: payments,
		Secret:   []byte("test-secret"),
		Now:      c.Now,
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func request(txID string) IssueRequest {
	return IssueRequest{
		Wallet:       testWallet,
		Network:      domain.NetworkSolana,
		TxID:         txID,
		AmountNative: decimal.RequireFromString("0.0025"),
		FeeUSD:       0.25,
		PriceUSD:     100,
	}
}

func TestIssuer_IssueAndValidate(t *testing.T) {
	payments := memory.NewPaymentStore()
	c := &clock{now: time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)}
	issuer := newIssuer(t, payments, c)
	ctx := context.Background()

	issued, err := issuer.Issue(ctx, request("sig-1"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Payment.ID == 0 {
		t.Error("expected payment id to be set")
	}
	if issued.Payment.DayKey != "2024-03-01" {
		t.Errorf("DayKey = %s, want 2024-03-01", issued.Payment.DayKey)
	}
	if !issued.ExpiresAt.Equal(c.Now().Add(2 * time.Hour)) {
		t.Errorf("ExpiresAt = %v", issued.ExpiresAt)
	}

	claims, err := issuer.Parse(issued.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Wallet != testWallet || claims.Network != domain.NetworkSolana {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.SessionID != issued.Payment.SessionID {
		t.Errorf("session id mismatch: %s vs %s", claims.SessionID, issued.Payment.SessionID)
	}

	payment, err := issuer.Validate(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if payment.TxID != "sig-1" {
		t.Errorf("TxID = %s, want sig-1", payment.TxID)
	}
}

func TestIssuer_Duplicate(t *testing.T) {
	payments := memory.NewPaymentStore()
	issuer := newIssuer(t, payments, &clock{now: time.Now()})
	ctx := context.Background()

	if err := issuer.CheckDuplicate(ctx, "sig-1"); err != nil {
		t.Fatalf("CheckDuplicate before issue: %v", err)
	}
	if _, err := issuer.Issue(ctx, request("sig-1")); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := issuer.CheckDuplicate(ctx, "sig-1"); !errors.Is(err, ErrDuplicateTransaction) {
		t.Errorf("CheckDuplicate = %v, want ErrDuplicateTransaction", err)
	}
	if _, err := issuer.Issue(ctx, request("sig-1")); !errors.Is(err, ErrDuplicateTransaction) {
		t.Errorf("second Issue = %v, want ErrDuplicateTransaction", err)
	}
}

func TestIssuer_ConcurrentSameTransaction(t *testing.T) {
	payments := memory.NewPaymentStore()
	issuer := newIssuer(t, payments, &clock{now: time.Now()})

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := issuer.Issue(context.Background(), request("race"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateTransaction):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || dupes != workers-1 {
		t.Errorf("successes=%d dupes=%d, want 1 and %d", successes, dupes, workers-1)
	}
}

func TestIssuer_Expired(t *testing.T) {
	payments := memory.NewPaymentStore()
	c := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := newIssuer(t, payments, c)

	issued, err := issuer.Issue(context.Background(), request("sig-1"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.Advance(2*time.Hour + time.Second)
	if _, err := issuer.Validate(context.Background(), issued.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Validate after expiry = %v, want ErrInvalidSession", err)
	}
}

func TestIssuer_Forged(t *testing.T) {
	payments := memory.NewPaymentStore()
	c := &clock{now: time.Now()}
	issuer := newIssuer(t, payments, c)

	issued, err := issuer.Issue(context.Background(), request("sig-1"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewIssuer(IssuerOptions{Payments: payments, Secret: []byte("other-secret"), Now: c.Now})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	if _, err := other.Validate(context.Background(), issued.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("foreign secret = %v, want ErrInvalidSession", err)
	}

	tampered := issued.Token + "A"
	if _, err := issuer.Validate(context.Background(), tampered); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("tampered token = %v, want ErrInvalidSession", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "x", Network: domain.NetworkBase})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := issuer.Parse(unsigned); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("unsigned token = %v, want ErrInvalidSession", err)
	}
}

func TestIssuer_SessionNotFound(t *testing.T) {
	c := &clock{now: time.Now()}
	issuer := newIssuer(t, memory.NewPaymentStore(), c)

	// Signed with the right secret but never recorded.
	other := newIssuer(t, memory.NewPaymentStore(), c)
	issued, err := other.Issue(context.Background(), request("sig-1"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.Validate(context.Background(), issued.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Validate = %v, want ErrSessionNotFound", err)
	}
}

func TestIssuer_AlreadySubmitted(t *testing.T) {
	payments := memory.NewPaymentStore()
	scores := memory.NewScoreStore(payments)
	issuer := newIssuer(t, payments, &clock{now: time.Now()})
	ctx := context.Background()

	issued, err := issuer.Issue(ctx, request("sig-1"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := scores.Admit(ctx, &domain.Score{PaymentID: issued.Payment.ID, Score: 10, DayKey: issued.Payment.DayKey}); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if _, err := issuer.Validate(ctx, issued.Token); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Validate = %v, want ErrAlreadySubmitted", err)
	}
}

type failingPayments struct {
	storage.PaymentStore
}

func (failingPayments) Insert(context.Context, *domain.Payment) error {
	return errors.New("disk full")
}

func TestIssuer_InsertFailureReturnsNoCredential(t *testing.T) {
	issuer := newIssuer(t, failingPayments{memory.NewPaymentStore()}, &clock{now: time.Now()})

	issued, err := issuer.Issue(context.Background(), request("sig-1"))
	if err == nil || issued != nil {
		t.Fatalf("Issue = %+v, %v; want nil and error", issued, err)
	}
	if errors.Is(err, ErrDuplicateTransaction) {
		t.Error("storage failure must not be reported as a duplicate")
	}
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer(IssuerOptions{Payments: memory.NewPaymentStore()})
	if err == nil || !strings.Contains(err.Error(), "secret") {
		t.Errorf("expected secret error, got %v", err)
	}
}

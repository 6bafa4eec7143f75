// Package session turns verified payments into signed single-use play credentials.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/observability"
	"arcade-pot/internal/storage"
)

// DefaultTTL is the lifetime of a credential.
const DefaultTTL = 2 * time.Hour

// Session errors.
var (
	ErrDuplicateTransaction = errors.New("this transaction has already been used for a game session")
	ErrInvalidSession       = errors.New("session expired or invalid")
	ErrSessionNotFound      = errors.New("session not found")
	ErrAlreadySubmitted     = errors.New("score already submitted for this session")
)

// Claims is the signed content of a credential.
type Claims struct {
	SessionID string         `json:"sessionId"`
	Wallet    string         `json:"walletAddress"`
	Network   domain.Network `json:"chain"`
	jwt.RegisteredClaims
}

// IssueRequest describes a verified payment to bind to a new credential.
type IssueRequest struct {
	Wallet       string
	Network      domain.Network
	TxID         string
	AmountNative decimal.Decimal
	FeeUSD       float64
	PriceUSD     float64
}

// Issued is a credential with the payment it is bound to.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	Payment   *domain.Payment
}

// IssuerOptions configures Issuer.
type IssuerOptions struct {
	Payments storage.PaymentStore
	Secret   []byte
	TTL      time.Duration
	Now      func() time.Time
	Log      slog.Logger
}

// Issuer issues and validates credentials.
type Issuer struct {
	payments storage.PaymentStore
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	log      slog.Logger
}

// NewIssuer creates a new Issuer. The secret must not be empty.
func NewIssuer(opts IssuerOptions) (*Issuer, error) {
	if opts.Payments == nil {
		return nil, errors.New("session issuer: payment store is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("session issuer: signing secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	return &Issuer{
		payments: opts.Payments,
		secret:   opts.Secret,
		ttl:      opts.TTL,
		now:      opts.Now,
		log:      opts.Log,
	}, nil
}

// TTL returns the credential lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// CheckDuplicate returns ErrDuplicateTransaction if txID already funded a session.
// The unique constraint applied by Issue remains the authoritative gate.
func (i *Issuer) CheckDuplicate(ctx context.Context, txID string) error {
	exists, err := i.payments.ExistsByTxID(ctx, txID)
	if err != nil {
		return fmt.Errorf("check transaction: %w", err)
	}
	if exists {
		return ErrDuplicateTransaction
	}
	return nil
}

// Issue records the payment and returns its credential. No credential is
// returned unless the payment row was written.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if req.TxID == "" || req.Wallet == "" || !req.Network.IsValid() {
		return nil, fmt.Errorf("%w: wallet, network and transaction are required", storage.ErrInvalidInput)
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	sessionID := uuid.NewString()

	claims := Claims{
		SessionID: sessionID,
		Wallet:    req.Wallet,
		Network:   req.Network,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	payment := &domain.Payment{
		WalletAddress: req.Wallet,
		Network:       req.Network,
		TxID:          req.TxID,
		AmountNative:  req.AmountNative,
		FeeUSD:        req.FeeUSD,
		PriceUSD:      req.PriceUSD,
		SessionID:     sessionID,
		SessionToken:  token,
		CreatedAt:     now.Unix(),
		DayKey:        domain.DayKey(now),
	}
	if err := i.payments.Insert(ctx, payment); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("record payment: %w", err)
	}

	observability.RecordSessionIssued(req.Network.String())
	i.log.Infof("Issued session %s for %s payment %d (%s)", sessionID, req.Network, payment.ID, shortID(req.TxID))

	return &Issued{Token: token, ExpiresAt: expiresAt, Payment: payment}, nil
}

// Parse verifies the signature and expiry of a credential.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if claims.SessionID == "" || !claims.Network.IsValid() {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Validate checks a credential and returns the payment it is bound to.
// A credential whose payment already has a score is reported with
// ErrAlreadySubmitted and is never valid again.
func (i *Issuer) Validate(ctx context.Context, token string) (*domain.Payment, error) {
	claims, err := i.Parse(token)
	if err != nil {
		return nil, err
	}

	payment, err := i.payments.GetBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if payment.SessionID != claims.SessionID {
		return nil, ErrInvalidSession
	}
	if payment.ScoreSubmitted {
		return payment, ErrAlreadySubmitted
	}
	return payment, nil
}

// shortID abbreviates a transaction id for logs.
func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "..." + id[len(id)-4:]
}

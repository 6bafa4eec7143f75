// Package payment verifies entry fees and exchanges them for play sessions.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/evm"
	"arcade-pot/internal/observability"
	"arcade-pot/internal/pricing"
	"arcade-pot/internal/session"
	"arcade-pot/internal/solana"
	"arcade-pot/internal/verifier"
)

// DefaultEntryFeeUSD is the entry fee charged per game.
const DefaultEntryFeeUSD = 0.25

// ErrInvalidRequest is returned for malformed verification requests.
var ErrInvalidRequest = errors.New("invalid request")

// Issuer binds verified payments to sessions.
type Issuer interface {
	CheckDuplicate(ctx context.Context, txID string) error
	Issue(ctx context.Context, req session.IssueRequest) (*session.Issued, error)
}

// Options configures Service.
type Options struct {
	Issuer    Issuer
	Verifiers []verifier.Verifier
	Oracle    pricing.Oracle
	// HouseWallets are the addresses shown to players per network.
	HouseWallets map[domain.Network]string
	EntryFeeUSD  float64
	Log          slog.Logger
}

// Service implements payment info and verification.
type Service struct {
	issuer    Issuer
	verifiers map[domain.Network]verifier.Verifier
	oracle    pricing.Oracle
	houses    map[domain.Network]string
	fee       float64
	log       slog.Logger
}

// New creates a new Service.
func New(opts Options) *Service {
	if opts.EntryFeeUSD <= 0 {
		opts.EntryFeeUSD = DefaultEntryFeeUSD
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	verifiers := make(map[domain.Network]verifier.Verifier, len(opts.Verifiers))
	for _, v := range opts.Verifiers {
		verifiers[v.Network()] = v
	}
	return &Service{
		issuer:    opts.Issuer,
		verifiers: verifiers,
		oracle:    opts.Oracle,
		houses:    opts.HouseWallets,
		fee:       opts.EntryFeeUSD,
		log:       opts.Log,
	}
}

// EntryFeeUSD returns the entry fee.
func (s *Service) EntryFeeUSD() float64 {
	return s.fee
}

// Quote is the amount due on one network.
type Quote struct {
	Network  domain.Network
	Address  string
	Amount   decimal.Decimal // entry fee in native units
	PriceUSD float64
}

// Display returns the amount rounded for players.
func (q Quote) Display() string {
	return q.Amount.StringFixed(q.Network.DisplayPlaces())
}

// Info returns current payment addresses and amounts for every network.
func (s *Service) Info(ctx context.Context) (map[domain.Network]Quote, error) {
	quotes := make(map[domain.Network]Quote, len(domain.Networks))
	for _, network := range domain.Networks {
		amount, price, err := s.expected(ctx, network)
		if err != nil {
			return nil, err
		}
		quotes[network] = Quote{
			Network:  network,
			Address:  s.houses[network],
			Amount:   amount,
			PriceUSD: price,
		}
	}
	return quotes, nil
}

// expected returns fee / price in native units.
func (s *Service) expected(ctx context.Context, network domain.Network) (decimal.Decimal, float64, error) {
	price, err := s.oracle.Price(ctx, network)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("price %s: %w", network.Asset(), err)
	}
	amount := decimal.NewFromFloat(s.fee).DivRound(decimal.NewFromFloat(price), network.Decimals())
	return amount, price, nil
}

// VerifyRequest is a player's claim of a paid entry fee.
type VerifyRequest struct {
	Network string
	TxID    string
	Wallet  string
}

// Verify checks the claimed payment on chain and issues a session for it.
// The duplicate check runs before any chain or price lookup.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*session.Issued, error) {
	start := time.Now()
	network, txID, wallet, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	issued, err := s.verify(ctx, network, txID, wallet)
	observability.RecordVerification(network.String(), verificationOutcome(err), time.Since(start))
	if err != nil {
		s.log.Infof("Verify %s %s: %v", network, txID, err)
		return nil, err
	}
	s.log.Infof("Verified %s payment %s of %s %s", network, txID, issued.Payment.AmountNative, network.Asset())
	return issued, nil
}

func (s *Service) verify(ctx context.Context, network domain.Network, txID, wallet string) (*session.Issued, error) {
	v, ok := s.verifiers[network]
	if !ok {
		return nil, fmt.Errorf("%w: network %s is not enabled", ErrInvalidRequest, network)
	}

	if err := s.issuer.CheckDuplicate(ctx, txID); err != nil {
		return nil, err
	}

	expected, price, err := s.expected(ctx, network)
	if err != nil {
		return nil, err
	}

	result, err := v.Verify(ctx, txID, expected)
	if err != nil {
		return nil, err
	}

	return s.issuer.Issue(ctx, session.IssueRequest{
		Wallet:       wallet,
		Network:      network,
		TxID:         txID,
		AmountNative: result.AmountNative,
		FeeUSD:       s.fee,
		PriceUSD:     price,
	})
}

// normalize trims the request and validates the wallet for its network.
func (s *Service) normalize(req VerifyRequest) (domain.Network, string, string, error) {
	txID := strings.TrimSpace(req.TxID)
	wallet := strings.TrimSpace(req.Wallet)
	if req.Network == "" || txID == "" || wallet == "" {
		return "", "", "", fmt.Errorf("%w: missing required fields: chain, txSignature, walletAddress", ErrInvalidRequest)
	}

	network, err := domain.ParseNetwork(req.Network)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	switch network {
	case domain.NetworkSolana:
		if err := solana.ValidateWalletAddress(wallet); err != nil {
			return "", "", "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	case domain.NetworkBase:
		normalized, err := evm.NormalizeAddress(wallet)
		if err != nil {
			return "", "", "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		wallet = normalized
		txID = strings.ToLower(txID)
	}
	return network, txID, wallet, nil
}

func verificationOutcome(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, session.ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, pricing.ErrUnavailable):
		return "price_unavailable"
	case errors.Is(err, verifier.ErrNotFound):
		return "not_found"
	case errors.Is(err, verifier.ErrReverted):
		return "reverted"
	case errors.Is(err, verifier.ErrWrongRecipient):
		return "wrong_recipient"
	case errors.Is(err, verifier.ErrZeroValue):
		return "zero_value"
	case errors.Is(err, verifier.ErrInsufficientAmount):
		return "insufficient"
	case errors.Is(err, verifier.ErrStale):
		return "stale"
	default:
		return "error"
	}
}

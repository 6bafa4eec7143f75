// Package settlement selects each day's winner and pays out the per-network
// prize pools.
//
// A day key moves absent → pending → {paid | partial_or_manual}. The pending
// record fixes the prize figures before any transfer; re-running a day in
// partial_or_manual retries only the unresolved legs.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/shopspring/decimal"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/idhash"
	"arcade-pot/internal/ledger"
	"arcade-pot/internal/observability"
	"arcade-pot/internal/storage"
)

// DefaultTransferTimeout bounds each automated transfer.
const DefaultTransferTimeout = 15 * time.Second

// Settlement errors.
var (
	ErrAlreadySettled = errors.New("day has already been paid out")
	ErrNoWinnerRecord = errors.New("no winner record for day")
	ErrTransferFailed = errors.New("transfer failed")
)

// Outcome is the result class of a settlement run.
type Outcome string

const (
	OutcomeSettled  Outcome = "settled"
	OutcomeNoScores Outcome = "no_scores"
)

// Transferer sends a native amount on one network and returns the transfer id.
// A non-empty id may accompany an error when the transfer was broadcast but
// not confirmed.
type Transferer interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error)
}

// WinnerSelector picks the winning score of a day.
type WinnerSelector interface {
	SelectWinner(ctx context.Context, dayKey string) (*domain.Score, error)
}

// PotSource sums a day's pools.
type PotSource interface {
	PotFor(ctx context.Context, dayKey string) (*ledger.Pot, error)
}

// Options configures Orchestrator.
type Options struct {
	Winners  storage.WinnerStore
	Attempts storage.AttemptLog // optional
	Selector WinnerSelector
	Pots     PotSource

	// Transferers holds automated transfer capabilities per network.
	// Networks without one settle as manual_required.
	Transferers map[domain.Network]Transferer

	TransferTimeout time.Duration
	Now             func() time.Time
	Log             slog.Logger
}

// Orchestrator runs daily settlement.
type Orchestrator struct {
	winners         storage.WinnerStore
	attempts        storage.AttemptLog
	selector        WinnerSelector
	pots            PotSource
	transferers     map[domain.Network]Transferer
	transferTimeout time.Duration
	now             func() time.Time
	log             slog.Logger

	days *keyedMutex
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = DefaultTransferTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	transferers := make(map[domain.Network]Transferer, len(opts.Transferers))
	for n, t := range opts.Transferers {
		if t != nil {
			transferers[n] = t
		}
	}
	return &Orchestrator{
		winners:         opts.Winners,
		attempts:        opts.Attempts,
		selector:        opts.Selector,
		pots:            opts.Pots,
		transferers:     transferers,
		transferTimeout: opts.TransferTimeout,
		now:             opts.Now,
		log:             opts.Log,
		days:            newKeyedMutex(),
	}
}

// Report is the result of one settlement run.
type Report struct {
	DayKey  string
	Outcome Outcome
	Status  domain.PayoutStatus
	Winner  *domain.Winner
	// Unresolved lists networks whose legs still need action.
	Unresolved []domain.Network
	// Resumed is true when the run continued an existing pending record.
	Resumed bool
}

// Note returns operator guidance for unresolved legs.
func (r *Report) Note() string {
	if len(r.Unresolved) == 0 {
		return ""
	}
	names := make([]string, len(r.Unresolved))
	for i, n := range r.Unresolved {
		names[i] = n.String()
	}
	return fmt.Sprintf("Complete the %s transfer(s) manually, then mark %s paid.", strings.Join(names, " and "), r.DayKey)
}

// Settle runs settlement for dayKey.
//
// Phases:
//  1. Refuse days already paid
//  2. Reuse the recorded pending checkpoint, or select the winner, sum the
//     pots and record one
//  3. Attempt every unresolved leg, persisting each result immediately
//  4. Set the final payout status
//
// Other processes may act on the same day. Each leg re-reads the record
// before transferring, and the stores refuse to rewrite a paid record or a
// sent leg; either case ends the run with ErrAlreadySettled.
func (o *Orchestrator) Settle(ctx context.Context, dayKey string) (*Report, error) {
	if _, err := domain.ParseDayKey(dayKey); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	unlock := o.days.Lock(dayKey)
	defer unlock()

	start := o.now()
	report, err := o.settle(ctx, dayKey)
	observability.RecordSettlement(settlementOutcome(report, err), o.now().Sub(start))
	return report, err
}

func (o *Orchestrator) settle(ctx context.Context, dayKey string) (*Report, error) {
	// Phase 1 + 2: checkpoint
	winner, resumed, err := o.checkpoint(ctx, dayKey)
	if errors.Is(err, ErrNoScores) {
		o.log.Infof("No scores for %s, nothing to settle", dayKey)
		return &Report{DayKey: dayKey, Outcome: OutcomeNoScores}, nil
	}
	if err != nil {
		return nil, err
	}
	if resumed {
		o.log.Infof("Resuming settlement of %s (status %s)", dayKey, winner.Status)
	} else {
		o.log.Infof("Recorded winner of %s: %s on %s with %d", dayKey, winner.WalletAddress, winner.Network, winner.Score)
	}

	report := &Report{DayKey: dayKey, Outcome: OutcomeSettled, Winner: winner, Resumed: resumed}

	// Phase 3: legs
	var persistErrs []error
	for _, network := range domain.Networks {
		current, err := o.winners.Get(ctx, dayKey)
		if err != nil {
			return report, fmt.Errorf("reload winner of %s: %w", dayKey, err)
		}
		if current.Status == domain.PayoutPaid {
			o.log.Infof("Settlement of %s was completed elsewhere, stopping", dayKey)
			return report, ErrAlreadySettled
		}
		if fresh := current.Leg(network); fresh.Status.Resolved() {
			*winner.Leg(network) = *fresh
			continue
		}

		leg := winner.Leg(network)
		if leg.Status.Resolved() {
			continue
		}
		o.attemptLeg(ctx, winner, leg)
		err = o.winners.UpdateLeg(ctx, dayKey, leg)
		if errors.Is(err, storage.ErrFinalized) {
			o.log.Errorf("%s leg of %s finalized elsewhere while attempting (status %s, transfer %q)",
				network, dayKey, leg.Status, leg.TransferID)
			return report, fmt.Errorf("%w: %s leg of %s changed concurrently", ErrAlreadySettled, network, dayKey)
		}
		if err != nil {
			o.log.Errorf("Persist %s leg of %s (status %s, transfer %q): %v", network, dayKey, leg.Status, leg.TransferID, err)
			persistErrs = append(persistErrs, fmt.Errorf("persist %s leg: %w", network, err))
		}
		if !leg.Status.Resolved() {
			report.Unresolved = append(report.Unresolved, network)
		}
	}

	// Phase 4: status
	status := domain.PayoutPaid
	if len(report.Unresolved) > 0 {
		status = domain.PayoutPartialOrManual
	}
	if len(persistErrs) > 0 {
		return report, errors.Join(persistErrs...)
	}
	if err := o.winners.SetStatus(ctx, dayKey, status); err != nil {
		if errors.Is(err, storage.ErrFinalized) {
			return report, fmt.Errorf("%w: %s paid concurrently", ErrAlreadySettled, dayKey)
		}
		return report, fmt.Errorf("set status of %s: %w", dayKey, err)
	}
	winner.Status = status
	report.Status = status

	if status == domain.PayoutPaid {
		o.log.Infof("Settlement of %s paid", dayKey)
	} else {
		o.log.Warnf("Settlement of %s needs action on %v", dayKey, report.Unresolved)
	}
	return report, nil
}

// checkpoint returns the durable pending record of dayKey, creating it from
// the current winner and pots when none exists.
func (o *Orchestrator) checkpoint(ctx context.Context, dayKey string) (*domain.Winner, bool, error) {
	existing, err := o.winners.Get(ctx, dayKey)
	switch {
	case err == nil:
		if existing.Status == domain.PayoutPaid {
			return nil, false, ErrAlreadySettled
		}
		return existing, true, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, false, fmt.Errorf("load winner of %s: %w", dayKey, err)
	}

	top, err := o.selector.SelectWinner(ctx, dayKey)
	if err != nil {
		return nil, false, err
	}
	pot, err := o.pots.PotFor(ctx, dayKey)
	if err != nil {
		return nil, false, fmt.Errorf("load pot of %s: %w", dayKey, err)
	}

	candidate := &domain.Winner{
		DayKey:        dayKey,
		WalletAddress: top.WalletAddress,
		Network:       top.Network,
		Score:         top.Score,
		Status:        domain.PayoutPending,
		CreatedAt:     o.now().Unix(),
	}
	for _, network := range domain.Networks {
		pool := pot.Native(network)
		prize, house := ledger.Split(network, pool)
		leg := candidate.Leg(network)
		leg.Pool = pool
		leg.Prize = prize
		leg.House = house
	}

	stored, created, err := o.winners.CreatePending(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("record pending winner of %s: %w", dayKey, err)
	}
	if stored.Status == domain.PayoutPaid {
		return nil, false, ErrAlreadySettled
	}
	// A concurrent first run may have written first; its figures win.
	return stored, !created, nil
}

// attemptLeg resolves one leg in place and records the attempt.
func (o *Orchestrator) attemptLeg(ctx context.Context, winner *domain.Winner, leg *domain.Leg) {
	switch {
	case !leg.Prize.IsPositive():
		leg.Status = domain.LegNoPool
		leg.TransferID = ""
		leg.Detail = ""
	case winner.Network != leg.Network:
		leg.Status = domain.LegManualRequired
		leg.Detail = fmt.Sprintf("winner has no %s address", leg.Network)
	default:
		transferer, ok := o.transferers[leg.Network]
		if !ok {
			leg.Status = domain.LegManualRequired
			leg.Detail = fmt.Sprintf("send %s %s to %s",
				leg.Prize.StringFixed(leg.Network.DisplayPlaces()), leg.Network.Asset(), winner.WalletAddress)
			break
		}
		o.transfer(ctx, transferer, winner, leg)
	}

	observability.RecordLegOutcome(leg.Network.String(), string(leg.Status))
	o.recordAttempt(ctx, winner, leg)
}

func (o *Orchestrator) transfer(ctx context.Context, t Transferer, winner *domain.Winner, leg *domain.Leg) {
	ctx, cancel := context.WithTimeout(ctx, o.transferTimeout)
	defer cancel()

	o.log.Infof("Sending %s %s to %s for %s", leg.Prize, leg.Network.Asset(), winner.WalletAddress, winner.DayKey)
	id, err := t.Transfer(ctx, winner.WalletAddress, leg.Prize)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTransferFailed, err)
		leg.Status = domain.LegFailed
		leg.TransferID = id
		leg.Detail = "FAILED: " + err.Error()
		o.log.Warnf("%s leg of %s: %v", leg.Network, winner.DayKey, err)
		return
	}
	leg.Status = domain.LegSent
	leg.TransferID = id
	leg.Detail = ""
	o.log.Infof("%s leg of %s sent: %s", leg.Network, winner.DayKey, id)
}

// recordAttempt appends to the attempt log. Failures are logged only.
func (o *Orchestrator) recordAttempt(ctx context.Context, winner *domain.Winner, leg *domain.Leg) {
	if o.attempts == nil {
		return
	}
	attempt := &domain.LegAttempt{
		LegID:       idhash.ComputeLegID(winner.DayKey, leg.Network, winner.WalletAddress),
		DayKey:      winner.DayKey,
		Network:     leg.Network,
		Wallet:      winner.WalletAddress,
		Prize:       leg.Prize,
		Status:      leg.Status,
		TransferID:  leg.TransferID,
		Detail:      leg.Detail,
		AttemptedAt: o.now().UnixMilli(),
	}
	if err := o.attempts.Append(ctx, attempt); err != nil {
		o.log.Warnf("Record %s attempt of %s: %v", leg.Network, winner.DayKey, err)
	}
}

// DefaultManualNotes is stored when MarkPaidManually gets empty notes.
const DefaultManualNotes = "marked paid manually"

// MarkPaidManually force-sets dayKey to paid after an operator completed
// the outstanding transfers.
func (o *Orchestrator) MarkPaidManually(ctx context.Context, dayKey, notes string) error {
	unlock := o.days.Lock(dayKey)
	defer unlock()

	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = DefaultManualNotes
	}
	if err := o.winners.MarkPaid(ctx, dayKey, notes); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoWinnerRecord
		}
		return fmt.Errorf("mark %s paid: %w", dayKey, err)
	}
	o.log.Infof("Marked %s paid manually: %s", dayKey, notes)
	return nil
}

func settlementOutcome(r *Report, err error) string {
	switch {
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case err != nil:
		return "error"
	case r.Outcome == OutcomeNoScores:
		return "no_scores"
	default:
		return string(r.Status)
	}
}

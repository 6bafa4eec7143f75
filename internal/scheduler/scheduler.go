// Package scheduler triggers daily settlement of the previous UTC day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/go-co-op/gocron/v2"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/settlement"
)

// DefaultSchedule runs at 00:00 UTC.
const DefaultSchedule = "0 0 * * *"

// DefaultRunTimeout bounds one scheduled settlement run.
const DefaultRunTimeout = 10 * time.Minute

// Settler settles one day.
type Settler interface {
	Settle(ctx context.Context, dayKey string) (*settlement.Report, error)
}

// Options configures Scheduler.
type Options struct {
	Settler    Settler
	Schedule   string
	RunTimeout time.Duration
	Now        func() time.Time
	Log        slog.Logger
}

// Scheduler runs settlement on a cron schedule in UTC.
type Scheduler struct {
	settler    Settler
	schedule   string
	runTimeout time.Duration
	now        func() time.Time
	log        slog.Logger

	cron gocron.Scheduler
}

// New creates a scheduler. The schedule is validated when Start is called.
func New(opts Options) *Scheduler {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	return &Scheduler{
		settler:    opts.Settler,
		schedule:   opts.Schedule,
		runTimeout: opts.RunTimeout,
		now:        opts.Now,
		log:        opts.Log,
	}
}

// Start registers the settlement job and starts the scheduler.
func (s *Scheduler) Start() error {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.CronJob(s.schedule, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
			defer cancel()
			s.RunOnce(ctx)
		}),
		gocron.WithName("daily-settlement"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}

	cron.Start()
	s.cron = cron
	s.log.Infof("Daily settlement scheduled (%s UTC)", s.schedule)
	return nil
}

// RunOnce settles the UTC day before now. Failures are logged and never
// propagate to the caller.
func (s *Scheduler) RunOnce(ctx context.Context) *settlement.Report {
	dayKey := domain.PreviousDayKey(s.now())
	s.log.Infof("Settling %s", dayKey)

	report, err := s.settler.Settle(ctx, dayKey)
	switch {
	case errors.Is(err, settlement.ErrAlreadySettled):
		s.log.Infof("Day %s already paid", dayKey)
		return nil
	case err != nil:
		s.log.Errorf("Settlement of %s failed: %v", dayKey, err)
		return report
	}

	switch report.Outcome {
	case settlement.OutcomeNoScores:
		s.log.Infof("No scores for %s, nothing to settle", dayKey)
	default:
		s.log.Infof("Settled %s: status=%s", dayKey, report.Status)
		if note := report.Note(); note != "" {
			s.log.Warnf("%s", note)
		}
	}
	return report
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop() error {
	if s.cron == nil {
		return nil
	}
	err := s.cron.Shutdown()
	s.cron = nil
	return err
}

// Package scheduler expires overdue pending debts and sends recurring reminders.
//
// Each reminder occurrence is claimed in a persisted watermark store before it is sent, keyed
// by (user, job, occurrence date). A restarted process therefore never repeats a delivered
// occurrence, and a run that was missed is caught up once while the occurrence is still inside
// the catch-up window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/ledger"
	"github.com/vanshika/debtbook/internal/notify"
)

// Job names used in watermarks.
const (
	JobWeeklyReport   = "weekly_report"
	JobPaydayReminder = "payday_reminder"
)

// Ledger is the part of the ledger the scheduler drives.
type Ledger interface {
	ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]domain.Debt, error)
	ExpireDebt(ctx context.Context, debtID int64) (bool, error)
	NetBalances(ctx context.Context, userID int64) ([]domain.NetBalance, error)
	Halted() bool
	Probe(ctx context.Context) error
}

// Users supplies reminder recipients and display names.
type Users interface {
	User(ctx context.Context, id int64) (domain.User, error)
	ReminderUsers(ctx context.Context) ([]domain.User, error)
}

// Watermarks persists claimed occurrences.
type Watermarks interface {
	ClaimWatermark(ctx context.Context, w domain.Watermark) (bool, error)
	ReleaseWatermark(ctx context.Context, w domain.Watermark) error
	// PruneWatermarks deletes claims made before cutoff.
	PruneWatermarks(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds scheduling policy.
type Config struct {
	ExpiryTimeout    time.Duration
	Interval         time.Duration
	ReminderInterval time.Duration
	// Location is used for users without a timezone of their own.
	Location     *time.Location
	WeeklyDay    time.Weekday
	WeeklyHour   int
	PaydayHour   int
	CatchUp      time.Duration
	Workers      int
	ItemTimeout  time.Duration
	BatchSize    int
	MinorDigits  int32
	RetryOnError bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ExpiryTimeout:    23 * time.Hour,
		Interval:         5 * time.Minute,
		ReminderInterval: 15 * time.Minute,
		Location:         time.UTC,
		WeeklyDay:        time.Monday,
		WeeklyHour:       10,
		PaydayHour:       10,
		CatchUp:          48 * time.Hour,
		Workers:          4,
		ItemTimeout:      30 * time.Second,
		BatchSize:        500,
		MinorDigits:      2,
	}
}

// Report summarizes one run.
type Report struct {
	Expired  int
	Reminded int
	Pruned   int
	Failed   int
}

// Scheduler runs the periodic jobs.
type Scheduler struct {
	ledger     Ledger
	users      Users
	watermarks Watermarks
	notifier   notify.Port
	cfg        Config
	logger     *slog.Logger
	nowFn      func() time.Time
}

// New constructs a Scheduler. A nil notifier discards events.
func New(l Ledger, users Users, watermarks Watermarks, notifier notify.Port, cfg Config, logger *slog.Logger) *Scheduler {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		ledger:     l,
		users:      users,
		watermarks: watermarks,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With("component", "scheduler"),
		nowFn:      time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Scheduler) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// RunOnce performs one expiry sweep and one reminder pass.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	expired, expErr := s.ExpireOverdue(ctx)
	reminded, remErr := s.SendReminders(ctx)
	report := Report{
		Expired:  expired.Expired,
		Reminded: reminded.Reminded,
		Pruned:   reminded.Pruned,
		Failed:   expired.Failed + reminded.Failed,
	}
	return report, errors.Join(expErr, remErr)
}

// Run executes the jobs on their intervals until ctx ends. Item failures are logged; only
// context cancellation stops the loops.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(ctx, "expiry", s.cfg.Interval, func(ctx context.Context) error {
			_, err := s.ExpireOverdue(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.loop(ctx, "reminders", s.cfg.ReminderInterval, func(ctx context.Context) error {
			_, err := s.SendReminders(ctx)
			return err
		})
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.ledger.Halted() {
			if err := s.ledger.Probe(ctx); err != nil {
				s.logger.Warn("ledger still unavailable, skipping run", "job", name, "error", err)
			}
		}
		if !s.ledger.Halted() {
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduled run finished with errors", "job", name, "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExpireOverdue rejects pending debts older than the expiry timeout. Overlapping runs are
// safe: only the run whose ExpireDebt performed the transition sends notifications.
func (s *Scheduler) ExpireOverdue(ctx context.Context) (Report, error) {
	cutoff := s.nowFn().Add(-s.cfg.ExpiryTimeout)
	debts, err := s.ledger.ListDebts(ctx, ledger.DebtFilter{
		Statuses:      []domain.DebtStatus{domain.DebtPending},
		CreatedBefore: cutoff,
		Limit:         s.cfg.BatchSize,
	})
	if err != nil {
		return Report{}, fmt.Errorf("list overdue debts: %w", err)
	}

	var expired, failed atomic.Int64
	b := batch{workers: s.cfg.Workers, itemTimeout: s.cfg.ItemTimeout}
	err = b.run(ctx, len(debts), func(itemCtx context.Context, idx int) error {
		d := debts[idx]
		ok, err := s.ledger.ExpireDebt(itemCtx, d.ID)
		if err != nil {
			failed.Add(1)
			if isTimeout(ctx, err) {
				s.logger.Warn("expiry attempt timed out, skipping", "debt_id", d.ID)
			} else {
				s.logger.Error("expiry failed", "debt_id", d.ID, "error", err)
			}
			return fmt.Errorf("expire debt %d: %w", d.ID, err)
		}
		if !ok {
			return nil
		}
		expired.Add(1)
		s.notifyExpired(itemCtx, d)
		return nil
	})

	report := Report{Expired: int(expired.Load()), Failed: int(failed.Load())}
	if report.Expired > 0 || report.Failed > 0 {
		s.logger.Info("expiry sweep done", "expired", report.Expired, "failed", report.Failed, "scanned", len(debts))
	}
	return report, err
}

func (s *Scheduler) notifyExpired(ctx context.Context, d domain.Debt) {
	for _, userID := range []int64{d.CreditorID, d.DebtorID} {
		ev := notify.NewEvent(notify.KindDebtExpired, s.nowFn())
		ev.DebtID = d.ID
		ev.Amount = d.Amount
		ev.Description = d.Description
		ev.Counterparty = s.displayName(ctx, d.Counterparty(userID))
		if err := s.notifier.Notify(ctx, userID, ev); err != nil {
			s.logger.Warn("expiry notification failed", "debt_id", d.ID, "user_id", userID, "error", err)
		}
	}
}

func (s *Scheduler) displayName(ctx context.Context, userID int64) string {
	u, err := s.users.User(ctx, userID)
	if err != nil {
		return domain.User{ID: userID}.DisplayName()
	}
	return u.DisplayName()
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/identity"
	"github.com/vanshika/debtbook/internal/notify"
)

const periodLayout = "2006-01-02"

// SendReminders delivers each due weekly report and payday reminder at most once.
func (s *Scheduler) SendReminders(ctx context.Context) (Report, error) {
	users, err := s.users.ReminderUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list reminder users: %w", err)
	}

	now := s.nowFn()
	var reminded, failed atomic.Int64
	b := batch{workers: s.cfg.Workers, itemTimeout: s.cfg.ItemTimeout}
	err = b.run(ctx, len(users), func(itemCtx context.Context, idx int) error {
		u := users[idx]
		n, err := s.remindUser(itemCtx, u, now)
		reminded.Add(int64(n))
		if err != nil {
			failed.Add(1)
			s.logger.Error("reminder failed", "user_id", u.ID, "error", err)
			return fmt.Errorf("remind user %d: %w", u.ID, err)
		}
		return nil
	})

	report := Report{Reminded: int(reminded.Load()), Failed: int(failed.Load())}

	// A claim made before the catch-up window covers an occurrence that is never due again.
	pruned, pruneErr := s.watermarks.PruneWatermarks(ctx, now.Add(-s.cfg.CatchUp))
	if pruneErr != nil {
		s.logger.Warn("watermark pruning failed", "error", pruneErr)
		err = errors.Join(err, fmt.Errorf("prune watermarks: %w", pruneErr))
	}
	report.Pruned = int(pruned)

	if report.Reminded > 0 || report.Failed > 0 || report.Pruned > 0 {
		s.logger.Info("reminder pass done", "reminded", report.Reminded, "pruned", report.Pruned,
			"failed", report.Failed, "users", len(users))
	}
	return report, err
}

func (s *Scheduler) remindUser(ctx context.Context, u domain.User, now time.Time) (int, error) {
	loc := identity.Location(u, s.cfg.Location)

	var due []string
	if occ := lastWeekly(now, loc, s.cfg.WeeklyDay, s.cfg.WeeklyHour); s.withinCatchUp(now, occ) {
		due = append(due, JobWeeklyReport)
	}
	var paydayOcc time.Time
	if len(u.PaydayDays) > 0 {
		paydayOcc = lastPayday(now, loc, u.PaydayDays, s.cfg.PaydayHour)
		if s.withinCatchUp(now, paydayOcc) {
			due = append(due, JobPaydayReminder)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	rows, err := s.ledger.NetBalances(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	summary := domain.Summarize(u.ID, rows)

	sent := 0
	for _, job := range due {
		var (
			occ  time.Time
			kind notify.Kind
		)
		switch job {
		case JobWeeklyReport:
			if summary.Empty() {
				continue
			}
			occ, kind = lastWeekly(now, loc, s.cfg.WeeklyDay, s.cfg.WeeklyHour), notify.KindWeeklyReport
		case JobPaydayReminder:
			if summary.OwedByUser == 0 {
				continue
			}
			occ, kind = paydayOcc, notify.KindPaydayReminder
		}

		ok, err := s.deliver(ctx, u.ID, job, occ, kind, summary)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// deliver claims the occurrence and sends it. It reports false when another run already
// claimed it.
func (s *Scheduler) deliver(ctx context.Context, userID int64, job string, occ time.Time, kind notify.Kind, summary domain.BalanceSummary) (bool, error) {
	w := domain.Watermark{UserID: userID, Job: job, Period: occ.Format(periodLayout), ClaimedAt: s.nowFn()}
	claimed, err := s.watermarks.ClaimWatermark(ctx, w)
	if err != nil {
		return false, fmt.Errorf("claim %s %s: %w", job, w.Period, err)
	}
	if !claimed {
		return false, nil
	}

	ev := notify.NewEvent(kind, s.nowFn())
	ev.Summary = summary
	if err := s.notifier.Notify(ctx, userID, ev); err != nil {
		s.logger.Warn("reminder notification failed", "user_id", userID, "job", job, "period", w.Period, "error", err)
		if s.cfg.RetryOnError {
			if relErr := s.watermarks.ReleaseWatermark(ctx, w); relErr != nil {
				s.logger.Error("could not release watermark", "user_id", userID, "job", job, "error", relErr)
			}
		}
		return false, nil
	}
	s.logger.Debug("reminder sent", "user_id", userID, "job", job, "period", w.Period)
	return true, nil
}

func (s *Scheduler) withinCatchUp(now, occ time.Time) bool {
	if occ.IsZero() || occ.After(now) {
		return false
	}
	return now.Sub(occ) <= s.cfg.CatchUp
}

// lastWeekly returns the most recent weekday at hour:00 in loc not after now.
func lastWeekly(now time.Time, loc *time.Location, day time.Weekday, hour int) time.Time {
	local := now.In(loc)
	back := (int(local.Weekday()) - int(day) + 7) % 7
	occ := time.Date(local.Year(), local.Month(), local.Day()-back, hour, 0, 0, 0, loc)
	if occ.After(now) {
		occ = occ.AddDate(0, 0, -7)
	}
	return occ
}

// lastPayday returns the most recent payday at hour:00 in loc not after now. Days past the end
// of a month fall on its last day.
func lastPayday(now time.Time, loc *time.Location, days []int, hour int) time.Time {
	local := now.In(loc)
	var best time.Time
	for offset := 0; offset >= -1; offset-- {
		first := time.Date(local.Year(), local.Month()+time.Month(offset), 1, 0, 0, 0, 0, loc)
		last := first.AddDate(0, 1, -1).Day()
		for _, d := range days {
			if d > last {
				d = last
			}
			occ := time.Date(first.Year(), first.Month(), d, hour, 0, 0, 0, loc)
			if !occ.After(now) && occ.After(best) {
				best = occ
			}
		}
		if !best.IsZero() {
			break
		}
	}
	return best
}

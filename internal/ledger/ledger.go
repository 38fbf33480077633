// Package ledger owns the debt and payment lifecycle.
//
// Every mutation runs as one store transaction that reads the current row under lock,
// validates actor and status, and writes with a compare-and-set on the expected status.
// Two operations racing on the same precondition therefore resolve to one winner; the loser
// gets InvalidTransition or AlreadyTerminal.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
)

// Ledger is the debt state machine.
type Ledger struct {
	store  Store
	logger *slog.Logger
	nowFn  func() time.Time
	halted atomic.Bool
}

// New constructs a Ledger over store.
func New(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: logger.With("component", "ledger"),
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (l *Ledger) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		l.nowFn = nowFn
	}
}

func (l *Ledger) now() time.Time {
	return l.nowFn().UTC()
}

// Halted reports whether mutations are refused after the store became unavailable.
func (l *Ledger) Halted() bool {
	return l.halted.Load()
}

// Probe checks the store and lifts the mutation halt once it answers again.
func (l *Ledger) Probe(ctx context.Context) error {
	if err := l.store.Ping(ctx); err != nil {
		return err
	}
	if l.halted.CompareAndSwap(true, false) {
		l.logger.Info("ledger storage reachable again, accepting mutations")
	}
	return nil
}

// mutate runs fn in a transaction, retrying once on a transient conflict.
func (l *Ledger) mutate(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	if l.halted.Load() {
		return domain.Wrap(domain.CodeUnavailable, nil, op+" refused: ledger storage unavailable")
	}

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = l.store.WithinTx(ctx, fn)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
		l.logger.Debug("write conflict", "op", op, "attempt", attempt)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrConflict):
		return domain.Wrap(domain.CodeConcurrentModification, err, op+" lost to a concurrent writer")
	case errors.Is(err, domain.ErrUnavailable):
		if l.halted.CompareAndSwap(false, true) {
			l.logger.Error("ledger storage unavailable, halting mutations", "op", op, "error", err)
		}
	}
	return err
}

// expectDebt reports why d cannot leave want.
func expectDebt(d domain.Debt, want domain.DebtStatus) error {
	if d.Status == want {
		return nil
	}
	if d.Status.Terminal() {
		return domain.Errorf(domain.CodeAlreadyTerminal, "debt %d is already %s", d.ID, d.Status)
	}
	return domain.Errorf(domain.CodeInvalidTransition, "debt %d is %s, expected %s", d.ID, d.Status, want)
}

// Debt returns a single debt.
func (l *Ledger) Debt(ctx context.Context, id int64) (domain.Debt, error) {
	return l.store.Debt(ctx, id)
}

// Payment returns a single payment.
func (l *Ledger) Payment(ctx context.Context, id int64) (domain.Payment, error) {
	return l.store.Payment(ctx, id)
}

// ListDebts returns debts matching filter ordered by id.
func (l *Ledger) ListDebts(ctx context.Context, filter DebtFilter) ([]domain.Debt, error) {
	return l.store.ListDebts(ctx, filter)
}

// ListPayments returns the payments recorded against debtID ordered by id.
func (l *Ledger) ListPayments(ctx context.Context, debtID int64) ([]domain.Payment, error) {
	return l.store.ListPayments(ctx, debtID)
}

// NetBalances returns the active-debt totals per pair involving userID.
func (l *Ledger) NetBalances(ctx context.Context, userID int64) ([]domain.NetBalance, error) {
	return l.store.NetBalances(ctx, userID)
}

// Summary folds NetBalances for userID.
func (l *Ledger) Summary(ctx context.Context, userID int64) (domain.BalanceSummary, error) {
	rows, err := l.store.NetBalances(ctx, userID)
	if err != nil {
		return domain.BalanceSummary{}, err
	}
	return domain.Summarize(userID, rows), nil
}

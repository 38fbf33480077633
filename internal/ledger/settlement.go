package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
)

// DebtBalance reports how much of a debt is covered by payments.
type DebtBalance struct {
	Debt      domain.Debt
	Confirmed int64
	Pending   int64
}

// Remaining is the amount still open for new payment proposals.
func (b DebtBalance) Remaining() int64 {
	return b.Debt.Amount - b.Confirmed - b.Pending
}

// settle promotes an active debt to paid once its confirmed payments reach the debt amount.
// Overpayment is prevented when payments are proposed, so nothing is truncated here.
func settle(ctx context.Context, tx Tx, d domain.Debt, now time.Time) (domain.Debt, bool, error) {
	if d.Status != domain.DebtActive {
		return d, false, nil
	}
	totals, err := tx.PaymentTotals(ctx, d.ID)
	if err != nil {
		return d, false, err
	}
	if totals.Confirmed < d.Amount {
		return d, false, nil
	}
	ok, err := tx.UpdateDebtStatus(ctx, d.ID, domain.DebtActive, domain.DebtPaid, now)
	if err != nil {
		return d, false, err
	}
	if !ok {
		return d, false, domain.Errorf(domain.CodeInvalidTransition, "debt %d left active concurrently", d.ID)
	}
	d.Status = domain.DebtPaid
	d.UpdatedAt = now
	d.SettledAt = &now
	return d, true, nil
}

// Reconcile re-runs settlement for one debt, e.g. after payments were imported out of band.
func (l *Ledger) Reconcile(ctx context.Context, debtID int64) (domain.Debt, bool, error) {
	now := l.now()
	var (
		out     domain.Debt
		settled bool
	)
	err := l.mutate(ctx, "reconcile debt", func(ctx context.Context, tx Tx) error {
		d, err := tx.LockDebt(ctx, debtID)
		if err != nil {
			return err
		}
		out, settled, err = settle(ctx, tx, d, now)
		return err
	})
	if err != nil {
		return domain.Debt{}, false, fmt.Errorf("reconcile debt %d: %w", debtID, err)
	}
	return out, settled, nil
}

// Balance reports confirmed and pending payment totals for a debt.
func (l *Ledger) Balance(ctx context.Context, debtID int64) (DebtBalance, error) {
	d, err := l.store.Debt(ctx, debtID)
	if err != nil {
		return DebtBalance{}, err
	}
	payments, err := l.store.ListPayments(ctx, debtID)
	if err != nil {
		return DebtBalance{}, err
	}
	b := DebtBalance{Debt: d}
	for _, p := range payments {
		switch p.Status {
		case domain.PaymentConfirmed:
			b.Confirmed += p.Amount
		case domain.PaymentPending:
			b.Pending += p.Amount
		}
	}
	return b, nil
}

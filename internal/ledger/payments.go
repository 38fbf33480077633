package ledger

import (
	"context"
	"fmt"

	"github.com/vanshika/debtbook/internal/domain"
)

// PaymentOutcome is the result of confirming a payment.
type PaymentOutcome struct {
	Payment domain.Payment
	Debt    domain.Debt
	// Settled is true when this confirmation moved the debt to paid.
	Settled bool
}

// ProposePayment records a payment awaiting the creditor's confirmation. Either party of an
// active debt may propose; confirmed plus pending payments never exceed the debt amount.
func (l *Ledger) ProposePayment(ctx context.Context, debtID, actor, amount int64) (domain.Payment, error) {
	if amount <= 0 {
		return domain.Payment{}, domain.Errorf(domain.CodeNonPositiveAmount, "payment amount %d is not positive", amount)
	}

	now := l.now()
	var created domain.Payment
	err := l.mutate(ctx, "propose payment", func(ctx context.Context, tx Tx) error {
		d, err := tx.LockDebt(ctx, debtID)
		if err != nil {
			return err
		}
		if !d.Involves(actor) {
			return domain.Errorf(domain.CodeUnauthorized, "user %d is not a party of debt %d", actor, debtID)
		}
		if err := expectDebt(d, domain.DebtActive); err != nil {
			return err
		}
		totals, err := tx.PaymentTotals(ctx, debtID)
		if err != nil {
			return err
		}
		if remaining := d.Amount - totals.Committed(); amount > remaining {
			return domain.Errorf(domain.CodeExceedsBalance, "payment %d exceeds remaining %d of debt %d", amount, remaining, debtID)
		}
		created, err = tx.InsertPayment(ctx, domain.Payment{
			DebtID:     debtID,
			ProposedBy: actor,
			Amount:     amount,
			Status:     domain.PaymentPending,
			CreatedAt:  now,
		})
		return err
	})
	if err != nil {
		return domain.Payment{}, fmt.Errorf("propose payment on debt %d: %w", debtID, err)
	}
	l.logger.Info("payment proposed", "payment_id", created.ID, "debt_id", debtID, "actor_id", actor, "amount", amount)
	return created, nil
}

// ConfirmPayment accepts a pending payment and settles the debt when it is fully covered.
// Only the creditor may confirm.
func (l *Ledger) ConfirmPayment(ctx context.Context, paymentID, actor int64) (PaymentOutcome, error) {
	now := l.now()
	var out PaymentOutcome
	err := l.mutate(ctx, "confirm payment", func(ctx context.Context, tx Tx) error {
		p, d, err := l.lockPaymentForCreditor(ctx, tx, paymentID, actor)
		if err != nil {
			return err
		}
		ok, err := tx.UpdatePaymentStatus(ctx, paymentID, domain.PaymentPending, domain.PaymentConfirmed, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.CodeInvalidTransition, "payment %d left pending concurrently", paymentID)
		}
		p.Status = domain.PaymentConfirmed
		p.ConfirmedAt = &now

		d, settled, err := settle(ctx, tx, d, now)
		if err != nil {
			return err
		}
		out = PaymentOutcome{Payment: p, Debt: d, Settled: settled}
		return nil
	})
	if err != nil {
		return PaymentOutcome{}, fmt.Errorf("confirm payment %d: %w", paymentID, err)
	}
	l.logger.Info("payment confirmed", "payment_id", paymentID, "debt_id", out.Debt.ID, "settled", out.Settled)
	return out, nil
}

// RejectPayment declines a pending payment. The debt is unaffected. Only the creditor may reject.
func (l *Ledger) RejectPayment(ctx context.Context, paymentID, actor int64) (domain.Payment, error) {
	now := l.now()
	var out domain.Payment
	err := l.mutate(ctx, "reject payment", func(ctx context.Context, tx Tx) error {
		p, _, err := l.lockPaymentForCreditor(ctx, tx, paymentID, actor)
		if err != nil {
			return err
		}
		ok, err := tx.UpdatePaymentStatus(ctx, paymentID, domain.PaymentPending, domain.PaymentRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.CodeInvalidTransition, "payment %d left pending concurrently", paymentID)
		}
		p.Status = domain.PaymentRejected
		p.RejectedAt = &now
		out = p
		return nil
	})
	if err != nil {
		return domain.Payment{}, fmt.Errorf("reject payment %d: %w", paymentID, err)
	}
	l.logger.Info("payment rejected", "payment_id", paymentID, "debt_id", out.DebtID)
	return out, nil
}

// lockPaymentForCreditor locks the payment, then its debt, and checks the creditor owns a
// still-pending payment. Locks are always taken payment first.
func (l *Ledger) lockPaymentForCreditor(ctx context.Context, tx Tx, paymentID, actor int64) (domain.Payment, domain.Debt, error) {
	p, err := tx.LockPayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, domain.Debt{}, err
	}
	d, err := tx.LockDebt(ctx, p.DebtID)
	if err != nil {
		return domain.Payment{}, domain.Debt{}, err
	}
	if d.CreditorID != actor {
		return domain.Payment{}, domain.Debt{}, domain.Errorf(domain.CodeUnauthorized, "user %d is not the creditor of debt %d", actor, d.ID)
	}
	if p.Status != domain.PaymentPending {
		return domain.Payment{}, domain.Debt{}, domain.Errorf(domain.CodeAlreadyTerminal, "payment %d is already %s", paymentID, p.Status)
	}
	return p, d, nil
}

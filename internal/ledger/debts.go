package ledger

import (
	"context"
	"fmt"

	"github.com/vanshika/debtbook/internal/domain"
)

// CreateDebt records a pending debt of amount minor units owed by debtor to creditor.
func (l *Ledger) CreateDebt(ctx context.Context, creditor, debtor, amount int64, description string) (domain.Debt, error) {
	debts, err := l.CreateDebts(ctx, creditor, []domain.DebtIntent{{DebtorID: debtor, Amount: amount, Description: description}})
	if err != nil {
		return domain.Debt{}, err
	}
	return debts[0], nil
}

// CreateDebts records one pending debt per intent in a single transaction: either every debt
// is created or none is. Ghost intents without a debtor id get a placeholder user inside the
// same transaction, so a failed message leaves no placeholders behind.
func (l *Ledger) CreateDebts(ctx context.Context, creditor int64, intents []domain.DebtIntent) ([]domain.Debt, error) {
	if len(intents) == 0 {
		return nil, nil
	}
	for _, in := range intents {
		if in.Amount <= 0 {
			return nil, domain.Errorf(domain.CodeNonPositiveAmount, "debt amount %d is not positive", in.Amount)
		}
		if in.DebtorID == 0 && !(in.Ghost && in.DebtorHandle != "") {
			return nil, domain.Errorf(domain.CodeUnknownUser, "debtor @%s has no user id", in.DebtorHandle)
		}
		if creditor == in.DebtorID {
			return nil, domain.Errorf(domain.CodeSelfDebt, "user %d cannot owe themselves", creditor)
		}
	}

	now := l.now()
	var created []domain.Debt
	err := l.mutate(ctx, "create debt", func(ctx context.Context, tx Tx) error {
		created = created[:0]
		for _, in := range intents {
			debtor := in.DebtorID
			if debtor == 0 {
				ghost, err := tx.EnsureGhostUser(ctx, in.DebtorHandle)
				if err != nil {
					return fmt.Errorf("placeholder for @%s: %w", in.DebtorHandle, err)
				}
				if ghost.ID == creditor {
					return domain.Errorf(domain.CodeSelfDebt, "@%s is the creditor", in.DebtorHandle)
				}
				debtor = ghost.ID
			}
			d, err := tx.InsertDebt(ctx, domain.Debt{
				CreditorID:  creditor,
				DebtorID:    debtor,
				Amount:      in.Amount,
				Description: in.Description,
				Status:      domain.DebtPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return err
			}
			created = append(created, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create debt: %w", err)
	}
	for _, d := range created {
		l.logger.Info("debt created", "debt_id", d.ID, "creditor_id", creditor, "debtor_id", d.DebtorID, "amount", d.Amount)
	}
	return created, nil
}

// ConfirmDebt moves a pending debt to active. Only the debtor may confirm.
func (l *Ledger) ConfirmDebt(ctx context.Context, debtID, actor int64) (domain.Debt, error) {
	return l.decideDebt(ctx, "confirm debt", debtID, actor, domain.DebtActive)
}

// RejectDebt moves a pending debt to rejected. Only the debtor may reject.
func (l *Ledger) RejectDebt(ctx context.Context, debtID, actor int64) (domain.Debt, error) {
	return l.decideDebt(ctx, "reject debt", debtID, actor, domain.DebtRejected)
}

func (l *Ledger) decideDebt(ctx context.Context, op string, debtID, actor int64, to domain.DebtStatus) (domain.Debt, error) {
	now := l.now()
	var out domain.Debt
	err := l.mutate(ctx, op, func(ctx context.Context, tx Tx) error {
		d, err := tx.LockDebt(ctx, debtID)
		if err != nil {
			return err
		}
		if d.DebtorID != actor {
			return domain.Errorf(domain.CodeUnauthorized, "user %d is not the debtor of debt %d", actor, debtID)
		}
		if err := expectDebt(d, domain.DebtPending); err != nil {
			return err
		}
		ok, err := tx.UpdateDebtStatus(ctx, debtID, domain.DebtPending, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.CodeInvalidTransition, "debt %d left pending concurrently", debtID)
		}
		d.Status = to
		d.UpdatedAt = now
		if to == domain.DebtActive {
			d.ConfirmedAt = &now
		}
		out = d
		return nil
	})
	if err != nil {
		return domain.Debt{}, fmt.Errorf("%s %d: %w", op, debtID, err)
	}
	l.logger.Info("debt "+string(to), "debt_id", debtID, "actor_id", actor)
	return out, nil
}

// ExpireDebt rejects a debt that is still pending. It is a successful no-op for any other
// status so scheduler retries and overlapping runs are harmless; expired reports whether
// this call performed the transition.
func (l *Ledger) ExpireDebt(ctx context.Context, debtID int64) (expired bool, err error) {
	now := l.now()
	err = l.mutate(ctx, "expire debt", func(ctx context.Context, tx Tx) error {
		expired = false
		d, err := tx.LockDebt(ctx, debtID)
		if err != nil {
			return err
		}
		if d.Status != domain.DebtPending {
			return nil
		}
		expired, err = tx.UpdateDebtStatus(ctx, debtID, domain.DebtPending, domain.DebtRejected, now)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("expire debt %d: %w", debtID, err)
	}
	if expired {
		l.logger.Info("debt expired", "debt_id", debtID)
	}
	return expired, nil
}

package ledger

import (
	"context"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
)

// Tx is the view of the store inside one isolated transaction. Lock* reads take a row lock
// (or equivalent) held until the transaction ends. Update*Status are compare-and-set: they
// write only when the current status equals from and report whether a row changed.
type Tx interface {
	// EnsureGhostUser returns the user holding username, registering a placeholder with a
	// negative id when there is none. The placeholder is rolled back with the transaction.
	EnsureGhostUser(ctx context.Context, username string) (domain.User, error)

	InsertDebt(ctx context.Context, debt domain.Debt) (domain.Debt, error)
	LockDebt(ctx context.Context, id int64) (domain.Debt, error)
	UpdateDebtStatus(ctx context.Context, id int64, from, to domain.DebtStatus, at time.Time) (bool, error)

	InsertPayment(ctx context.Context, payment domain.Payment) (domain.Payment, error)
	LockPayment(ctx context.Context, id int64) (domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, from, to domain.PaymentStatus, at time.Time) (bool, error)
	PaymentTotals(ctx context.Context, debtID int64) (domain.PaymentTotals, error)
}

// Role narrows debt listings to one side of the debt.
type Role string

const (
	RoleAny      Role = ""
	RoleCreditor Role = "creditor"
	RoleDebtor   Role = "debtor"
)

// DebtFilter selects debts for listings and scheduler scans.
type DebtFilter struct {
	UserID        int64
	Role          Role
	Statuses      []domain.DebtStatus
	CreatedBefore time.Time
	Limit         int
}

// Matches applies the filter to a single debt. Stores that cannot push the filter down use it.
func (f DebtFilter) Matches(d domain.Debt) bool {
	if f.UserID != 0 {
		switch f.Role {
		case RoleCreditor:
			if d.CreditorID != f.UserID {
				return false
			}
		case RoleDebtor:
			if d.DebtorID != f.UserID {
				return false
			}
		default:
			if !d.Involves(f.UserID) {
				return false
			}
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if d.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedBefore.IsZero() && !d.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

// Reader serves read-only queries outside a transaction.
type Reader interface {
	Debt(ctx context.Context, id int64) (domain.Debt, error)
	Payment(ctx context.Context, id int64) (domain.Payment, error)
	ListDebts(ctx context.Context, filter DebtFilter) ([]domain.Debt, error)
	ListPayments(ctx context.Context, debtID int64) ([]domain.Payment, error)
	NetBalances(ctx context.Context, userID int64) ([]domain.NetBalance, error)
}

// Store is the persistence contract of the ledger. WithinTx runs fn in one isolated
// transaction, committing when fn returns nil. Implementations report transient
// serialization failures as domain.ErrConflict and lost connectivity as domain.ErrUnavailable.
type Store interface {
	Reader
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

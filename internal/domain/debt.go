package domain

import "time"

// DebtStatus is the lifecycle state of a debt.
type DebtStatus string

const (
	DebtPending  DebtStatus = "pending"
	DebtActive   DebtStatus = "active"
	DebtPaid     DebtStatus = "paid"
	DebtRejected DebtStatus = "rejected"
)

// debtTransitions lists every permitted edge of the debt state machine.
var debtTransitions = map[DebtStatus][]DebtStatus{
	DebtPending: {DebtActive, DebtRejected},
	DebtActive:  {DebtPaid},
}

// Valid reports whether s is a known status.
func (s DebtStatus) Valid() bool {
	switch s {
	case DebtPending, DebtActive, DebtPaid, DebtRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s DebtStatus) Terminal() bool {
	return s == DebtPaid || s == DebtRejected
}

// CanTransition reports whether from -> to is an edge of the state machine.
func (s DebtStatus) CanTransition(to DebtStatus) bool {
	for _, next := range debtTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Debt is a single obligation from a debtor to a creditor, in minor currency units.
type Debt struct {
	ID          int64
	CreditorID  int64
	DebtorID    int64
	Amount      int64
	Description string
	Status      DebtStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	SettledAt   *time.Time
}

// Involves reports whether userID is either party of the debt.
func (d Debt) Involves(userID int64) bool {
	return d.CreditorID == userID || d.DebtorID == userID
}

// Counterparty returns the other party of the debt relative to userID.
func (d Debt) Counterparty(userID int64) int64 {
	if d.CreditorID == userID {
		return d.DebtorID
	}
	return d.CreditorID
}

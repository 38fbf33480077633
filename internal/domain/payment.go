package domain

import "time"

// PaymentStatus is the lifecycle state of a payment proposal.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending_confirmation"
	PaymentConfirmed PaymentStatus = "confirmed"
	// PaymentRejected marks a proposal the creditor declined; it never counts toward settlement.
	PaymentRejected PaymentStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentRejected:
		return true
	}
	return false
}

// Payment is a (partial) repayment proposed against an active debt.
type Payment struct {
	ID          int64
	DebtID      int64
	ProposedBy  int64
	Amount      int64
	Status      PaymentStatus
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	RejectedAt  *time.Time
}

// PaymentTotals aggregates the payments recorded against one debt.
type PaymentTotals struct {
	Confirmed int64
	Pending   int64
}

// Committed is the amount already confirmed or awaiting confirmation.
func (t PaymentTotals) Committed() int64 {
	return t.Confirmed + t.Pending
}

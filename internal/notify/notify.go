// Package notify delivers ledger events to users. Delivery is best effort: the ledger never
// waits on it and a failed notification never undoes a state change.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vanshika/debtbook/internal/domain"
)

// Kind names what happened.
type Kind string

const (
	KindDebtProposed     Kind = "debt_proposed"
	KindDebtConfirmed    Kind = "debt_confirmed"
	KindDebtRejected     Kind = "debt_rejected"
	KindDebtExpired      Kind = "debt_expired"
	KindDebtSettled      Kind = "debt_settled"
	KindPaymentProposed  Kind = "payment_proposed"
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindPaymentRejected  Kind = "payment_rejected"
	KindWeeklyReport     Kind = "weekly_report"
	KindPaydayReminder   Kind = "payday_reminder"
)

// Event is one notification. Counterparty is the display name of the other party.
type Event struct {
	ID           uuid.UUID
	Kind         Kind
	DebtID       int64
	PaymentID    int64
	Amount       int64
	Counterparty string
	Description  string
	Summary      domain.BalanceSummary
	OccurredAt   time.Time
}

// NewEvent stamps a fresh id.
func NewEvent(kind Kind, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: kind, OccurredAt: at}
}

// Port delivers an event to a user.
type Port interface {
	Notify(ctx context.Context, userID int64, ev Event) error
}

// PortFunc adapts a function to Port.
type PortFunc func(ctx context.Context, userID int64, ev Event) error

// Notify implements Port.
func (f PortFunc) Notify(ctx context.Context, userID int64, ev Event) error {
	return f(ctx, userID, ev)
}

// Discard drops every event.
var Discard Port = PortFunc(func(context.Context, int64, Event) error { return nil })

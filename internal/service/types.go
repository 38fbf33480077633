package service

import (
	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/ledger"
)

// SubmitResult describes the debts created from one message.
type SubmitResult struct {
	Intents []domain.DebtIntent
	Debts   []domain.Debt
	// AutoConfirmed lists debts confirmed on the debtor's behalf through trust.
	AutoConfirmed []int64
}

// Balances is a user's view of active debts.
type Balances struct {
	Summary domain.BalanceSummary
	Rows    []domain.NetBalance
}

// DebtDetail is a debt with its payment history.
type DebtDetail struct {
	Balance  ledger.DebtBalance
	Payments []domain.Payment
}

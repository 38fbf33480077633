package domain

// NetBalance is one row of the net_balances view: the sum of active debts for a pair.
type NetBalance struct {
	CreditorID int64
	DebtorID   int64
	TotalDebt  int64
}

// BalanceSummary folds net balances from one user's perspective.
type BalanceSummary struct {
	UserID int64
	// OwedToUser is the total other users owe to UserID.
	OwedToUser int64
	// OwedByUser is the total UserID owes to others.
	OwedByUser int64
}

// Net is positive when the user is a net creditor.
func (s BalanceSummary) Net() int64 {
	return s.OwedToUser - s.OwedByUser
}

// Empty reports whether the user has no active obligations in either direction.
func (s BalanceSummary) Empty() bool {
	return s.OwedToUser == 0 && s.OwedByUser == 0
}

// Summarize folds rows into a summary for userID. Rows not involving userID are ignored.
func Summarize(userID int64, rows []NetBalance) BalanceSummary {
	summary := BalanceSummary{UserID: userID}
	for _, row := range rows {
		switch userID {
		case row.CreditorID:
			summary.OwedToUser += row.TotalDebt
		case row.DebtorID:
			summary.OwedByUser += row.TotalDebt
		}
	}
	return summary
}

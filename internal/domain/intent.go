package domain

// DebtIntent is a parsed request to record that DebtorID owes Amount to the message sender.
type DebtIntent struct {
	DebtorID     int64
	DebtorHandle string
	Amount       int64
	Description  string
	// Ghost is set when the handle did not resolve and the caller allowed placeholder users.
	// DebtorID is zero until the placeholder is created.
	Ghost bool
}

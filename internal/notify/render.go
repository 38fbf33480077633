package notify

import (
	"fmt"
	"strings"

	"github.com/vanshika/debtbook/internal/amount"
)

// Render formats ev as plain text with amounts in major units.
func Render(ev Event, minorDigits int32) string {
	money := func(v int64) string { return amount.Format(v, minorDigits) }
	desc := ""
	if ev.Description != "" {
		desc = fmt.Sprintf(" for %q", ev.Description)
	}

	switch ev.Kind {
	case KindDebtProposed:
		return fmt.Sprintf("%s says you owe them %s%s. Debt #%d is waiting for your confirmation.",
			ev.Counterparty, money(ev.Amount), desc, ev.DebtID)
	case KindDebtConfirmed:
		return fmt.Sprintf("%s confirmed debt #%d of %s%s.", ev.Counterparty, ev.DebtID, money(ev.Amount), desc)
	case KindDebtRejected:
		return fmt.Sprintf("%s rejected debt #%d of %s%s.", ev.Counterparty, ev.DebtID, money(ev.Amount), desc)
	case KindDebtExpired:
		return fmt.Sprintf("Debt #%d of %s with %s expired without confirmation.", ev.DebtID, money(ev.Amount), ev.Counterparty)
	case KindDebtSettled:
		return fmt.Sprintf("Debt #%d with %s is fully paid.", ev.DebtID, ev.Counterparty)
	case KindPaymentProposed:
		return fmt.Sprintf("%s reports a payment of %s on debt #%d. Payment #%d is waiting for your confirmation.",
			ev.Counterparty, money(ev.Amount), ev.DebtID, ev.PaymentID)
	case KindPaymentConfirmed:
		return fmt.Sprintf("%s confirmed payment #%d of %s on debt #%d.", ev.Counterparty, ev.PaymentID, money(ev.Amount), ev.DebtID)
	case KindPaymentRejected:
		return fmt.Sprintf("%s rejected payment #%d of %s on debt #%d.", ev.Counterparty, ev.PaymentID, money(ev.Amount), ev.DebtID)
	case KindWeeklyReport:
		var b strings.Builder
		b.WriteString("Weekly summary:\n")
		fmt.Fprintf(&b, "Owed to you: %s\n", money(ev.Summary.OwedToUser))
		fmt.Fprintf(&b, "You owe: %s", money(ev.Summary.OwedByUser))
		return b.String()
	case KindPaydayReminder:
		return fmt.Sprintf("Payday reminder: you owe %s in total.", money(ev.Summary.OwedByUser))
	}
	return fmt.Sprintf("%s event on debt #%d", ev.Kind, ev.DebtID)
}

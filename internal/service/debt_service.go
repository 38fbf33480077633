package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanshika/debtbook/internal/amount"
	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/ledger"
	"github.com/vanshika/debtbook/internal/notify"
	"github.com/vanshika/debtbook/internal/parser"
	"github.com/vanshika/debtbook/internal/trust"
)

// Identity resolves handles and owns user records.
type Identity interface {
	parser.Resolver
	Register(ctx context.Context, u domain.User) (domain.User, error)
	User(ctx context.Context, id int64) (domain.User, error)
}

// Options configures DebtService policy.
type Options struct {
	Parser parser.Options
	// AutoConfirmTrusted confirms a new debt on the debtor's behalf when the debtor trusts
	// the creditor.
	AutoConfirmTrusted bool
}

// DebtService ties parsing, the ledger, identities, trust and notifications together.
// Notifications are sent only after the ledger call they describe has committed.
type DebtService struct {
	ledger   *ledger.Ledger
	identity Identity
	trust    trust.Store
	notifier notify.Port
	opts     Options
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewDebtService constructs a DebtService. A nil notifier discards events.
func NewDebtService(l *ledger.Ledger, identity Identity, trustStore trust.Store, notifier notify.Port, opts Options, logger *slog.Logger) *DebtService {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DebtService{
		ledger:   l,
		identity: identity,
		trust:    trustStore,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With("component", "debt_service"),
		nowFn:    time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *DebtService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// SubmitMessage parses text sent by sender and records the debts it describes. All debts of
// a message are created together or not at all.
func (s *DebtService) SubmitMessage(ctx context.Context, sender int64, text string) (SubmitResult, error) {
	intents, err := parser.Parse(ctx, text, sender, s.identity, s.opts.Parser)
	if err != nil {
		return SubmitResult{}, err
	}

	// Placeholders for ghost debtors are created in the same transaction as the debts.
	debts, err := s.ledger.CreateDebts(ctx, sender, intents)
	if err != nil {
		return SubmitResult{}, err
	}
	for i := range intents {
		intents[i].DebtorID = debts[i].DebtorID
	}

	result := SubmitResult{Intents: intents, Debts: debts}
	creditorName := s.displayName(ctx, sender)
	for i, d := range debts {
		ev := s.event(notify.KindDebtProposed, d)
		ev.Counterparty = creditorName
		s.send(ctx, d.DebtorID, ev)

		if s.opts.AutoConfirmTrusted && !intents[i].Ghost {
			if confirmed, ok := s.autoConfirm(ctx, d); ok {
				result.Debts[i] = confirmed
				result.AutoConfirmed = append(result.AutoConfirmed, confirmed.ID)
			}
		}
	}
	return result, nil
}

func (s *DebtService) autoConfirm(ctx context.Context, d domain.Debt) (domain.Debt, bool) {
	if s.trust == nil {
		return d, false
	}
	trusted, err := s.trust.Trusts(ctx, d.DebtorID, d.CreditorID)
	if err != nil {
		s.logger.Warn("trust lookup failed, leaving debt pending", "debt_id", d.ID, "error", err)
		return d, false
	}
	if !trusted {
		return d, false
	}
	confirmed, err := s.ConfirmDebt(ctx, d.ID, d.DebtorID)
	if err != nil {
		s.logger.Warn("auto-confirmation failed", "debt_id", d.ID, "error", err)
		return d, false
	}
	return confirmed, true
}

// ConfirmDebt confirms a pending debt as its debtor and tells the creditor.
func (s *DebtService) ConfirmDebt(ctx context.Context, debtID, actor int64) (domain.Debt, error) {
	d, err := s.ledger.ConfirmDebt(ctx, debtID, actor)
	if err != nil {
		return domain.Debt{}, err
	}
	ev := s.event(notify.KindDebtConfirmed, d)
	ev.Counterparty = s.displayName(ctx, d.DebtorID)
	s.send(ctx, d.CreditorID, ev)
	return d, nil
}

// RejectDebt rejects a pending debt as its debtor and tells the creditor.
func (s *DebtService) RejectDebt(ctx context.Context, debtID, actor int64) (domain.Debt, error) {
	d, err := s.ledger.RejectDebt(ctx, debtID, actor)
	if err != nil {
		return domain.Debt{}, err
	}
	ev := s.event(notify.KindDebtRejected, d)
	ev.Counterparty = s.displayName(ctx, d.DebtorID)
	s.send(ctx, d.CreditorID, ev)
	return d, nil
}

// ProposePayment evaluates expr as a payment amount and records it against the debt. The other
// party is notified.
func (s *DebtService) ProposePayment(ctx context.Context, debtID, actor int64, expr string) (domain.Payment, error) {
	value, err := amount.Evaluate(expr, s.opts.Parser.Amount)
	if err != nil {
		return domain.Payment{}, err
	}
	p, err := s.ledger.ProposePayment(ctx, debtID, actor, value)
	if err != nil {
		return domain.Payment{}, err
	}
	d, err := s.ledger.Debt(ctx, debtID)
	if err != nil {
		s.logger.Warn("payment recorded but debt lookup failed", "payment_id", p.ID, "error", err)
		return p, nil
	}
	ev := s.paymentEvent(notify.KindPaymentProposed, p)
	ev.Counterparty = s.displayName(ctx, actor)
	s.send(ctx, d.Counterparty(actor), ev)
	return p, nil
}

// ConfirmPayment confirms a payment as the creditor. The debtor is told, and both parties
// are told when the debt is settled.
func (s *DebtService) ConfirmPayment(ctx context.Context, paymentID, actor int64) (ledger.PaymentOutcome, error) {
	out, err := s.ledger.ConfirmPayment(ctx, paymentID, actor)
	if err != nil {
		return ledger.PaymentOutcome{}, err
	}
	ev := s.paymentEvent(notify.KindPaymentConfirmed, out.Payment)
	ev.Counterparty = s.displayName(ctx, out.Debt.CreditorID)
	s.send(ctx, out.Debt.DebtorID, ev)

	if out.Settled {
		s.notifyBoth(ctx, notify.KindDebtSettled, out.Debt)
	}
	return out, nil
}

// RejectPayment rejects a payment as the creditor and tells the debtor.
func (s *DebtService) RejectPayment(ctx context.Context, paymentID, actor int64) (domain.Payment, error) {
	p, err := s.ledger.RejectPayment(ctx, paymentID, actor)
	if err != nil {
		return domain.Payment{}, err
	}
	d, err := s.ledger.Debt(ctx, p.DebtID)
	if err != nil {
		s.logger.Warn("payment rejected but debt lookup failed", "payment_id", p.ID, "error", err)
		return p, nil
	}
	ev := s.paymentEvent(notify.KindPaymentRejected, p)
	ev.Counterparty = s.displayName(ctx, d.CreditorID)
	s.send(ctx, d.DebtorID, ev)
	return p, nil
}

// Balances returns the active totals per counterparty and the folded summary for userID.
func (s *DebtService) Balances(ctx context.Context, userID int64) (Balances, error) {
	rows, err := s.ledger.NetBalances(ctx, userID)
	if err != nil {
		return Balances{}, fmt.Errorf("balances for %d: %w", userID, err)
	}
	return Balances{Summary: domain.Summarize(userID, rows), Rows: rows}, nil
}

// Debts lists the debts of userID, optionally narrowed by role and status.
func (s *DebtService) Debts(ctx context.Context, userID int64, role ledger.Role, statuses []domain.DebtStatus) ([]domain.Debt, error) {
	return s.ledger.ListDebts(ctx, ledger.DebtFilter{UserID: userID, Role: role, Statuses: statuses})
}

// DebtDetail returns a debt with its payments and remaining balance.
func (s *DebtService) DebtDetail(ctx context.Context, debtID int64) (DebtDetail, error) {
	balance, err := s.ledger.Balance(ctx, debtID)
	if err != nil {
		return DebtDetail{}, err
	}
	payments, err := s.ledger.ListPayments(ctx, debtID)
	if err != nil {
		return DebtDetail{}, err
	}
	return DebtDetail{Balance: balance, Payments: payments}, nil
}

// Register stores a transport user.
func (s *DebtService) Register(ctx context.Context, u domain.User) (domain.User, error) {
	return s.identity.Register(ctx, u)
}

// Trust records that truster accepts debts from trusted without confirmation.
func (s *DebtService) Trust(ctx context.Context, truster, trusted int64) error {
	if s.trust == nil {
		return fmt.Errorf("trust relations are not configured")
	}
	if _, err := s.identity.User(ctx, trusted); err != nil {
		return err
	}
	return s.trust.Trust(ctx, truster, trusted)
}

// Untrust removes a trust relation.
func (s *DebtService) Untrust(ctx context.Context, truster, trusted int64) error {
	if s.trust == nil {
		return fmt.Errorf("trust relations are not configured")
	}
	return s.trust.Untrust(ctx, truster, trusted)
}

// Trusted lists the users truster trusts.
func (s *DebtService) Trusted(ctx context.Context, truster int64) ([]domain.TrustRelation, error) {
	if s.trust == nil {
		return nil, nil
	}
	return s.trust.ListTrusted(ctx, truster)
}

func (s *DebtService) notifyBoth(ctx context.Context, kind notify.Kind, d domain.Debt) {
	for _, userID := range []int64{d.CreditorID, d.DebtorID} {
		ev := s.event(kind, d)
		ev.Counterparty = s.displayName(ctx, d.Counterparty(userID))
		s.send(ctx, userID, ev)
	}
}

func (s *DebtService) event(kind notify.Kind, d domain.Debt) notify.Event {
	ev := notify.NewEvent(kind, s.nowFn())
	ev.DebtID = d.ID
	ev.Amount = d.Amount
	ev.Description = d.Description
	return ev
}

func (s *DebtService) paymentEvent(kind notify.Kind, p domain.Payment) notify.Event {
	ev := notify.NewEvent(kind, s.nowFn())
	ev.DebtID = p.DebtID
	ev.PaymentID = p.ID
	ev.Amount = p.Amount
	return ev
}

func (s *DebtService) send(ctx context.Context, userID int64, ev notify.Event) {
	if err := s.notifier.Notify(ctx, userID, ev); err != nil {
		s.logger.Warn("notification failed", "user_id", userID, "kind", ev.Kind, "debt_id", ev.DebtID, "error", err)
	}
}

func (s *DebtService) displayName(ctx context.Context, userID int64) string {
	u, err := s.identity.User(ctx, userID)
	if err != nil {
		return domain.User{ID: userID}.DisplayName()
	}
	return u.DisplayName()
}

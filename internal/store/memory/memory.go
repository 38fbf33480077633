// Package memory is an in-process implementation of the ledger, identity, trust and
// watermark stores. A single mutex serializes transactions; a failed transaction restores
// the snapshot taken when it started.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/ledger"
)

type watermarkKey struct {
	userID int64
	job    string
	period string
}

type trustKey struct {
	truster int64
	trusted int64
}

// Store holds every record in maps guarded by mu.
type Store struct {
	mu sync.Mutex

	nextDebtID    int64
	nextPaymentID int64
	nextGhostID   int64

	debts      map[int64]domain.Debt
	payments   map[int64]domain.Payment
	users      map[int64]domain.User
	trust      map[trustKey]time.Time
	watermarks map[watermarkKey]time.Time

	nowFn func() time.Time
	// pingErr is returned by Ping and by every transaction while set.
	pingErr error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		debts:      make(map[int64]domain.Debt),
		payments:   make(map[int64]domain.Payment),
		users:      make(map[int64]domain.User),
		trust:      make(map[trustKey]time.Time),
		watermarks: make(map[watermarkKey]time.Time),
		nowFn:      time.Now,
	}
}

// WithClock overrides the time used for user and trust timestamps.
func (s *Store) WithClock(nowFn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// SetUnavailable makes the store fail with domain.ErrUnavailable until cleared with nil.
func (s *Store) SetUnavailable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Ping implements ledger.Store.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pingErr != nil {
		return domain.Wrap(domain.CodeUnavailable, s.pingErr, "memory store offline")
	}
	return nil
}

type snapshot struct {
	nextDebtID    int64
	nextPaymentID int64
	nextGhostID   int64
	debts         map[int64]domain.Debt
	payments      map[int64]domain.Payment
	users         map[int64]domain.User
}

// WithinTx implements ledger.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pingErr != nil {
		return domain.Wrap(domain.CodeUnavailable, s.pingErr, "memory store offline")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := snapshot{
		nextDebtID:    s.nextDebtID,
		nextPaymentID: s.nextPaymentID,
		nextGhostID:   s.nextGhostID,
		debts:         cloneMap(s.debts),
		payments:      cloneMap(s.payments),
		users:         cloneMap(s.users),
	}
	if err := fn(ctx, &tx{s: s}); err != nil {
		s.nextDebtID = snap.nextDebtID
		s.nextPaymentID = snap.nextPaymentID
		s.nextGhostID = snap.nextGhostID
		s.debts = snap.debts
		s.payments = snap.payments
		s.users = snap.users
		return err
	}
	return nil
}

// Debt implements ledger.Reader.
func (s *Store) Debt(_ context.Context, id int64) (domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debts[id]
	if !ok {
		return domain.Debt{}, domain.Errorf(domain.CodeNotFound, "debt %d not found", id)
	}
	return d, nil
}

// Payment implements ledger.Reader.
func (s *Store) Payment(_ context.Context, id int64) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, domain.Errorf(domain.CodeNotFound, "payment %d not found", id)
	}
	return p, nil
}

// ListDebts implements ledger.Reader.
func (s *Store) ListDebts(_ context.Context, filter ledger.DebtFilter) ([]domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Debt
	for _, d := range s.debts {
		if filter.Matches(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListPayments implements ledger.Reader.
func (s *Store) ListPayments(_ context.Context, debtID int64) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.payments {
		if p.DebtID == debtID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NetBalances implements ledger.Reader with the semantics of the net_balances view.
func (s *Store) NetBalances(_ context.Context, userID int64) ([]domain.NetBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := make(map[trustKey]int64)
	for _, d := range s.debts {
		if d.Status != domain.DebtActive || !d.Involves(userID) {
			continue
		}
		totals[trustKey{d.CreditorID, d.DebtorID}] += d.Amount
	}
	out := make([]domain.NetBalance, 0, len(totals))
	for pair, total := range totals {
		out = append(out, domain.NetBalance{CreditorID: pair.truster, DebtorID: pair.trusted, TotalDebt: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreditorID != out[j].CreditorID {
			return out[i].CreditorID < out[j].CreditorID
		}
		return out[i].DebtorID < out[j].DebtorID
	})
	return out, nil
}

type tx struct {
	s *Store
}

func (t *tx) InsertDebt(_ context.Context, d domain.Debt) (domain.Debt, error) {
	if d.Amount <= 0 || d.CreditorID == d.DebtorID {
		return domain.Debt{}, fmt.Errorf("insert debt: violates amount/party constraints")
	}
	t.s.nextDebtID++
	d.ID = t.s.nextDebtID
	t.s.debts[d.ID] = d
	return d, nil
}

func (t *tx) LockDebt(_ context.Context, id int64) (domain.Debt, error) {
	d, ok := t.s.debts[id]
	if !ok {
		return domain.Debt{}, domain.Errorf(domain.CodeNotFound, "debt %d not found", id)
	}
	return d, nil
}

func (t *tx) UpdateDebtStatus(_ context.Context, id int64, from, to domain.DebtStatus, at time.Time) (bool, error) {
	d, ok := t.s.debts[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.UpdatedAt = at
	switch to {
	case domain.DebtActive:
		d.ConfirmedAt = &at
	case domain.DebtPaid:
		d.SettledAt = &at
	}
	t.s.debts[id] = d
	return true, nil
}

func (t *tx) InsertPayment(_ context.Context, p domain.Payment) (domain.Payment, error) {
	if _, ok := t.s.debts[p.DebtID]; !ok {
		return domain.Payment{}, domain.Errorf(domain.CodeNotFound, "debt %d not found", p.DebtID)
	}
	t.s.nextPaymentID++
	p.ID = t.s.nextPaymentID
	t.s.payments[p.ID] = p
	return p, nil
}

func (t *tx) LockPayment(_ context.Context, id int64) (domain.Payment, error) {
	p, ok := t.s.payments[id]
	if !ok {
		return domain.Payment{}, domain.Errorf(domain.CodeNotFound, "payment %d not found", id)
	}
	return p, nil
}

func (t *tx) UpdatePaymentStatus(_ context.Context, id int64, from, to domain.PaymentStatus, at time.Time) (bool, error) {
	p, ok := t.s.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	switch to {
	case domain.PaymentConfirmed:
		p.ConfirmedAt = &at
	case domain.PaymentRejected:
		p.RejectedAt = &at
	}
	t.s.payments[id] = p
	return true, nil
}

func (t *tx) PaymentTotals(_ context.Context, debtID int64) (domain.PaymentTotals, error) {
	var totals domain.PaymentTotals
	for _, p := range t.s.payments {
		if p.DebtID != debtID {
			continue
		}
		switch p.Status {
		case domain.PaymentConfirmed:
			totals.Confirmed += p.Amount
		case domain.PaymentPending:
			totals.Pending += p.Amount
		}
	}
	return totals, nil
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/ledger"
)

const debtColumns = `debt_id, creditor_id, debtor_id, amount, COALESCE(description, ''), status,
	created_at, updated_at, confirmed_at, settled_at`

const paymentColumns = `payment_id, debt_id, COALESCE(proposed_by, 0), amount, status,
	created_at, confirmed_at, rejected_at`

func scanDebt(row pgx.Row) (domain.Debt, error) {
	var (
		d      domain.Debt
		status string
	)
	err := row.Scan(&d.ID, &d.CreditorID, &d.DebtorID, &d.Amount, &d.Description, &status,
		&d.CreatedAt, &d.UpdatedAt, &d.ConfirmedAt, &d.SettledAt)
	d.Status = domain.DebtStatus(status)
	return d, err
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var (
		p      domain.Payment
		status string
	)
	err := row.Scan(&p.ID, &p.DebtID, &p.ProposedBy, &p.Amount, &status,
		&p.CreatedAt, &p.ConfirmedAt, &p.RejectedAt)
	p.Status = domain.PaymentStatus(status)
	return p, err
}

func getDebt(ctx context.Context, q querier, id int64, lock bool) (domain.Debt, error) {
	sql := `SELECT ` + debtColumns + ` FROM debts WHERE debt_id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	d, err := scanDebt(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Debt{}, domain.Errorf(domain.CodeNotFound, "debt %d not found", id)
		}
		return domain.Debt{}, mapError(err)
	}
	return d, nil
}

func getPayment(ctx context.Context, q querier, id int64, lock bool) (domain.Payment, error) {
	sql := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	p, err := scanPayment(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, domain.Errorf(domain.CodeNotFound, "payment %d not found", id)
		}
		return domain.Payment{}, mapError(err)
	}
	return p, nil
}

type txStore struct {
	q querier
}

func (t *txStore) InsertDebt(ctx context.Context, d domain.Debt) (domain.Debt, error) {
	err := t.q.QueryRow(ctx, `
		INSERT INTO debts(creditor_id, debtor_id, amount, description, status, created_at, updated_at)
		VALUES($1,$2,$3,NULLIF($4::text,''),$5,$6,$6)
		RETURNING debt_id
	`, d.CreditorID, d.DebtorID, d.Amount, d.Description, string(d.Status), d.CreatedAt).Scan(&d.ID)
	if err != nil {
		return domain.Debt{}, fmt.Errorf("insert debt: %w", mapError(err))
	}
	return d, nil
}

func (t *txStore) LockDebt(ctx context.Context, id int64) (domain.Debt, error) {
	return getDebt(ctx, t.q, id, true)
}

func (t *txStore) UpdateDebtStatus(ctx context.Context, id int64, from, to domain.DebtStatus, at time.Time) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE debts
		SET status=$3,
			updated_at=$4,
			confirmed_at=CASE WHEN $3='active' THEN $4 ELSE confirmed_at END,
			settled_at=CASE WHEN $3='paid' THEN $4 ELSE settled_at END
		WHERE debt_id=$1 AND status=$2
	`, id, string(from), string(to), at)
	if err != nil {
		return false, fmt.Errorf("update debt status: %w", mapError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txStore) InsertPayment(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	err := t.q.QueryRow(ctx, `
		INSERT INTO payments(debt_id, proposed_by, amount, status, created_at)
		VALUES($1,NULLIF($2::bigint,0),$3,$4,$5)
		RETURNING payment_id
	`, p.DebtID, p.ProposedBy, p.Amount, string(p.Status), p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("insert payment: %w", mapError(err))
	}
	return p, nil
}

func (t *txStore) LockPayment(ctx context.Context, id int64) (domain.Payment, error) {
	return getPayment(ctx, t.q, id, true)
}

func (t *txStore) UpdatePaymentStatus(ctx context.Context, id int64, from, to domain.PaymentStatus, at time.Time) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE payments
		SET status=$3,
			confirmed_at=CASE WHEN $3='confirmed' THEN $4 ELSE confirmed_at END,
			rejected_at=CASE WHEN $3='rejected' THEN $4 ELSE rejected_at END
		WHERE payment_id=$1 AND status=$2
	`, id, string(from), string(to), at)
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", mapError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txStore) PaymentTotals(ctx context.Context, debtID int64) (domain.PaymentTotals, error) {
	var totals domain.PaymentTotals
	err := t.q.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status='confirmed'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status='pending_confirmation'), 0)
		FROM payments
		WHERE debt_id=$1
	`, debtID).Scan(&totals.Confirmed, &totals.Pending)
	if err != nil {
		return domain.PaymentTotals{}, fmt.Errorf("payment totals: %w", mapError(err))
	}
	return totals, nil
}

// Debt implements ledger.Reader.
func (s *Store) Debt(ctx context.Context, id int64) (domain.Debt, error) {
	return getDebt(ctx, s.pool, id, false)
}

// Payment implements ledger.Reader.
func (s *Store) Payment(ctx context.Context, id int64) (domain.Payment, error) {
	return getPayment(ctx, s.pool, id, false)
}

// ListDebts implements ledger.Reader.
func (s *Store) ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]domain.Debt, error) {
	sql, args := debtQuery(filter)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", mapError(err))
		}
		out = append(out, d)
	}
	return out, mapError(rows.Err())
}

// debtQuery builds the SELECT for filter with positional arguments.
func debtQuery(filter ledger.DebtFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.UserID != 0 {
		switch filter.Role {
		case ledger.RoleCreditor:
			where = append(where, "creditor_id="+arg(filter.UserID))
		case ledger.RoleDebtor:
			where = append(where, "debtor_id="+arg(filter.UserID))
		default:
			p := arg(filter.UserID)
			where = append(where, "(creditor_id="+p+" OR debtor_id="+p+")")
		}
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if !filter.CreatedBefore.IsZero() {
		where = append(where, "created_at < "+arg(filter.CreatedBefore))
	}

	sql := `SELECT ` + debtColumns + ` FROM debts`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY debt_id`
	if filter.Limit > 0 {
		sql += ` LIMIT ` + arg(filter.Limit)
	}
	return sql, args
}

// ListPayments implements ledger.Reader.
func (s *Store) ListPayments(ctx context.Context, debtID int64) ([]domain.Payment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE debt_id=$1 ORDER BY payment_id`, debtID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", mapError(err))
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}

// NetBalances implements ledger.Reader from the net_balances view.
func (s *Store) NetBalances(ctx context.Context, userID int64) ([]domain.NetBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT creditor_id, debtor_id, total_debt
		FROM net_balances
		WHERE creditor_id=$1 OR debtor_id=$1
		ORDER BY creditor_id, debtor_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("net balances: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.NetBalance
	for rows.Next() {
		var b domain.NetBalance
		if err := rows.Scan(&b.CreditorID, &b.DebtorID, &b.TotalDebt); err != nil {
			return nil, fmt.Errorf("scan net balance: %w", mapError(err))
		}
		out = append(out, b)
	}
	return out, mapError(rows.Err())
}

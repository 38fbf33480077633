package postgres

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/ledger"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization", &pgconn.PgError{Code: "40001"}, domain.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrConflict},
		{"connection exception", &pgconn.PgError{Code: "08006"}, domain.ErrUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, domain.ErrUnavailable},
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), domain.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}
}

func TestMapErrorPassThrough(t *testing.T) {
	assert.NoError(t, mapError(nil))

	domainErr := domain.Errorf(domain.CodeUnauthorized, "nope")
	assert.Same(t, domainErr, mapError(domainErr))

	checkErr := &pgconn.PgError{Code: "23514"}
	got := mapError(checkErr)
	_, coded := domain.CodeOf(got)
	assert.False(t, coded)

	assert.ErrorIs(t, mapError(context.Canceled), context.Canceled)
}

func TestDebtQuery(t *testing.T) {
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sql, args := debtQuery(ledger.DebtFilter{
		UserID:        7,
		Statuses:      []domain.DebtStatus{domain.DebtPending},
		CreatedBefore: before,
		Limit:         50,
	})
	assert.Contains(t, sql, "(creditor_id=$1 OR debtor_id=$1)")
	assert.Contains(t, sql, "status = ANY($2)")
	assert.Contains(t, sql, "created_at < $3")
	assert.Contains(t, sql, "LIMIT $4")
	assert.Equal(t, []any{int64(7), []string{"pending"}, before, 50}, args)

	sql, args = debtQuery(ledger.DebtFilter{UserID: 7, Role: ledger.RoleDebtor})
	assert.Contains(t, sql, "WHERE debtor_id=$1 ORDER BY debt_id")
	assert.Len(t, args, 1)
}

func TestMigrationFilesOrdered(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_ledger_extensions.sql"}, files)
}

// Integration tests run against a disposable database named by LEDGER_TEST_DATABASE_URL.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = Migrate(ctx, pool)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE users, debts, payments, trusted_users, job_watermarks RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return New(pool)
}

func TestIntegrationLedgerFlow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, u := range []domain.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}} {
		_, err := store.UpsertUser(ctx, u)
		require.NoError(t, err)
	}

	l := ledger.New(store, nil)
	d, err := l.CreateDebt(ctx, 1, 2, 900, "dinner")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.ConfirmDebt(ctx, d.ID, 2)
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	p, err := l.ProposePayment(ctx, d.ID, 2, 900)
	require.NoError(t, err)
	_, err = l.ProposePayment(ctx, d.ID, 2, 1)
	assert.ErrorIs(t, err, domain.ErrExceedsBalance)

	out, err := l.ConfirmPayment(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.True(t, out.Settled)

	balances, err := store.NetBalances(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestIntegrationGhostAdoption(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.UpsertUser(ctx, domain.User{ID: 1, Username: "alice"})
	require.NoError(t, err)

	l := ledger.New(store, nil)
	ghostIntent := domain.DebtIntent{DebtorHandle: "carol", Amount: 300, Ghost: true}

	// A failing message rolls its placeholder back.
	_, err = l.CreateDebts(ctx, 1, []domain.DebtIntent{ghostIntent, {DebtorID: 999, Amount: 100}})
	require.Error(t, err)
	_, err = store.UserByUsername(ctx, "carol")
	require.ErrorIs(t, err, domain.ErrNotFound)

	debts, err := l.CreateDebts(ctx, 1, []domain.DebtIntent{ghostIntent})
	require.NoError(t, err)
	d := debts[0]
	require.Less(t, d.DebtorID, int64(0))

	again, err := l.CreateDebts(ctx, 1, []domain.DebtIntent{ghostIntent})
	require.NoError(t, err)
	assert.Equal(t, d.DebtorID, again[0].DebtorID)

	_, err = store.UpsertUser(ctx, domain.User{ID: 3, Username: "carol"})
	require.NoError(t, err)

	got, err := store.Debt(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.DebtorID)
}

func TestIntegrationWatermarkClaimOnce(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	w := domain.Watermark{UserID: 1, Job: "weekly_report", Period: "2026-03-02", ClaimedAt: time.Now()}
	ok, err := store.ClaimWatermark(ctx, w)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimWatermark(ctx, w)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ReleaseWatermark(ctx, w))
	ok, err = store.ClaimWatermark(ctx, w)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.PruneWatermarks(ctx, w.ClaimedAt.Add(time.Second))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	ok, err = store.ClaimWatermark(ctx, w)
	require.NoError(t, err)
	assert.True(t, ok)
}


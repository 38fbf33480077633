package generator

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/identity"
	"github.com/vanshika/debtbook/internal/ledger"
	"github.com/vanshika/debtbook/internal/logging"
	"github.com/vanshika/debtbook/internal/notify"
	"github.com/vanshika/debtbook/internal/parser"
	"github.com/vanshika/debtbook/internal/service"
	"github.com/vanshika/debtbook/internal/store/memory"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NumUsers = 12
	cfg.NumMessages = 150
	cfg.Seed = 7
	return cfg
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)
	b, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("datasets differ (-first +second):\n%s", diff)
	}
	assert.Len(t, a.Users, 12)
	assert.Len(t, a.Messages, 150)
}

func TestGeneratedMessagesParse(t *testing.T) {
	ds, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)

	byName := make(map[string]int64, len(ds.Users))
	for _, u := range ds.Users {
		byName[u.Username] = u.ID
	}
	resolver := parser.ResolverFunc(func(_ context.Context, handle string) (int64, bool, error) {
		id, ok := byName[domain.NormalizeUsername(handle)]
		return id, ok, nil
	})

	for _, msg := range ds.Messages {
		intents, err := parser.Parse(context.Background(), msg.Text, msg.SenderID, resolver, parser.DefaultOptions())
		require.NoError(t, err, "message %q", msg.Text)
		for _, in := range intents {
			assert.Positive(t, in.Amount)
			assert.NotEqual(t, msg.SenderID, in.DebtorID)
		}
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(smallConfig()).Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteAndLoadDataset(t *testing.T) {
	ds, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, WriteDataset(ds, dir))
	loaded, err := LoadDataset(dir)
	require.NoError(t, err)
	assert.Equal(t, ds.Messages, loaded.Messages)
	assert.Len(t, loaded.Users, len(ds.Users))

	_, err = LoadDataset(t.TempDir())
	assert.Error(t, err)
}

func TestIngestIntoLedger(t *testing.T) {
	ds, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)

	logger := logging.Discard()
	store := memory.New()
	svc := service.NewDebtService(ledger.New(store, logger), identity.NewDirectory(store, logger), store,
		notify.Discard, service.Options{Parser: parser.DefaultOptions()}, logger)

	report, err := Ingest(context.Background(), svc, ds, 4)
	require.NoError(t, err)
	assert.Equal(t, len(ds.Users), report.Users)
	assert.Equal(t, len(ds.Messages), report.Messages)
	assert.Zero(t, report.Rejected)

	debts, err := store.ListDebts(context.Background(), ledger.DebtFilter{})
	require.NoError(t, err)
	assert.Len(t, debts, report.Debts)
	for _, d := range debts {
		assert.Equal(t, domain.DebtPending, d.Status)
	}
}

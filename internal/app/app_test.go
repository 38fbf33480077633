package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vanshika/debtbook/internal/config"
	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/logging"
	"github.com/vanshika/debtbook/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewWiresInMemoryBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Watermark.Backend = config.BackendSQLite
	cfg.Watermark.SQLitePath = filepath.Join(t.TempDir(), "wm", "watermarks.db")

	rec := &notify.Recorder{}
	a, err := New(context.Background(), cfg, logging.Discard(), Options{Transport: rec})
	require.NoError(t, err)
	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Graph)

	ctx := context.Background()
	_, err = a.Service.Register(ctx, domain.User{ID: 1, Username: "alice"})
	require.NoError(t, err)
	_, err = a.Service.Register(ctx, domain.User{ID: 2, Username: "bob"})
	require.NoError(t, err)

	res, err := a.Service.SubmitMessage(ctx, 1, "@bob 500 lunch")
	require.NoError(t, err)
	require.Len(t, res.Debts, 1)

	report, err := a.Scheduler.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Expired)

	require.NoError(t, a.Close(ctx))
	assert.Equal(t, []notify.Kind{notify.KindDebtProposed}, rec.Kinds(2), "close drains the queue")
	assert.NoError(t, a.Close(ctx), "second close is a no-op")
}

func TestNewRejectsPostgresWatermarksWithoutDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Watermark.Backend = config.BackendPostgres

	_, err := New(context.Background(), cfg, logging.Discard(), Options{Transport: notify.Discard})
	assert.Error(t, err)
}

func TestNewGraphTrustRequiresURI(t *testing.T) {
	cfg := config.Default()
	cfg.Watermark.Backend = config.BackendMemory
	cfg.Trust.Backend = config.BackendGraph

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := New(ctx, cfg, logging.Discard(), Options{Transport: notify.Discard})
	assert.Error(t, err)
}

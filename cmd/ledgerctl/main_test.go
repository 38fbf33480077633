package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("WATERMARK_BACKEND", "memory")
	t.Setenv("TRUST_BACKEND", "store")
	t.Setenv("BOT_TOKEN", "")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParsePreview(t *testing.T) {
	out, err := runCLI(t, "parse", "--as", "alice", "@bob @carol 900/3 dinner")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "@bob")
	assert.Contains(t, lines[1], "3.00")
	assert.Contains(t, lines[2], "@carol")
	assert.Contains(t, lines[2], "dinner")
}

func TestParseReportsErrors(t *testing.T) {
	_, err := runCLI(t, "parse", "--as", "alice", "@alice 100")
	assert.Error(t, err)

	_, err = runCLI(t, "parse", "hello there")
	assert.Error(t, err)
}

func TestSweepOnEmptyLedger(t *testing.T) {
	out, err := runCLI(t, "sweep", "--expire-only")
	require.NoError(t, err)
	assert.Equal(t, "expired=0 reminded=0 pruned=0 failed=0\n", out)

	out, err = runCLI(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "expired=0 reminded=0 pruned=0 failed=0\n", out)
}

func TestReconcileArguments(t *testing.T) {
	_, err := runCLI(t, "reconcile")
	assert.Error(t, err)

	_, err = runCLI(t, "reconcile", "debt-7")
	assert.ErrorContains(t, err, "invalid debt id")

	_, err = runCLI(t, "reconcile", "7")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBalanceRequiresNumericID(t *testing.T) {
	_, err := runCLI(t, "balance", "alice")
	assert.Error(t, err)

	out, err := runCLI(t, "balance", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "net: 0.00")
}

func TestMigrateNeedsDatabase(t *testing.T) {
	_, err := runCLI(t, "migrate")
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestTrustPathNeedsGraph(t *testing.T) {
	_, err := runCLI(t, "trust-path", "1", "2")
	assert.ErrorContains(t, err, "TRUST_BACKEND=graph")
}

func TestDatagenThenIngest(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, "datagen", "--users", "8", "--messages", "40", "--seed", "3", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 8 users and 40 messages")

	out, err = runCLI(t, "ingest", "--dataset-dir", dir, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("users=%d messages=%d", 8, 40))
	assert.Contains(t, out, "rejected=0")
}

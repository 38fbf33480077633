package trust

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/graph"
)

func TestTrustMergesRelationship(t *testing.T) {
	client := graph.NewMemoryClient()
	store := NewGraphStore(client)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store.WithClock(func() time.Time { return now })

	require.NoError(t, store.Trust(context.Background(), 1, 2))

	calls := client.WriteCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Query, "MERGE (a)-[r:TRUSTS]->(b)")
	assert.Equal(t, map[string]any{"truster": int64(1), "trusted": int64(2), "now": now}, calls[0].Params)
}

func TestTrustSelfRejected(t *testing.T) {
	client := graph.NewMemoryClient()
	err := NewGraphStore(client).Trust(context.Background(), 5, 5)
	assert.ErrorIs(t, err, domain.ErrSelfDebt)
	assert.Empty(t, client.WriteCalls())
}

func TestTrusts(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{Records: []graph.Record{{"trusted": true}}})
	client.PushReadResult(graph.Result{Records: []graph.Record{{"trusted": false}}})
	store := NewGraphStore(client)
	ctx := context.Background()

	ok, err := store.Trusts(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Trusts(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListTrusted(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{Records: []graph.Record{
		{"trusted_id": int64(2), "created_at": at},
		{"trusted_id": int64(3)},
	}})

	got, err := NewGraphStore(client).ListTrusted(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.TrustRelation{
		{TrusterID: 1, TrustedID: 2, CreatedAt: at},
		{TrusterID: 1, TrustedID: 3},
	}, got)
}

func TestPathLength(t *testing.T) {
	client := graph.NewMemoryClient()
	client.Handle("shortestPath", func(params map[string]any) (graph.Result, error) {
		if params["to"] == int64(9) {
			return graph.Result{}, nil
		}
		return graph.Result{Records: []graph.Record{{"hops": int64(2)}}}, nil
	})
	store := NewGraphStore(client)
	ctx := context.Background()

	hops, ok, err := store.PathLength(ctx, 1, 3, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, hops)
	assert.Contains(t, client.ReadCalls()[0].Query, "[:TRUSTS*1..4]")

	_, ok, err = store.PathLength(ctx, 1, 9, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	hops, ok, err = store.PathLength(ctx, 7, 7, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, hops)
	assert.Len(t, client.ReadCalls(), 2)
}

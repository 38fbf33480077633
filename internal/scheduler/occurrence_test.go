package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastWeekly(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"same day after hour", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		{"same day before hour", time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC), time.Date(2026, 2, 23, 10, 0, 0, 0, time.UTC)},
		{"later in week", time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastWeekly(tt.now, time.UTC, time.Monday, 10))
		})
	}
}

func TestLastPayday(t *testing.T) {
	days := []int{1, 15, 31}
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid month", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)},
		{"before first payday falls back a month", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)},
		{"year boundary", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC)},
		{"thirty day month", time.Date(2026, 4, 30, 11, 0, 0, 0, time.UTC), time.Date(2026, 4, 30, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastPayday(tt.now, time.UTC, days, 10))
		})
	}
}

func TestBatchCollectsFailures(t *testing.T) {
	var calls atomic.Int64
	b := batch{workers: 3, itemTimeout: time.Second}
	err := b.run(context.Background(), 10, func(_ context.Context, idx int) error {
		calls.Add(1)
		if idx%4 == 0 {
			return errors.New("bad row")
		}
		return nil
	})
	require.Error(t, err)
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Len(t, taskErr.Errors, 3)
	assert.Equal(t, int64(10), calls.Load())
}

func TestBatchItemTimeoutSkipsStuckItem(t *testing.T) {
	ctx := context.Background()
	b := batch{workers: 1, itemTimeout: 20 * time.Millisecond}
	var done atomic.Int64
	err := b.run(ctx, 3, func(itemCtx context.Context, idx int) error {
		if idx == 0 {
			<-itemCtx.Done()
			return itemCtx.Err()
		}
		done.Add(1)
		return nil
	})
	require.Error(t, err)
	assert.True(t, isTimeout(ctx, err.(*TaskError).Errors[0]))
	assert.Equal(t, int64(2), done.Load())
}

func TestBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := batch{workers: 2}.run(ctx, 5, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

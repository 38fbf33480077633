package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vanshika/debtbook/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEventHasUniqueID(t *testing.T) {
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	a := NewEvent(KindDebtProposed, at)
	b := NewEvent(KindDebtProposed, at)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, at, a.OccurredAt)
}

func TestRender(t *testing.T) {
	ev := Event{Kind: KindDebtProposed, DebtID: 7, Amount: 1250, Counterparty: "@alice", Description: "pizza"}
	assert.Equal(t, `@alice says you owe them 12.50 for "pizza". Debt #7 is waiting for your confirmation.`, Render(ev, 2))

	report := Render(Event{Kind: KindWeeklyReport, Summary: domain.BalanceSummary{OwedToUser: 300, OwedByUser: 9000}}, 2)
	assert.Contains(t, report, "Owed to you: 3.00")
	assert.Contains(t, report, "You owe: 90.00")

	assert.Equal(t, "Payday reminder: you owe 900 in total.",
		Render(Event{Kind: KindPaydayReminder, Summary: domain.BalanceSummary{OwedByUser: 900}}, 0))
}

func TestAsyncDeliversQueuedEventsOnClose(t *testing.T) {
	rec := &Recorder{}
	async := NewAsync(rec, discardLogger(), AsyncOptions{Workers: 3, Buffer: 64})
	ctx := context.Background()

	for i := int64(1); i <= 20; i++ {
		require.NoError(t, async.Notify(ctx, i, NewEvent(KindDebtConfirmed, time.Now())))
	}
	require.NoError(t, async.Close(ctx))
	assert.Len(t, rec.Events(), 20)

	assert.ErrorIs(t, async.Notify(ctx, 1, Event{}), ErrClosed)
	require.NoError(t, async.Close(ctx), "closing twice is harmless")
}

func TestAsyncDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var (
		mu        sync.Mutex
		delivered int
	)
	blocking := PortFunc(func(context.Context, int64, Event) error {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	async := NewAsync(blocking, discardLogger(), AsyncOptions{Workers: 1, Buffer: 1})
	ctx := context.Background()

	// One event may be held by the worker and one by the buffer; the rest are dropped.
	for i := 0; i < 10; i++ {
		require.NoError(t, async.Notify(ctx, 1, Event{Kind: KindDebtExpired}))
	}
	close(release)
	require.NoError(t, async.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, delivered, 2)
	assert.GreaterOrEqual(t, delivered, 1)
}

func TestAsyncFailureDoesNotStopWorkers(t *testing.T) {
	rec := &Recorder{Err: errors.New("blocked by user")}
	async := NewAsync(rec, discardLogger(), AsyncOptions{Workers: 1, Buffer: 8})
	ctx := context.Background()

	require.NoError(t, async.Notify(ctx, 1, Event{Kind: KindDebtExpired}))
	require.NoError(t, async.Notify(ctx, 2, Event{Kind: KindDebtExpired}))
	require.NoError(t, async.Close(ctx))
	assert.Len(t, rec.Events(), 2)
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramSendsDirectMessage(t *testing.T) {
	sender := &fakeSender{}
	tg := NewTelegram(sender, discardLogger(), 2)
	ctx := context.Background()

	require.NoError(t, tg.Notify(ctx, 42, Event{Kind: KindDebtSettled, DebtID: 3, Counterparty: "@bob"}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, "Debt #3 with @bob is fully paid.", sender.sent[0].Text)

	require.NoError(t, tg.Notify(ctx, -5, Event{Kind: KindDebtProposed}))
	assert.Len(t, sender.sent, 1, "placeholder users have no chat")
}

func TestTelegramSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}
	err := NewTelegram(sender, discardLogger(), 2).Notify(context.Background(), 42, Event{Kind: KindDebtExpired})
	assert.ErrorContains(t, err, "blocked")
}

func TestRecorderKinds(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()
	require.NoError(t, rec.Notify(ctx, 1, Event{Kind: KindDebtProposed}))
	require.NoError(t, rec.Notify(ctx, 2, Event{Kind: KindDebtConfirmed}))
	require.NoError(t, rec.Notify(ctx, 1, Event{Kind: KindDebtSettled}))
	assert.Equal(t, []Kind{KindDebtProposed, KindDebtSettled}, rec.Kinds(1))
}

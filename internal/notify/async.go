package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Async.Notify after Close.
var ErrClosed = errors.New("notifier closed")

type delivery struct {
	userID int64
	ev     Event
}

// Async queues events and delivers them from a fixed set of workers so callers never block on
// the transport. Events that do not fit in the queue are dropped and logged.
type Async struct {
	next    Port
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan delivery
	wg     sync.WaitGroup
}

// AsyncOptions tunes the dispatcher.
type AsyncOptions struct {
	Workers int
	Buffer  int
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

// NewAsync starts the workers.
func NewAsync(next Port, logger *slog.Logger, opts AsyncOptions) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	a := &Async{
		next:    next,
		logger:  logger.With("component", "notify"),
		timeout: opts.Timeout,
		queue:   make(chan delivery, opts.Buffer),
	}
	for i := 0; i < opts.Workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	return a
}

// Notify enqueues ev without waiting for delivery.
func (a *Async) Notify(_ context.Context, userID int64, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- delivery{userID: userID, ev: ev}:
		return nil
	default:
		a.logger.Warn("notification queue full, dropping event", "user_id", userID, "kind", ev.Kind, "event_id", ev.ID)
		return nil
	}
}

func (a *Async) worker() {
	defer a.wg.Done()
	for d := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Notify(ctx, d.userID, d.ev); err != nil {
			a.logger.Warn("notification failed", "user_id", d.userID, "kind", d.ev.Kind, "debt_id", d.ev.DebtID, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until queued events are delivered or ctx ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

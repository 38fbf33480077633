package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// TaskError accumulates the per-item failures of one batch.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "multiple errors: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// batch runs item functions on a bounded worker pool. Each item gets its own deadline; a
// failing or stuck item does not stop the others.
type batch struct {
	workers     int
	itemTimeout time.Duration
}

func (b batch) run(ctx context.Context, total int, fn func(ctx context.Context, idx int) error) error {
	if total == 0 {
		return nil
	}
	workers := b.workers
	if workers <= 0 {
		workers = 4
	}
	if workers > total {
		workers = total
	}

	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			itemCtx, cancel := ctx, context.CancelFunc(func() {})
			if b.itemTimeout > 0 {
				itemCtx, cancel = context.WithTimeout(ctx, b.itemTimeout)
			}
			err := fn(itemCtx, idx)
			cancel()
			if err != nil {
				errCh <- err
			}
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	var taskErr TaskError
	for err := range errCh {
		taskErr.append(err)
	}
	return taskErr.asError()
}

// isTimeout reports whether err came from an item deadline rather than the run's context.
func isTimeout(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

package emr

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ErrDispatcherClosed is returned by Dispatch after Shutdown has begun.
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Task is a unit of background work. It must return promptly once ctx is
// cancelled.
type Task func(ctx context.Context)

// Dispatcher runs tasks in the background with bounded concurrency and
// tracks them so shutdown can wait for in-flight work.
type Dispatcher struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(workers int, logger zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch schedules task and returns immediately. Tasks queue for a worker
// slot in their own goroutine, so the caller never waits.
func (d *Dispatcher) Dispatch(task Task) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Interface("panic", r).Msg("background task panicked")
			}
		}()
		// A task cancelled before it got a slot still runs so it can record
		// a terminal status.
		if err := d.sem.Acquire(d.ctx, 1); err == nil {
			defer d.sem.Release(1)
		}
		task(d.ctx)
	}()
	return nil
}

// Shutdown stops accepting tasks and waits for in-flight ones. When ctx
// expires first, the remaining tasks are cancelled and Shutdown waits for
// them to observe the cancellation before returning ctx.Err().
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn().Msg("shutdown grace period expired, cancelling background tasks")
		d.cancel()
		<-done
		return ctx.Err()
	}
}

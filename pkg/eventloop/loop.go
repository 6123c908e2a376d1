// Package eventloop provides a single-goroutine task executor.
//
// Every task submitted to a Loop runs on the same goroutine, one at a time,
// in submission order. Code that only touches shared state from inside loop
// tasks needs no further synchronisation with other loop tasks. Callers on
// other goroutines use Do to run a task and wait for it.
//
// The queue is unbounded so a task may submit follow-up work to its own loop
// without deadlocking.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned when submitting to a loop that has stopped.
var ErrStopped = errors.New("eventloop: stopped")

// Loop executes submitted tasks sequentially on one goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger *slog.Logger
}

// New creates a loop. Run must be called to start executing tasks.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
// Tasks still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.markClosed()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-l.wake:
		}

		for {
			task := l.next()
			if task == nil {
				break
			}
			l.exec(task)

			select {
			case <-l.stop:
				return nil
			default:
			}
		}
	}
}

// Submit enqueues a task without waiting for it to run.
func (l *Loop) Submit(task func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do runs task on the loop and waits for it to finish.
// It must not be called from a task running on the same loop.
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	err := l.Submit(func() {
		defer close(finished)
		task()
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop halts the loop after the task currently running, if any.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.markClosed()
		close(l.stop)
	})
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task
}

func (l *Loop) markClosed() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// exec runs one task, keeping the loop alive if it panics.
func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	task()
}

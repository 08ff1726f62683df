// Package runloop provides the single coordination goroutine that owns all
// desktop state. OS notifications and client commands are both submitted as
// tasks and run strictly in arrival order.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned when a task is submitted after the loop has stopped.
var ErrStopped = errors.New("run loop stopped")

// Loop is an unbounded FIFO task queue drained by one goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

// New creates an idle loop. Tasks may be posted before Run starts.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// Post enqueues fn without waiting. It never blocks, so tasks may post
// further tasks. Returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for its result. It must not be called
// from a task already running on the loop. If the loop stops before fn runs,
// Do returns ErrStopped.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !l.Post(func() {
		result <- runTask(fn)
	}) {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Run drains the queue until ctx is cancelled. Tasks still queued at
// cancellation are discarded and their Do callers get ErrStopped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			l.stop()
			return ctx.Err()
		}
		l.Drain()

		select {
		case <-ctx.Done():
			l.stop()
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.queue = nil
	close(l.done)
}

// Drain runs every queued task, including tasks posted while draining, on the
// calling goroutine and returns how many ran. Tests use it in place of Run.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		n++
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func runTask(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}

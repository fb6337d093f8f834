// Package scheduler provides the single-goroutine reactor that owns all
// stateful operations against the source-of-truth store. Long-latency
// work (embedding generation, LLM calls) runs on caller goroutines; the
// result is handed back to the reactor with Resume before any
// transactional write. The hand-off is a first-class step, not an
// incidental detail: skipping it breaks session/transaction affinity.
package scheduler

import (
	"context"
	"errors"
	"fmt"
)

// ErrStopped is returned by Resume once the reactor loop has exited.
var ErrStopped = errors.New("scheduler: reactor stopped")

type task struct {
	fn   func() error
	done chan error
}

// Reactor executes submitted tasks one at a time on a single dedicated
// goroutine.
type Reactor struct {
	tasks   chan task
	stopped chan struct{}
}

// New creates a Reactor. buffer bounds how many tasks may queue before
// Resume blocks; values <= 0 default to 16.
func New(buffer int) *Reactor {
	if buffer <= 0 {
		buffer = 16
	}
	return &Reactor{
		tasks:   make(chan task, buffer),
		stopped: make(chan struct{}),
	}
}

// Run drives the reactor loop until ctx is cancelled. It must be called
// exactly once; tasks submitted after it returns fail with ErrStopped.
func (r *Reactor) Run(ctx context.Context) {
	defer close(r.stopped)
	for {
		select {
		case <-ctx.Done():
			// Drain already-queued tasks so no Resume caller hangs.
			for {
				select {
				case t := <-r.tasks:
					t.done <- ErrStopped
				default:
					return
				}
			}
		case t := <-r.tasks:
			t.done <- r.runTask(t.fn)
		}
	}
}

func (r *Reactor) runTask(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scheduler: task panicked: %v", p)
		}
	}()
	return fn()
}

// Resume hands control back to the reactor goroutine: fn runs there,
// serialized with every other transactional operation, and Resume
// returns its error. This is the mandatory step between a worker-pool
// computation and any source-of-truth write.
func (r *Reactor) Resume(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case r.tasks <- t:
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-r.stopped:
		// The loop may have answered just before exiting.
		select {
		case err := <-t.done:
			return err
		default:
			return ErrStopped
		}
	}
}

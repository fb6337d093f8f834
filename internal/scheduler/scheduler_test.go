package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startReactor(t *testing.T) (*Reactor, context.CancelFunc) {
	t.Helper()
	r := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return r, cancel
}

func TestResume_RunsOnSingleGoroutine(t *testing.T) {
	r, cancel := startReactor(t)
	defer cancel()

	// Unsynchronized counter: safe only if tasks are serialized.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Resume(context.Background(), func() error {
				counter++
				return nil
			})
			if err != nil {
				t.Errorf("Resume: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestResume_PropagatesError(t *testing.T) {
	r, cancel := startReactor(t)
	defer cancel()

	want := errors.New("write failed")
	got := r.Resume(context.Background(), func() error { return want })
	if !errors.Is(got, want) {
		t.Errorf("Resume error = %v, want %v", got, want)
	}
}

func TestResume_AfterStop(t *testing.T) {
	r, cancel := startReactor(t)
	cancel()

	// Wait for the loop to exit.
	deadline := time.After(time.Second)
	for {
		err := r.Resume(context.Background(), func() error { return nil })
		if errors.Is(err, ErrStopped) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("Resume never returned ErrStopped, last err: %v", err)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestResume_RespectsCallerContext(t *testing.T) {
	r := New(1)
	// Reactor deliberately not running: submission should fail on ctx.
	r.tasks <- task{fn: func() error { return nil }, done: make(chan error, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Resume(ctx, func() error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Resume error = %v, want DeadlineExceeded", err)
	}
}

func TestResume_RecoversPanic(t *testing.T) {
	r, cancel := startReactor(t)
	defer cancel()

	err := r.Resume(context.Background(), func() error { panic("boom") })
	if err == nil {
		t.Fatal("Resume returned nil for panicking task")
	}

	// The loop must survive the panic.
	if err := r.Resume(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("reactor dead after panic: %v", err)
	}
}

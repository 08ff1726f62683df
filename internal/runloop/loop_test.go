package runloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDrain_RunsInArrivalOrderIncludingNestedPosts(t *testing.T) {
	l := New()
	var got []int

	l.Post(func() {
		got = append(got, 1)
		l.Post(func() { got = append(got, 3) })
	})
	l.Post(func() { got = append(got, 2) })

	if n := l.Drain(); n != 3 {
		t.Fatalf("expected 3 tasks to run, got %d", n)
	}
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if l.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d pending", l.Pending())
	}
}

func TestDo_ReturnsTaskResult(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	sentinel := errors.New("boom")
	if err := l.Do(context.Background(), func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	ran := false
	if err := l.Do(context.Background(), func() error { ran = true; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatalf("expected task to run")
	}
}

func TestDo_RecoversPanics(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	err := l.Do(context.Background(), func() error { panic("bad task") })
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

func TestPost_AfterStopFails(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}

	if l.Post(func() {}) {
		t.Fatalf("expected Post to fail after stop")
	}
	if err := l.Do(context.Background(), func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestDo_PendingAtStopReturnsErrStopped(t *testing.T) {
	l := New()
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Do(context.Background(), func() error { return nil })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for l.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Do never queued its task")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("Do() error = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Do blocked after the loop stopped")
	}
	if l.Pending() != 0 {
		t.Fatalf("expected discarded queue, got %d pending", l.Pending())
	}
}

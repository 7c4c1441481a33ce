package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoPanicIsContained(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	s.Go0("boom", func(ctx context.Context) { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("Wait err = %v, want the recovered panic", err)
	}
}

func TestCancelOnErrorPropagates(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background(), WithCancelOnError(true))

	s.Go("fails", func(ctx context.Context) error { return errors.New("db gone") })

	select {
	case <-s.Context().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor context not cancelled after error")
	}
	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "db gone") {
		t.Fatalf("Err = %v, want the goroutine's error", err)
	}
}

func TestCleanCancelIsNotAnError(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v, want nil for a context.Canceled exit", err)
	}
}

func TestGoRestartRestartsOnError(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var runs atomic.Int32
	done := make(chan struct{})
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop ran %d times, want 3", runs.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v after a clean final exit", err)
	}
}

func TestGoRestartGivesUpAfterMaxRestarts(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var runs atomic.Int32
	s.GoRestart("hopeless", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("still broken")
	},
		WithRestartBackoff(time.Millisecond, 2*time.Millisecond),
		WithMaxRestarts(2),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "still broken") {
		t.Fatalf("Wait = %v, want the final error", err)
	}
	// Initial run plus two restarts.
	if n := runs.Load(); n != 3 {
		t.Fatalf("loop ran %d times, want 3", n)
	}
}

func TestWaitHonorsDeadline(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())
	release := make(chan struct{})
	s.Go0("stuck", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestSnapshotCountsGoroutines(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		s.Go0("worker", func(ctx context.Context) { <-release })
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.Snapshot().Active != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Active = %d, want 3", s.Snapshot().Active)
		}
		time.Sleep(time.Millisecond)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v", err)
	}
	snap := s.Snapshot()
	if snap.Active != 0 || snap.Started != 3 {
		t.Fatalf("Snapshot = %+v, want 0 active / 3 started", snap)
	}
}

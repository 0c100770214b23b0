package knxsupervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisorRestartsOnPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	sup := New(nil)
	sup.Go(ctx, Worker{
		Name: "crashy",
		Run: func(ctx context.Context) error {
			if runs.Add(1) < 3 {
				panic("boom")
			}
			<-ctx.Done()
			return ctx.Err()
		},
		RestartDelay: time.Millisecond,
	})

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("worker restarted %d times, want 3 runs", runs.Load())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	sup.Wait()

	stats := sup.Stats()
	if len(stats) != 1 {
		t.Fatalf("stats = %v", stats)
	}
	if stats[0].Status != StatusStopped {
		t.Errorf("status = %q, want stopped", stats[0].Status)
	}
	if stats[0].RestartCount != 2 {
		t.Errorf("restarts = %d, want 2", stats[0].RestartCount)
	}
}

func TestSupervisorStopsAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := New(nil)
	sup.Go(ctx, Worker{
		Name: "hopeless",
		Run: func(context.Context) error {
			return errors.New("always fails")
		},
		RestartDelay:       time.Millisecond,
		MaxRestartAttempts: 2,
	})

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not give up on failing worker")
	}

	stats := sup.Stats()
	if stats[0].Status != StatusFailed {
		t.Errorf("status = %q, want failed", stats[0].Status)
	}
	if stats[0].LastError == "" {
		t.Error("expected last error to be recorded")
	}
}

func TestSupervisorCleanStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sup := New(nil)
	sup.Go(ctx, Worker{
		Name: "steady",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	cancel()

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop on cancellation")
	}

	if got := sup.Stats()[0].RestartCount; got != 0 {
		t.Errorf("restarts = %d, want 0", got)
	}
}

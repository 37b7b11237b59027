package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()
	var runs atomic.Int32
	if err := s.Add(ctx, "@every 1s", "count", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New()
	err := s.Add(context.Background(), "every tuesday", "bad", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Error("expected an error for an invalid spec")
	}
	if s.Len() != 0 {
		t.Errorf("invalid job must not be counted, Len() = %d", s.Len())
	}
}

package quota

import (
	"context"
	"testing"
	"time"
)

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	s := NewScheduler(nil, "", nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Empty schedule should not error: %v", err)
	}
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(nil, "not a cron expr", nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Expected error for invalid cron expression")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}
	governors := map[string]*Governor{
		"metadb": newTestGovernor(clock, nil),
	}

	s := NewScheduler(governors, "0 * * * *", nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Stop must return promptly and be idempotent.
	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

package app_test

import (
	"context"
	"testing"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
)

func TestReaperSweepFinalizesOverdueAttempts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _ := newTestService(t, timedExam(clock), clock)

	attempt, err := service.Start(ctx, "exam-1", "u1", "Alice", domain.Credential{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	reaper := app.NewDeadlineReaper(service, time.Second)
	clock.Advance(time.Hour)
	reaper.Sweep(ctx)

	stored, err := service.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if stored.Status != domain.AttemptExpired {
		t.Fatalf("expected expired attempt after sweep, got %s", stored.Status)
	}
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	service, _ := newTestService(t, timedExam(clock), clock)
	reaper := app.NewDeadlineReaper(service, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on context cancel")
	}
}

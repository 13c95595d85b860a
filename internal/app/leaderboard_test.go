package app_test

import (
	"testing"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
)

func terminalAttempt(id, name string, score float64, start, submitted time.Time) *domain.Attempt {
	return &domain.Attempt{
		ID:          id,
		DisplayName: name,
		StartTime:   start,
		Status:      domain.AttemptSubmitted,
		Result: &domain.Result{
			Score:       score,
			Percentage:  score,
			SubmittedAt: submitted,
		},
	}
}

func TestRankTieBrokenByEarlierSubmission(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	first := terminalAttempt("a1", "Alice", 10, start, start.Add(20*time.Minute))
	second := terminalAttempt("a2", "Bob", 10, start, start.Add(25*time.Minute))

	// Input deliberately out of order.
	entries := app.Rank([]*domain.Attempt{second, first})

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].AttemptID != "a1" || entries[0].Rank != 1 {
		t.Fatalf("expected a1 at rank 1, got %+v", entries[0])
	}
	if entries[1].AttemptID != "a2" || entries[1].Rank != 2 {
		t.Fatalf("expected a2 at rank 2, got %+v", entries[1])
	}
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := app.Rank([]*domain.Attempt{
		terminalAttempt("low", "Carol", 3, start, start.Add(time.Minute)),
		terminalAttempt("high", "Dave", 9, start, start.Add(2*time.Minute)),
	})

	if entries[0].AttemptID != "high" || entries[1].AttemptID != "low" {
		t.Fatalf("expected high before low, got %+v", entries)
	}
	if entries[0].CompletionSeconds != 120 {
		t.Fatalf("expected completion 120s, got %v", entries[0].CompletionSeconds)
	}
}

func TestRankSkipsInProgressAttempts(t *testing.T) {
	start := time.Now()
	inProgress := &domain.Attempt{ID: "live", Status: domain.AttemptInProgress}
	done := terminalAttempt("done", "Eve", 5, start, start.Add(time.Minute))

	entries := app.Rank([]*domain.Attempt{inProgress, done})
	if len(entries) != 1 || entries[0].AttemptID != "done" {
		t.Fatalf("expected only the terminal attempt, got %+v", entries)
	}
}

func TestRankIncludesExpiredAttempts(t *testing.T) {
	start := time.Now()
	expired := terminalAttempt("late", "Frank", 4, start, start.Add(time.Hour))
	expired.Status = domain.AttemptExpired

	entries := app.Rank([]*domain.Attempt{expired})
	if len(entries) != 1 || entries[0].AttemptID != "late" {
		t.Fatalf("expected expired attempt ranked, got %+v", entries)
	}
}

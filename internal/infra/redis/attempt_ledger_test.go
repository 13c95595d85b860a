package redis

import (
	"context"
	"testing"
	"time"

	"exam-attempt-service/internal/domain"
	"exam-attempt-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestAttemptLedgerMirrorsActiveMarker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	ledger := NewAttemptLedger(newClient(mr), memory.NewAttemptLedger(), time.Hour)

	attempt := &domain.Attempt{
		ID:        "a1",
		ExamID:    "exam-1",
		Identity:  "u1",
		Status:    domain.AttemptInProgress,
		Responses: make(map[string]string),
	}
	stored, created, err := ledger.CreateInProgress(ctx, attempt)
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}

	marker := "exam:active:exam-1:u1"
	got, err := mr.Get(marker)
	if err != nil {
		t.Fatalf("expected active marker after create: %v", err)
	}
	if got != stored.ID {
		t.Fatalf("expected marker to hold attempt id %s, got %s", stored.ID, got)
	}

	// The losing side of the compare-and-set does not rewrite the marker.
	if _, created, err := ledger.CreateInProgress(ctx, &domain.Attempt{
		ID: "a2", ExamID: "exam-1", Identity: "u1",
		Status: domain.AttemptInProgress, Responses: make(map[string]string),
	}); err != nil || created {
		t.Fatalf("expected losing create, created=%v err=%v", created, err)
	}

	if _, err := ledger.Finalize(ctx, "a1", domain.AttemptSubmitted, &domain.Result{Score: 1}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if mr.Exists(marker) {
		t.Fatal("expected active marker deleted on finalize")
	}
}

func TestAttemptLedgerDelegatesToInner(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	ledger := NewAttemptLedger(newClient(mr), memory.NewAttemptLedger(), time.Hour)

	if _, _, err := ledger.CreateInProgress(ctx, &domain.Attempt{
		ID: "a1", ExamID: "exam-1", Identity: "u1",
		Status: domain.AttemptInProgress, Responses: make(map[string]string),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := ledger.SetResponse(ctx, "a1", "q1", "B"); err != nil {
		t.Fatalf("set response: %v", err)
	}
	got, err := ledger.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Responses["q1"] != "B" {
		t.Fatalf("expected delegated response write, got %+v", got.Responses)
	}

	found, ok, err := ledger.FindInProgress(ctx, "exam-1", "u1")
	if err != nil || !ok || found.ID != "a1" {
		t.Fatalf("find in-progress: ok=%v err=%v attempt=%+v", ok, err, found)
	}
	if count, err := ledger.CountForIdentity(ctx, "exam-1", "u1"); err != nil || count != 1 {
		t.Fatalf("count: %d err=%v", count, err)
	}
}

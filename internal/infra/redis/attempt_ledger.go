package redis

import (
	"context"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AttemptLedger decorates an inner ledger with a Redis liveness marker for
// active attempts. Notes:
//   - The inner ledger remains the source of truth and still performs the
//     compare-and-set create; the SETNX key mirrors the InProgress invariant
//     so other instances (and operators) can observe active attempts.
//   - The marker TTL should comfortably exceed the longest exam duration so
//     it never expires under a live attempt.
type AttemptLedger struct {
	client *redis.Client
	inner  app.AttemptLedger
	ttl    time.Duration
}

var _ app.AttemptLedger = (*AttemptLedger)(nil)

func NewAttemptLedger(client *redis.Client, inner app.AttemptLedger, ttl time.Duration) *AttemptLedger {
	return &AttemptLedger{client: client, inner: inner, ttl: ttl}
}

func (l *AttemptLedger) CreateInProgress(ctx context.Context, attempt *domain.Attempt) (*domain.Attempt, bool, error) {
	stored, created, err := l.inner.CreateInProgress(ctx, attempt)
	if err != nil {
		return nil, false, err
	}
	if created {
		// best-effort active marker
		_ = l.client.SetNX(ctx, l.activeKey(stored.ExamID, stored.Identity), stored.ID, l.ttl).Err()
	}
	return stored, created, nil
}

func (l *AttemptLedger) Get(ctx context.Context, attemptID string) (*domain.Attempt, error) {
	return l.inner.Get(ctx, attemptID)
}

func (l *AttemptLedger) FindInProgress(ctx context.Context, examID, identity string) (*domain.Attempt, bool, error) {
	return l.inner.FindInProgress(ctx, examID, identity)
}

func (l *AttemptLedger) CountForIdentity(ctx context.Context, examID, identity string) (int, error) {
	return l.inner.CountForIdentity(ctx, examID, identity)
}

func (l *AttemptLedger) SetResponse(ctx context.Context, attemptID, questionID, selected string) error {
	return l.inner.SetResponse(ctx, attemptID, questionID, selected)
}

func (l *AttemptLedger) Finalize(ctx context.Context, attemptID string, status domain.AttemptStatus, result *domain.Result) (*domain.Attempt, error) {
	stored, err := l.inner.Finalize(ctx, attemptID, status, result)
	if err != nil {
		return nil, err
	}
	_ = l.client.Del(ctx, l.activeKey(stored.ExamID, stored.Identity)).Err()
	return stored, nil
}

func (l *AttemptLedger) ListOverdue(ctx context.Context, now time.Time) ([]*domain.Attempt, error) {
	return l.inner.ListOverdue(ctx, now)
}

func (l *AttemptLedger) ListTerminal(ctx context.Context, examID string) ([]*domain.Attempt, error) {
	return l.inner.ListTerminal(ctx, examID)
}

func (l *AttemptLedger) activeKey(examID, identity string) string {
	return "exam:active:" + examID + ":" + identity
}

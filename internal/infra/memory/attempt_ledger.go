package memory

import (
	"context"
	"sync"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
)

// AttemptLedger is an in-memory implementation of app.AttemptLedger. It hands
// out clones so callers never alias ledger state; the per-identity active
// index makes CreateInProgress a compare-and-set under the ledger lock.
type AttemptLedger struct {
	mu       sync.RWMutex
	attempts map[string]*domain.Attempt
	active   map[string]string // exam id + identity -> attempt id
}

var _ app.AttemptLedger = (*AttemptLedger)(nil)

func NewAttemptLedger() *AttemptLedger {
	return &AttemptLedger{
		attempts: make(map[string]*domain.Attempt),
		active:   make(map[string]string),
	}
}

func activeKey(examID, identity string) string {
	return examID + "\x00" + identity
}

func (l *AttemptLedger) CreateInProgress(_ context.Context, attempt *domain.Attempt) (*domain.Attempt, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := activeKey(attempt.ExamID, attempt.Identity)
	if existingID, ok := l.active[key]; ok {
		return l.attempts[existingID].Clone(), false, nil
	}

	stored := attempt.Clone()
	l.attempts[stored.ID] = stored
	l.active[key] = stored.ID
	return stored.Clone(), true, nil
}

func (l *AttemptLedger) Get(_ context.Context, attemptID string) (*domain.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	attempt, ok := l.attempts[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt.Clone(), nil
}

func (l *AttemptLedger) FindInProgress(_ context.Context, examID, identity string) (*domain.Attempt, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.active[activeKey(examID, identity)]
	if !ok {
		return nil, false, nil
	}
	return l.attempts[id].Clone(), true, nil
}

func (l *AttemptLedger) CountForIdentity(_ context.Context, examID, identity string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	count := 0
	for _, attempt := range l.attempts {
		if attempt.ExamID == examID && attempt.Identity == identity {
			count++
		}
	}
	return count, nil
}

func (l *AttemptLedger) SetResponse(_ context.Context, attemptID, questionID, selected string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	attempt, ok := l.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Terminal() {
		return domain.ErrAttemptNotActive
	}
	attempt.Responses[questionID] = selected
	return nil
}

func (l *AttemptLedger) Finalize(_ context.Context, attemptID string, status domain.AttemptStatus, result *domain.Result) (*domain.Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	attempt, ok := l.attempts[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	if attempt.Terminal() {
		return attempt.Clone(), nil
	}
	attempt.Status = status
	attempt.Result = result
	delete(l.active, activeKey(attempt.ExamID, attempt.Identity))
	return attempt.Clone(), nil
}

func (l *AttemptLedger) ListOverdue(_ context.Context, now time.Time) ([]*domain.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var overdue []*domain.Attempt
	for _, attempt := range l.attempts {
		if attempt.Status == domain.AttemptInProgress && attempt.Deadline != nil && !now.Before(*attempt.Deadline) {
			overdue = append(overdue, attempt.Clone())
		}
	}
	return overdue, nil
}

func (l *AttemptLedger) ListTerminal(_ context.Context, examID string) ([]*domain.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var terminal []*domain.Attempt
	for _, attempt := range l.attempts {
		if attempt.ExamID == examID && attempt.Terminal() {
			terminal = append(terminal, attempt.Clone())
		}
	}
	return terminal, nil
}

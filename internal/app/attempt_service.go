package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"exam-attempt-service/internal/domain"
	"github.com/google/uuid"
)

// defaultGrace is how far past the deadline a submission still counts as
// Submitted rather than Expired. It covers a client timer firing exactly at
// the deadline plus network latency.
const defaultGrace = 5 * time.Second

// AttemptLedger is the durable source of truth for attempts. Implementations
// must make CreateInProgress a compare-and-set on "no InProgress attempt for
// this (exam, identity)" and Finalize an atomic terminal write.
type AttemptLedger interface {
	// CreateInProgress stores the attempt unless an InProgress attempt already
	// exists for the same (exam, identity). It returns the stored attempt and
	// whether this call created it; the loser of a race receives the winner's
	// attempt with created=false.
	CreateInProgress(ctx context.Context, attempt *domain.Attempt) (*domain.Attempt, bool, error)
	Get(ctx context.Context, attemptID string) (*domain.Attempt, error)
	FindInProgress(ctx context.Context, examID, identity string) (*domain.Attempt, bool, error)
	// CountForIdentity counts every attempt the identity has made at the exam.
	CountForIdentity(ctx context.Context, examID, identity string) (int, error)
	// SetResponse upserts one response on an InProgress attempt.
	SetResponse(ctx context.Context, attemptID, questionID, selected string) error
	// Finalize promotes an InProgress attempt to a terminal state. If the
	// attempt is already terminal it returns the stored attempt unchanged.
	Finalize(ctx context.Context, attemptID string, status domain.AttemptStatus, result *domain.Result) (*domain.Attempt, error)
	// ListOverdue returns InProgress attempts whose deadline has passed.
	ListOverdue(ctx context.Context, now time.Time) ([]*domain.Attempt, error)
	// ListTerminal returns all Submitted and Expired attempts for an exam.
	ListTerminal(ctx context.Context, examID string) ([]*domain.Attempt, error)
}

// ExamRepository loads exam snapshots (from cache/backing store). Exams are
// read-only inputs here; the CRUD subsystem owns them.
type ExamRepository interface {
	GetExam(ctx context.Context, examID string) (domain.Exam, error)
}

// AttemptService contains the exam attempt use cases: start, response
// recording, submission, access verification and leaderboard reads.
type AttemptService struct {
	ledger AttemptLedger
	exams  ExamRepository
	now    func() time.Time
	grace  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAttemptService(ledger AttemptLedger, exams ExamRepository) *AttemptService {
	return NewAttemptServiceWithClock(ledger, exams, time.Now)
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(ledger AttemptLedger, exams ExamRepository, now func() time.Time) *AttemptService {
	return &AttemptService{
		ledger: ledger,
		exams:  exams,
		now:    now,
		grace:  defaultGrace,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor serializes all mutations of a single attempt. Unrelated attempts
// never contend with each other.
func (s *AttemptService) lockFor(attemptID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[attemptID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[attemptID] = l
	return l
}

func (s *AttemptService) dropLock(attemptID string) {
	s.mu.Lock()
	delete(s.locks, attemptID)
	s.mu.Unlock()
}

// Start creates or resumes an attempt. A retried Start never creates a second
// concurrent attempt: an existing InProgress attempt is returned unchanged,
// and the ledger's compare-and-set create closes the race between two Starts
// arriving at once for the same identity.
func (s *AttemptService) Start(ctx context.Context, examID, identity, displayName string, cred domain.Credential) (*domain.Attempt, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Before(exam.StartDatetime) || now.After(exam.EndDatetime) {
		return nil, domain.ErrExamNotActive
	}
	if err := VerifyAccess(exam, cred); err != nil {
		return nil, err
	}

	if existing, ok, err := s.ledger.FindInProgress(ctx, examID, identity); err != nil {
		return nil, fmt.Errorf("find in-progress attempt: %w", err)
	} else if ok {
		return existing, nil
	}

	count, err := s.ledger.CountForIdentity(ctx, examID, identity)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	next := count + 1
	if exam.AttemptLimitType == domain.AttemptLimitLimited && next > exam.MaxAttempts {
		return nil, domain.ErrAttemptLimitExceeded
	}

	attempt := &domain.Attempt{
		ID:            uuid.NewString(),
		ExamID:        examID,
		Identity:      identity,
		DisplayName:   displayName,
		AttemptNumber: next,
		StartTime:     now,
		Status:        domain.AttemptInProgress,
		QuestionOrder: questionOrder(exam),
		Responses:     make(map[string]string),
	}
	if exam.HasDeadline() {
		deadline := now.Add(time.Duration(exam.DurationMinutes) * time.Minute)
		attempt.Deadline = &deadline
	}

	stored, _, err := s.ledger.CreateInProgress(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return stored, nil
}

// RecordResponse upserts one response on an InProgress attempt. Last write per
// question wins; writes for the same attempt are serialized.
func (s *AttemptService) RecordResponse(ctx context.Context, attemptID, questionID, selected string) error {
	lock := s.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	attempt, err := s.ledger.Get(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.Terminal() {
		return domain.ErrAttemptNotActive
	}

	now := s.now()
	if attempt.Deadline != nil && now.After(*attempt.Deadline) {
		return domain.ErrDeadlineExceeded
	}

	exam, err := s.exams.GetExam(ctx, attempt.ExamID)
	if err != nil {
		return err
	}
	if _, ok := exam.QuestionByID(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	if selected != "" && !validOption(selected) {
		return domain.ErrOptionNotFound
	}
	if selected == "" && !exam.AllowBlankAnswers {
		return domain.ErrBlankNotAllowed
	}
	// A recorded blank does not lock the question; only a real selection does.
	if !exam.CanChangeAnswer {
		if prev, ok := attempt.Responses[questionID]; ok && prev != "" {
			return domain.ErrAnswerLocked
		}
	}

	if err := s.ledger.SetResponse(ctx, attemptID, questionID, selected); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

// Submit finalizes the attempt and scores its frozen response set. It is
// idempotent: once an attempt is terminal, every later Submit returns the
// stored result unchanged, which makes a timer-fired submit racing a manual
// click harmless.
func (s *AttemptService) Submit(ctx context.Context, attemptID string) (*domain.Result, error) {
	lock := s.lockFor(attemptID)
	lock.Lock()
	defer lock.Unlock()

	attempt, err := s.ledger.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Terminal() {
		return attempt.Result, nil
	}

	exam, err := s.exams.GetExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := domain.AttemptSubmitted
	if attempt.Deadline != nil && now.After(attempt.Deadline.Add(s.grace)) {
		status = domain.AttemptExpired
	}

	result := Score(exam, attempt.Responses, now)
	stored, err := s.ledger.Finalize(ctx, attemptID, status, &result)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}
	s.dropLock(attemptID)
	return stored.Result, nil
}

// GetAttempt returns the attempt as stored.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (*domain.Attempt, error) {
	return s.ledger.Get(ctx, attemptID)
}

// Exam exposes the read-only exam snapshot to the transport layer.
func (s *AttemptService) Exam(ctx context.Context, examID string) (domain.Exam, error) {
	return s.exams.GetExam(ctx, examID)
}

// Leaderboard recomputes the standings for an exam from its terminal attempts.
func (s *AttemptService) Leaderboard(ctx context.Context, examID string) ([]domain.LeaderboardEntry, error) {
	if _, err := s.exams.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	attempts, err := s.ledger.ListTerminal(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return Rank(attempts), nil
}

// AccessReadout is the outcome of a dry-run access check, including the
// attempt-limit readout and the settings a client needs to render the exam.
type AccessReadout struct {
	Granted bool
	Reason  error
	Exam    domain.Exam
}

// CheckAccess performs the pure verification used by the verify-access
// endpoint. Unlike Start it consumes nothing.
func (s *AttemptService) CheckAccess(ctx context.Context, examID, identity string, cred domain.Credential) (AccessReadout, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return AccessReadout{}, err
	}

	now := s.now()
	if now.Before(exam.StartDatetime) || now.After(exam.EndDatetime) {
		return AccessReadout{Reason: domain.ErrExamNotActive, Exam: exam}, nil
	}
	if err := VerifyAccess(exam, cred); err != nil {
		return AccessReadout{Reason: err, Exam: exam}, nil
	}
	if exam.AttemptLimitType == domain.AttemptLimitLimited {
		count, err := s.ledger.CountForIdentity(ctx, examID, identity)
		if err != nil {
			return AccessReadout{}, fmt.Errorf("count attempts: %w", err)
		}
		if count >= exam.MaxAttempts {
			return AccessReadout{Reason: domain.ErrAttemptLimitExceeded, Exam: exam}, nil
		}
	}
	return AccessReadout{Granted: true, Exam: exam}, nil
}

// SweepOverdue submits every InProgress attempt whose deadline has passed.
// Failed submits stay InProgress and are retried by the next sweep. Returns
// how many attempts were finalized and the first error encountered.
func (s *AttemptService) SweepOverdue(ctx context.Context) (int, error) {
	overdue, err := s.ledger.ListOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list overdue attempts: %w", err)
	}

	submitted := 0
	var firstErr error
	for _, attempt := range overdue {
		if _, err := s.Submit(ctx, attempt.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		submitted++
	}
	return submitted, firstErr
}

func questionOrder(exam domain.Exam) []string {
	order := make([]string, len(exam.Questions))
	for i, q := range exam.Questions {
		order[i] = q.ID
	}
	if exam.ShuffleQuestions {
		rand.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}

func validOption(selected string) bool {
	switch selected {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

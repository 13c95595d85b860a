package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptLedger is the durable app.AttemptLedger. The InProgress invariant is
// backed by a partial unique index on (exam_id, identity) WHERE
// status='in_progress', which makes CreateInProgress a true compare-and-set
// even across service instances.
type AttemptLedger struct {
	pool *pgxpool.Pool
}

var _ app.AttemptLedger = (*AttemptLedger)(nil)

func NewAttemptLedger(pool *pgxpool.Pool) *AttemptLedger {
	return &AttemptLedger{pool: pool}
}

const attemptColumns = `id, exam_id, identity, display_name, attempt_number, start_time, deadline, status, question_order, responses, result`

func (l *AttemptLedger) CreateInProgress(ctx context.Context, attempt *domain.Attempt) (*domain.Attempt, bool, error) {
	order, err := json.Marshal(attempt.QuestionOrder)
	if err != nil {
		return nil, false, fmt.Errorf("marshal question order: %w", err)
	}
	responses, err := json.Marshal(attempt.Responses)
	if err != nil {
		return nil, false, fmt.Errorf("marshal responses: %w", err)
	}

	// Two rounds: if the insert loses the CAS we return the winner's attempt;
	// if that winner finalized in between, the second insert wins.
	for i := 0; i < 2; i++ {
		tag, err := l.pool.Exec(ctx, `
			INSERT INTO exam_attempts (id, exam_id, identity, display_name, attempt_number, start_time, deadline, status, question_order, responses)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (exam_id, identity) WHERE status = 'in_progress' DO NOTHING`,
			attempt.ID, attempt.ExamID, attempt.Identity, attempt.DisplayName, attempt.AttemptNumber,
			attempt.StartTime, attempt.Deadline, string(domain.AttemptInProgress), order, responses,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert attempt: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return attempt.Clone(), true, nil
		}
		existing, ok, err := l.FindInProgress(ctx, attempt.ExamID, attempt.Identity)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return existing, false, nil
		}
	}
	return nil, false, fmt.Errorf("insert attempt: lost create race twice for exam %s", attempt.ExamID)
}

func (l *AttemptLedger) Get(ctx context.Context, attemptID string) (*domain.Attempt, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM exam_attempts WHERE id=$1`, attemptID)
	return scanAttempt(row)
}

func (l *AttemptLedger) FindInProgress(ctx context.Context, examID, identity string) (*domain.Attempt, bool, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT `+attemptColumns+` FROM exam_attempts
		WHERE exam_id=$1 AND identity=$2 AND status='in_progress'`,
		examID, identity,
	)
	attempt, err := scanAttempt(row)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return attempt, true, nil
}

func (l *AttemptLedger) CountForIdentity(ctx context.Context, examID, identity string) (int, error) {
	var count int
	err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE exam_id=$1 AND identity=$2`,
		examID, identity,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (l *AttemptLedger) SetResponse(ctx context.Context, attemptID, questionID, selected string) error {
	tag, err := l.pool.Exec(ctx, `
		UPDATE exam_attempts
		SET responses = jsonb_set(responses, ARRAY[$2], to_jsonb($3::text))
		WHERE id=$1 AND status='in_progress'`,
		attemptID, questionID, selected,
	)
	if err != nil {
		return fmt.Errorf("set response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := l.Get(ctx, attemptID); err != nil {
			return err
		}
		return domain.ErrAttemptNotActive
	}
	return nil
}

func (l *AttemptLedger) Finalize(ctx context.Context, attemptID string, status domain.AttemptStatus, result *domain.Result) (*domain.Attempt, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		UPDATE exam_attempts
		SET status=$2, result=$3, score=$4, submitted_at=$5
		WHERE id=$1 AND status='in_progress'`,
		attemptID, string(status), raw, result.Score, result.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}
	// Zero rows means the attempt was already terminal; either way the stored
	// row is authoritative.
	return l.Get(ctx, attemptID)
}

func (l *AttemptLedger) ListOverdue(ctx context.Context, now time.Time) ([]*domain.Attempt, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+attemptColumns+` FROM exam_attempts
		WHERE status='in_progress' AND deadline IS NOT NULL AND deadline <= $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func (l *AttemptLedger) ListTerminal(ctx context.Context, examID string) ([]*domain.Attempt, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+attemptColumns+` FROM exam_attempts
		WHERE exam_id=$1 AND status IN ('submitted','expired')`,
		examID,
	)
	if err != nil {
		return nil, fmt.Errorf("list terminal: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (*domain.Attempt, error) {
	var (
		attempt   domain.Attempt
		status    string
		order     []byte
		responses []byte
		result    []byte
	)
	err := row.Scan(
		&attempt.ID, &attempt.ExamID, &attempt.Identity, &attempt.DisplayName,
		&attempt.AttemptNumber, &attempt.StartTime, &attempt.Deadline,
		&status, &order, &responses, &result,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}

	attempt.Status = domain.AttemptStatus(status)
	if err := json.Unmarshal(order, &attempt.QuestionOrder); err != nil {
		return nil, fmt.Errorf("unmarshal question order: %w", err)
	}
	if err := json.Unmarshal(responses, &attempt.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	if len(result) > 0 {
		attempt.Result = &domain.Result{}
		if err := json.Unmarshal(result, attempt.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &attempt, nil
}

func collectAttempts(rows pgx.Rows) ([]*domain.Attempt, error) {
	var attempts []*domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

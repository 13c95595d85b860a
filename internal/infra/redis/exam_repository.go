package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"exam-attempt-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ExamLoader fetches exam snapshots from a backing store (e.g., Postgres).
type ExamLoader interface {
	LoadExam(ctx context.Context, examID string) (domain.Exam, error)
}

// ExamRepository caches exam snapshots in Redis and falls back to a loader on
// cache miss. The snapshot is stored as: SET exam:{examID}:snapshot {json}
type ExamRepository struct {
	client *redis.Client
	loader ExamLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewExamRepository(client *redis.Client, loader ExamLoader, ttl time.Duration) *ExamRepository {
	return &ExamRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ExamRepository) GetExam(ctx context.Context, examID string) (domain.Exam, error) {
	key := r.snapshotKey(examID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var exam domain.Exam
		if err := json.Unmarshal(raw, &exam); err == nil {
			return exam, nil
		}
		// corrupt cache entry; fall through to reload
	}

	result, err, _ := r.sf.Do(examID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var exam domain.Exam
			if err := json.Unmarshal(raw, &exam); err == nil {
				return exam, nil
			}
		}

		exam, err := r.loader.LoadExam(ctx, examID)
		if err != nil {
			return domain.Exam{}, err
		}

		raw, err := json.Marshal(exam)
		if err != nil {
			return domain.Exam{}, fmt.Errorf("marshal exam: %w", err)
		}
		// best-effort cache fill
		_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

func (r *ExamRepository) snapshotKey(examID string) string {
	return "exam:" + examID + ":snapshot"
}

func (r *ExamRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

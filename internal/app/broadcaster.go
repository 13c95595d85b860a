package app

import (
	"sync"

	"exam-attempt-service/internal/domain"
)

// QuestionBroadcaster fans live question edits out to sessions with an active
// attempt at the affected exam. Delivery is best-effort and at-most-once; a
// missed update never affects scoring because the scorer reads the stored exam
// snapshot, not a client-cached copy.
type QuestionBroadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.QuestionUpdate]struct{} // exam id -> channels
}

func NewQuestionBroadcaster() *QuestionBroadcaster {
	return &QuestionBroadcaster{
		subs: make(map[string]map[chan domain.QuestionUpdate]struct{}),
	}
}

// Subscribe returns a channel receiving edits for the exam's questions. The
// caller must invoke the returned cancel function to avoid leaks.
func (b *QuestionBroadcaster) Subscribe(examID string) (<-chan domain.QuestionUpdate, func()) {
	ch := make(chan domain.QuestionUpdate, 8)

	b.mu.Lock()
	if b.subs[examID] == nil {
		b.subs[examID] = make(map[chan domain.QuestionUpdate]struct{})
	}
	b.subs[examID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[examID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, examID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish pushes an edited question to every subscriber of its exam. It never
// blocks: a full subscriber channel drops its stale update in favor of the new
// one, so slow clients cannot hold up session state transitions.
func (b *QuestionBroadcaster) Publish(update domain.QuestionUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[update.ExamID] {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

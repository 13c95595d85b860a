package app_test

import (
	"testing"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
)

func TestBroadcasterDeliversToExamSubscribers(t *testing.T) {
	b := app.NewQuestionBroadcaster()

	ch, cancel := b.Subscribe("exam-1")
	defer cancel()
	other, cancelOther := b.Subscribe("exam-2")
	defer cancelOther()

	b.Publish(domain.QuestionUpdate{
		ExamID:   "exam-1",
		Question: domain.Question{ID: "q1", Text: "updated"},
	})

	select {
	case update := <-ch:
		if update.Question.ID != "q1" || update.Question.Text != "updated" {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an update for exam-1")
	}

	select {
	case update := <-other:
		t.Fatalf("exam-2 subscriber got %+v", update)
	default:
	}
}

func TestBroadcasterDropsStaleUpdateWhenFull(t *testing.T) {
	b := app.NewQuestionBroadcaster()
	ch, cancel := b.Subscribe("exam-1")
	defer cancel()

	// Overflow the buffer; the publisher must never block.
	for i := 0; i < 20; i++ {
		b.Publish(domain.QuestionUpdate{
			ExamID:   "exam-1",
			Question: domain.Question{ID: "q1", Text: string(rune('a' + i))},
		})
	}
	b.Publish(domain.QuestionUpdate{
		ExamID:   "exam-1",
		Question: domain.Question{ID: "q1", Text: "final"},
	})

	var last domain.QuestionUpdate
	for {
		select {
		case last = <-ch:
			continue
		default:
		}
		break
	}
	if last.Question.Text != "final" {
		t.Fatalf("expected the newest update to survive, got %+v", last)
	}
}

func TestBroadcasterCancelIsIdempotent(t *testing.T) {
	b := app.NewQuestionBroadcaster()
	ch, cancel := b.Subscribe("exam-1")

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}

	// Publishing after the last subscriber left is a no-op.
	b.Publish(domain.QuestionUpdate{ExamID: "exam-1"})
}

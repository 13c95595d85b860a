package app_test

import (
	"testing"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
)

func twoQuestionExam() domain.Exam {
	return domain.Exam{
		ID:                 "exam-1",
		NegativeMarking:    true,
		NegativePercentage: 50,
		PassingScore:       50,
		Questions: []domain.Question{
			{ID: "q1", Answer: "A", Marks: 1},
			{ID: "q2", Answer: "B", Marks: 1},
		},
	}
}

func TestScoreNegativeMarking(t *testing.T) {
	exam := twoQuestionExam()
	result := app.Score(exam, map[string]string{"q1": "A", "q2": "C"}, time.Now())

	if result.Score != 0.5 {
		t.Fatalf("expected score 0.5, got %v", result.Score)
	}
	if result.TotalMarks != 2 {
		t.Fatalf("expected total marks 2, got %d", result.TotalMarks)
	}
	if result.Percentage != 25 {
		t.Fatalf("expected percentage 25, got %v", result.Percentage)
	}
	if result.Passed {
		t.Fatalf("expected failed verdict at 25%% with passing score 50")
	}
}

func TestScoreClampsAtZero(t *testing.T) {
	exam := domain.Exam{
		NegativeMarking:    true,
		NegativePercentage: 100,
		Questions: []domain.Question{
			{ID: "q1", Answer: "A", Marks: 2},
		},
	}
	result := app.Score(exam, map[string]string{"q1": "B"}, time.Now())

	if result.RawScore != -2 {
		t.Fatalf("expected raw score -2, got %v", result.RawScore)
	}
	if result.Score != 0 {
		t.Fatalf("expected clamped score 0, got %v", result.Score)
	}
	if result.Percentage != 0 {
		t.Fatalf("expected percentage 0, got %v", result.Percentage)
	}
}

func TestScoreBlanksAndUnansweredAreZero(t *testing.T) {
	exam := twoQuestionExam()
	// q1 recorded blank, q2 never answered
	result := app.Score(exam, map[string]string{"q1": ""}, time.Now())

	if result.Score != 0 || result.RawScore != 0 {
		t.Fatalf("expected zero score, got score=%v raw=%v", result.Score, result.RawScore)
	}
	for _, qr := range result.Breakdown {
		if qr.Correct || qr.MarksObtained != 0 {
			t.Fatalf("expected zero marks per question, got %+v", qr)
		}
	}
}

func TestScorePassVerdict(t *testing.T) {
	exam := twoQuestionExam()
	result := app.Score(exam, map[string]string{"q1": "A", "q2": "B"}, time.Now())

	if result.Score != 2 || result.Percentage != 100 || !result.Passed {
		t.Fatalf("expected full marks pass, got %+v", result)
	}
}

func TestScoreEmptyExam(t *testing.T) {
	result := app.Score(domain.Exam{}, nil, time.Now())
	if result.Percentage != 0 || result.Score != 0 {
		t.Fatalf("expected zeroes for empty exam, got %+v", result)
	}
}

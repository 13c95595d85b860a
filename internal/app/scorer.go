package app

import (
	"time"

	"exam-attempt-service/internal/domain"
)

// Score turns a frozen response set into the authoritative result for an exam.
// Correct answers earn the question's marks; wrong non-blank answers lose
// negative_percentage/100 of the marks when negative marking is on; blanks and
// unanswered questions score zero. The total is clamped at zero before ranking,
// with the raw sum preserved in the result.
func Score(exam domain.Exam, responses map[string]string, submittedAt time.Time) domain.Result {
	raw := 0.0
	breakdown := make([]domain.QuestionResult, 0, len(exam.Questions))

	for _, q := range exam.Questions {
		selected := responses[q.ID]
		marks := float64(q.MarksOrDefault())

		obtained := 0.0
		correct := false
		switch {
		case selected == "":
			// blank or unanswered
		case selected == q.Answer:
			correct = true
			obtained = marks
		case exam.NegativeMarking:
			obtained = -(marks * exam.NegativePercentage / 100)
		}
		raw += obtained

		breakdown = append(breakdown, domain.QuestionResult{
			QuestionID:    q.ID,
			Selected:      selected,
			Correct:       correct,
			MarksObtained: obtained,
			Answer:        q.Answer,
			Explanation:   q.Explanation,
		})
	}

	score := raw
	if score < 0 {
		score = 0
	}

	total := exam.TotalMarks()
	percentage := 0.0
	if total > 0 {
		percentage = score / float64(total) * 100
	}

	return domain.Result{
		Score:       score,
		RawScore:    raw,
		TotalMarks:  total,
		Percentage:  percentage,
		Passed:      percentage >= exam.PassingScore,
		SubmittedAt: submittedAt,
		Breakdown:   breakdown,
	}
}

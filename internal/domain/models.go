package domain

import "time"

// TimeLimitType controls whether an exam imposes a deadline on attempts.
type TimeLimitType string

const (
	TimeLimitUnlimited TimeLimitType = "unlimited"
	TimeLimitSpecified TimeLimitType = "specified"
)

// AttemptLimitType controls whether an identity may retake an exam indefinitely.
type AttemptLimitType string

const (
	AttemptLimitUnlimited AttemptLimitType = "unlimited"
	AttemptLimitLimited   AttemptLimitType = "limited"
)

// AccessType selects the gate applied before an attempt may start.
type AccessType string

const (
	AccessAnyone         AccessType = "anyone"
	AccessPasscode       AccessType = "passcode"
	AccessIdentifierList AccessType = "identifier_list"
	AccessEmailList      AccessType = "email_list"
)

// Question models an MCQ question with four options and exactly one answer.
type Question struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	OptionA     string `json:"option_a"`
	OptionB     string `json:"option_b"`
	OptionC     string `json:"option_c"`
	OptionD     string `json:"option_d"`
	Answer      string `json:"answer"` // "A".."D"
	Marks       int    `json:"marks"`  // defaults to 1 if zero
	Explanation string `json:"explanation,omitempty"`
}

// MarksOrDefault returns the question weight, treating zero as 1.
func (q Question) MarksOrDefault() int {
	if q.Marks == 0 {
		return 1
	}
	return q.Marks
}

// Exam is the read-only snapshot an attempt is scored against. It is owned by
// the external CRUD subsystem and never mutated here.
type Exam struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Questions       []Question    `json:"questions"`
	DurationMinutes int           `json:"duration_minutes"`
	TimeLimitType   TimeLimitType `json:"time_limit_type"`

	AttemptLimitType AttemptLimitType `json:"attempt_limit_type"`
	MaxAttempts      int              `json:"max_attempts"`

	NegativeMarking    bool    `json:"negative_marking"`
	NegativePercentage float64 `json:"negative_percentage"`

	ShuffleQuestions  bool `json:"shuffle_questions"`
	CanChangeAnswer   bool `json:"can_change_answer"`
	AllowBlankAnswers bool `json:"allow_blank_answers"`

	AccessType     AccessType `json:"access_type"`
	AccessPasscode string     `json:"access_passcode,omitempty"`
	IdentifierList []string   `json:"identifier_list,omitempty"`
	EmailList      []string   `json:"email_list,omitempty"`

	PassingScore  float64   `json:"passing_score"` // percentage
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`

	ShowScore         bool   `json:"show_score"`
	ShowTestOutline   bool   `json:"show_test_outline"`
	ShowCorrectAnswer bool   `json:"show_correct_answer"`
	ShowExplanation   bool   `json:"show_explanation"`
	PassMessage       string `json:"pass_message,omitempty"`
	FailMessage       string `json:"fail_message,omitempty"`
}

// HasDeadline reports whether attempts at this exam carry a deadline.
func (e Exam) HasDeadline() bool {
	return e.TimeLimitType == TimeLimitSpecified && e.DurationMinutes > 0
}

// TotalMarks sums the per-question weights.
func (e Exam) TotalMarks() int {
	total := 0
	for _, q := range e.Questions {
		total += q.MarksOrDefault()
	}
	return total
}

// QuestionByID finds a question in the exam snapshot.
func (e Exam) QuestionByID(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AttemptStatus is the attempt lifecycle state. Terminal states are immutable.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptExpired    AttemptStatus = "expired"
)

// Credential carries whatever secret the access gate requires.
type Credential struct {
	Identifier string `json:"identifier,omitempty"`
	Passcode   string `json:"passcode,omitempty"`
}

// Attempt is one instance of an identity taking an exam. It is created by
// Start, mutated only by its owning session, and frozen once terminal.
type Attempt struct {
	ID            string     `json:"id"`
	ExamID        string     `json:"exam_id"`
	Identity      string     `json:"identity"`
	DisplayName   string     `json:"display_name"`
	AttemptNumber int        `json:"attempt_number"`
	StartTime     time.Time  `json:"start_time"`
	Deadline      *time.Time `json:"deadline,omitempty"`

	Status        AttemptStatus     `json:"status"`
	QuestionOrder []string          `json:"question_order"`
	Responses     map[string]string `json:"responses"` // question id -> option; "" records a blank
	Result        *Result           `json:"result,omitempty"`
}

// Terminal reports whether the attempt has left InProgress.
func (a *Attempt) Terminal() bool {
	return a.Status == AttemptSubmitted || a.Status == AttemptExpired
}

// Clone deep-copies the attempt so ledger internals never alias caller state.
func (a *Attempt) Clone() *Attempt {
	cp := *a
	if a.Deadline != nil {
		d := *a.Deadline
		cp.Deadline = &d
	}
	cp.QuestionOrder = append([]string(nil), a.QuestionOrder...)
	cp.Responses = make(map[string]string, len(a.Responses))
	for k, v := range a.Responses {
		cp.Responses[k] = v
	}
	if a.Result != nil {
		r := *a.Result
		r.Breakdown = append([]QuestionResult(nil), a.Result.Breakdown...)
		cp.Result = &r
	}
	return &cp
}

// QuestionResult is the scored outcome for a single question.
type QuestionResult struct {
	QuestionID    string  `json:"question_id"`
	Selected      string  `json:"selected_option,omitempty"`
	Correct       bool    `json:"correct"`
	MarksObtained float64 `json:"marks_obtained"`
	Answer        string  `json:"answer,omitempty"`
	Explanation   string  `json:"explanation,omitempty"`
}

// Result is the authoritative outcome of a submitted attempt. Score is the
// clamped total actually ranked; RawScore keeps the unclamped sum.
type Result struct {
	Score       float64          `json:"score"`
	RawScore    float64          `json:"raw_score"`
	TotalMarks  int              `json:"total_marks"`
	Percentage  float64          `json:"percentage"`
	Passed      bool             `json:"passed"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Breakdown   []QuestionResult `json:"breakdown,omitempty"`
}

// LeaderboardEntry is a derived ranking row; it is never stored.
type LeaderboardEntry struct {
	AttemptID         string  `json:"attempt_id"`
	DisplayName       string  `json:"display_name"`
	Score             float64 `json:"score"`
	Percentage        float64 `json:"percentage"`
	Rank              int     `json:"rank"`
	CompletionSeconds float64 `json:"completion_seconds"`
}

// QuestionUpdate is a live edit pushed to in-progress sessions. Scoring always
// uses the stored exam snapshot, so a missed update only affects display.
type QuestionUpdate struct {
	ExamID   string   `json:"exam_id"`
	Question Question `json:"question"`
}

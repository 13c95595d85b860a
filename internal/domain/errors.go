package domain

import "errors"

// Policy rejections: surfaced to the caller verbatim, never retried.
var (
	// ErrExamNotFound indicates the exam snapshot could not be loaded.
	ErrExamNotFound = errors.New("exam not found")
	// ErrExamNotActive is returned when now is outside the scheduling window.
	ErrExamNotActive = errors.New("exam is not currently active")
	// ErrAccessDenied is returned when the access gate rejects the credential.
	ErrAccessDenied = errors.New("access denied")
	// ErrAttemptLimitExceeded is returned once an identity has used up its attempts.
	ErrAttemptLimitExceeded = errors.New("maximum attempt limit reached")
	// ErrAnswerLocked is returned when the exam forbids changing a recorded answer.
	ErrAnswerLocked = errors.New("answers cannot be changed for this exam")
	// ErrBlankNotAllowed is returned when a blank response is recorded against policy.
	ErrBlankNotAllowed = errors.New("blank answers are not allowed for this exam")
	// ErrDeadlineExceeded rejects responses arriving after the deadline so the
	// caller can trigger submission instead.
	ErrDeadlineExceeded = errors.New("attempt deadline exceeded")
)

// Consistency violations: client errors, not retried.
var (
	// ErrAttemptNotFound is returned when the attempt id is unknown.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptNotActive is returned when a mutation targets a terminal attempt.
	ErrAttemptNotActive = errors.New("attempt is not in progress")
	// ErrQuestionNotFound indicates a response references a question outside the exam.
	ErrQuestionNotFound = errors.New("question not found in exam")
	// ErrOptionNotFound indicates a selected option outside A-D.
	ErrOptionNotFound = errors.New("selected option not found")
)

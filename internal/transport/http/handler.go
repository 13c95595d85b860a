package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
)

// Handler exposes the attempt engine over HTTP.
type Handler struct {
	service *app.AttemptService
	updates *app.QuestionBroadcaster
}

func NewHandler(service *app.AttemptService, updates *app.QuestionBroadcaster) *Handler {
	return &Handler{service: service, updates: updates}
}

// Register wires the REST routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /attempts/start", h.startAttempt)
	mux.HandleFunc("POST /attempts/{id}/responses", h.recordResponse)
	mux.HandleFunc("POST /attempts/{id}/submit", h.submitAttempt)
	mux.HandleFunc("GET /exams/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("POST /exams/{id}/verify-access", h.verifyAccess)
	mux.HandleFunc("POST /questions/{id}/publish", h.publishQuestion)
}

type startRequest struct {
	ExamID      string `json:"exam_id"`
	Identifier  string `json:"identifier,omitempty"`
	Passcode    string `json:"passcode,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExamID == "" {
		writeMessage(w, http.StatusBadRequest, "exam_id is required")
		return
	}
	identity := identityFrom(r, req.Identifier)
	if identity == "" {
		writeMessage(w, http.StatusBadRequest, "identity is required")
		return
	}

	attempt, err := h.service.Start(r.Context(), req.ExamID, identity, req.DisplayName, domain.Credential{
		Identifier: req.Identifier,
		Passcode:   req.Passcode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

type responseRequest struct {
	QuestionID     string  `json:"question_id"`
	SelectedOption *string `json:"selected_option"` // null records a blank
}

func (h *Handler) recordResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == "" {
		writeMessage(w, http.StatusBadRequest, "question_id is required")
		return
	}

	selected := ""
	if req.SelectedOption != nil {
		selected = *req.SelectedOption
	}
	if err := h.service.RecordResponse(r.Context(), r.PathValue("id"), req.QuestionID, selected); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type submitResponse struct {
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
	Status     string  `json:"status"`

	TotalMarks *int                    `json:"total_marks,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Responses  []domain.QuestionResult `json:"responses,omitempty"`
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := r.PathValue("id")
	result, err := h.service.Submit(r.Context(), attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	attempt, err := h.service.GetAttempt(r.Context(), attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	exam, err := h.service.Exam(r.Context(), attempt.ExamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeResult(exam, attempt, result))
}

// shapeResult applies the exam's result-display settings: score, percentage
// and the verdict are always returned, everything else is opt-in.
func shapeResult(exam domain.Exam, attempt *domain.Attempt, result *domain.Result) submitResponse {
	resp := submitResponse{
		Score:      result.Score,
		Percentage: result.Percentage,
		Passed:     result.Passed,
		Status:     string(attempt.Status),
	}
	if exam.ShowScore {
		total := result.TotalMarks
		resp.TotalMarks = &total
	}
	if result.Passed && exam.PassMessage != "" {
		resp.Message = exam.PassMessage
	} else if !result.Passed && exam.FailMessage != "" {
		resp.Message = exam.FailMessage
	}
	if exam.ShowTestOutline {
		outline := make([]domain.QuestionResult, len(result.Breakdown))
		copy(outline, result.Breakdown)
		for i := range outline {
			if !exam.ShowCorrectAnswer {
				outline[i].Answer = ""
			}
			if !exam.ShowExplanation {
				outline[i].Explanation = ""
			}
		}
		resp.Responses = outline
	}
	return resp
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type verifyAccessRequest struct {
	Identifier string `json:"identifier,omitempty"`
	Passcode   string `json:"passcode,omitempty"`
}

type examSettings struct {
	TimeLimitType     domain.TimeLimitType `json:"time_limit_type"`
	DurationMinutes   int                  `json:"duration_minutes"`
	CanChangeAnswer   bool                 `json:"can_change_answer"`
	AllowBlankAnswers bool                 `json:"allow_blank_answers"`
	ShuffleQuestions  bool                 `json:"shuffle_questions"`
}

type verifyAccessResponse struct {
	AccessGranted bool          `json:"access_granted"`
	Message       string        `json:"message"`
	Settings      *examSettings `json:"settings,omitempty"`
}

func (h *Handler) verifyAccess(w http.ResponseWriter, r *http.Request) {
	var req verifyAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	identity := identityFrom(r, req.Identifier)

	readout, err := h.service.CheckAccess(r.Context(), r.PathValue("id"), identity, domain.Credential{
		Identifier: req.Identifier,
		Passcode:   req.Passcode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !readout.Granted {
		writeJSON(w, http.StatusOK, verifyAccessResponse{Message: readout.Reason.Error()})
		return
	}
	writeJSON(w, http.StatusOK, verifyAccessResponse{
		AccessGranted: true,
		Message:       "Access granted",
		Settings: &examSettings{
			TimeLimitType:     readout.Exam.TimeLimitType,
			DurationMinutes:   readout.Exam.DurationMinutes,
			CanChangeAnswer:   readout.Exam.CanChangeAnswer,
			AllowBlankAnswers: readout.Exam.AllowBlankAnswers,
			ShuffleQuestions:  readout.Exam.ShuffleQuestions,
		},
	})
}

type publishRequest struct {
	ExamID   string          `json:"exam_id"`
	Question domain.Question `json:"question"`
}

// publishQuestion pushes a live question edit to active sessions. The CRUD
// subsystem owns the edit itself; this hook only fans it out.
func (h *Handler) publishQuestion(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExamID == "" {
		writeMessage(w, http.StatusBadRequest, "exam_id is required")
		return
	}
	req.Question.ID = r.PathValue("id")
	h.updates.Publish(domain.QuestionUpdate{ExamID: req.ExamID, Question: req.Question})
	w.WriteHeader(http.StatusAccepted)
}

// identityFrom resolves the attempt identity: the authenticated user id when
// the (external) auth layer set one, otherwise the supplied identifier.
func identityFrom(r *http.Request, identifier string) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return userID
	}
	return identifier
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrExamNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrAttemptLimitExceeded):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrExamNotActive), errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound), errors.Is(err, domain.ErrBlankNotAllowed):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAttemptNotActive), errors.Is(err, domain.ErrAnswerLocked),
		errors.Is(err, domain.ErrDeadlineExceeded):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeMessage(w, http.StatusInternalServerError, "server error")
	}
}

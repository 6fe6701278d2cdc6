package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// Handler exposes the attempt use cases over HTTP. Authentication is out of
// scope: the enclosing edge is expected to resolve the session and pass the
// user id in the X-User-ID header.
type Handler struct {
	service *app.AttemptService
}

func NewHandler(service *app.AttemptService) *Handler {
	return &Handler{service: service}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /attempts", h.startAttempt)
	mux.HandleFunc("GET /quizzes/{id}/attempt-limit", h.attemptLimit)
	mux.HandleFunc("PUT /attempts/{id}/answer", h.submitAnswer)
	mux.HandleFunc("POST /attempts/{id}/complete", h.completeAttempt)
}

type startAttemptRequest struct {
	QuizID         string `json:"quizId"`
	IsPracticeMode bool   `json:"isPracticeMode"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req startAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "quizId is required")
		return
	}

	attempt, err := h.service.Start(r.Context(), userID, req.QuizID, req.IsPracticeMode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *Handler) attemptLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	status, err := h.service.LimitStatus(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if status == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"limited": false})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type submitAnswerRequest struct {
	QuestionID string  `json:"questionId"`
	AnswerID   *string `json:"answerId"` // null = skipped
	TimeSpent  int     `json:"timeSpent"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "questionId is required")
		return
	}

	result, err := h.service.Submit(r.Context(), r.PathValue("id"), userID, req.QuestionID, req.AnswerID, req.TimeSpent)
	if err != nil {
		writeError(w, err)
		return
	}
	// Duplicates report 200 like first submissions; clients retrying after a
	// dropped response must not see a conflict.
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) completeAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	attempt, err := h.service.Complete(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing X-User-ID header")
		return "", false
	}
	return userID, true
}

type errorResponse struct {
	Error   string             `json:"error"`
	Code    string             `json:"code"`
	Limit   int                `json:"limit,omitempty"`
	Period  domain.ResetPeriod `json:"period,omitempty"`
	ResetAt *time.Time         `json:"resetAt,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var limitErr *domain.AttemptLimitError
	if errors.As(err, &limitErr) {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:   limitErr.Error(),
			Code:    "ATTEMPT_LIMIT_REACHED",
			Limit:   limitErr.Max,
			Period:  limitErr.Period,
			ResetAt: limitErr.ResetAt,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrAttemptNotFound), errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		writeErrorCode(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, domain.ErrAttemptCompleted), errors.Is(err, domain.ErrQuestionNotInAttempt):
		writeErrorCode(w, http.StatusBadRequest, "INVALID_STATE", err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeErrorCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"quizrunner-backend/internal/catalog"
	"quizrunner-backend/internal/middleware"
	"quizrunner-backend/internal/quiz"
)

// SessionProvider is satisfied by *quiz.Registry.
type SessionProvider interface {
	Session(ctx context.Context, identity string) (*quiz.Session, error)
	Remove(identity string)
}

// QuizHandler exposes the caller's quiz session. Every action also emits
// view events on the caller's websocket.
type QuizHandler struct {
	sessions SessionProvider
}

func NewQuizHandler(sessions SessionProvider) *QuizHandler {
	return &QuizHandler{sessions: sessions}
}

type startRequest struct {
	ChapterID string `json:"chapter_id"`
}

type answerRequest struct {
	Index  *int `json:"index"`
	Choice *int `json:"choice"`
}

type gotoRequest struct {
	Index *int `json:"index"`
}

func (h *QuizHandler) session(w http.ResponseWriter, r *http.Request) (*quiz.Session, bool) {
	identity := middleware.GetUserID(r.Context()).String()

	s, err := h.sessions.Session(r.Context(), identity)
	if err != nil {
		log.Printf("Failed to open quiz session for %s: %v", identity, err)
		writeJSON(w, http.StatusBadGateway, errorResp("CONTENT_UNAVAILABLE", "Failed to load chapters: "+err.Error(), r))
		return nil, false
	}
	return s, true
}

// Load refreshes the chapter list.
func (h *QuizHandler) Load(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.LoadChapters(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("CONTENT_UNAVAILABLE", "Failed to load chapters: "+err.Error(), r))
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ChapterID = strings.TrimSpace(req.ChapterID)
	if req.ChapterID == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"chapter_id": "required"}, r))
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Start(r.Context(), req.ChapterID); err != nil {
		var notFound *catalog.ChapterNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, quiz.ErrNoQuestions) || errors.Is(err, quiz.ErrLoadInProgress) {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResp("LOAD_FAILED", err.Error(), r))
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *QuizHandler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *QuizHandler) Question(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid question index", r))
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	q, err := s.QuestionAt(index)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil || req.Choice == nil {
		fields := map[string]string{}
		if req.Index == nil {
			fields["index"] = "required"
		}
		if req.Choice == nil {
			fields["choice"] = "required"
		}
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Answer(*req.Index, *req.Choice); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *QuizHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*quiz.Session).Next)
}

func (h *QuizHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*quiz.Session).Prev)
}

func (h *QuizHandler) navigate(w http.ResponseWriter, r *http.Request, step func(*quiz.Session) (quiz.QuestionView, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	q, err := step(s)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuizHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"index": "required"}, r))
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	q, err := s.GoTo(*req.Index)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	sub, err := s.Submit()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *QuizHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Reset(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// End discards the caller's session, stopping its timer. The next request
// starts over from chapter selection.
func (h *QuizHandler) End(w http.ResponseWriter, r *http.Request) {
	h.sessions.Remove(middleware.GetUserID(r.Context()).String())
	w.WriteHeader(http.StatusNoContent)
}

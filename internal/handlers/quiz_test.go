package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"

	"quizrunner-backend/internal/catalog"
	"quizrunner-backend/internal/quiz"
)

func newQuizHandler(fsys fstest.MapFS) *QuizHandler {
	loader := catalog.NewLoader(catalog.NewFSSource(fsys), 0)
	registry := quiz.NewRegistry(loader, func(string) quiz.Surface { return nopSurface{} }, quiz.Options{
		Scheduler: nopScheduler{},
	})
	return NewQuizHandler(registry)
}

func call(h http.HandlerFunc, method, body string, identity uuid.UUID) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1/quiz", nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1/quiz", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h(rr, withIdentity(req, identity))
	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) quiz.Snapshot {
	t.Helper()
	var snap quiz.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snap
}

func TestQuizHandler_FullAttempt(t *testing.T) {
	h := newQuizHandler(chapterFS(4, 6))
	guest := uuid.New()

	rr := call(h.State, http.MethodGet, "", guest)
	if rr.Code != http.StatusOK {
		t.Fatalf("state: expected %d, got %d", http.StatusOK, rr.Code)
	}
	if snap := decodeSnapshot(t, rr); snap.State != quiz.StateChapterSelect || len(snap.Chapters) != 2 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	rr = call(h.Start, http.MethodPost, `{"chapter_id":"w2"}`, guest)
	if rr.Code != http.StatusOK {
		t.Fatalf("start: expected %d, got %d (%s)", http.StatusOK, rr.Code, rr.Body.String())
	}
	snap := decodeSnapshot(t, rr)
	if snap.State != quiz.StateActive || snap.Total != 6 || snap.Clock != "20:00" || !snap.TimerRunning {
		t.Fatalf("unexpected snapshot after start: %+v", snap)
	}

	if rr = call(h.Answer, http.MethodPost, `{"index":0,"choice":2}`, guest); rr.Code != http.StatusOK {
		t.Fatalf("answer: expected %d, got %d", http.StatusOK, rr.Code)
	}

	rr = call(h.Next, http.MethodPost, "", guest)
	var q quiz.QuestionView
	if err := json.NewDecoder(rr.Body).Decode(&q); err != nil {
		t.Fatalf("failed to decode question: %v", err)
	}
	if q.Index != 1 || q.Selected != quiz.Unanswered {
		t.Fatalf("expected unanswered question 1, got %+v", q)
	}

	rr = call(h.Submit, http.MethodPost, "", guest)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: expected %d, got %d", http.StatusOK, rr.Code)
	}
	var sub quiz.Submission
	if err := json.NewDecoder(rr.Body).Decode(&sub); err != nil {
		t.Fatalf("failed to decode submission: %v", err)
	}
	if sub.ChapterID != "w2" || len(sub.Answers) != 6 || sub.Answers[0] != 2 || sub.TimedOut {
		t.Fatalf("unexpected submission: %+v", sub)
	}

	if rr = call(h.Next, http.MethodPost, "", guest); rr.Code != http.StatusConflict {
		t.Fatalf("next after submit: expected %d, got %d", http.StatusConflict, rr.Code)
	}

	rr = call(h.Reset, http.MethodPost, "", guest)
	if snap := decodeSnapshot(t, rr); snap.State != quiz.StateChapterSelect || snap.TimerRunning {
		t.Fatalf("expected chapter select after reset, got %s", snap.State)
	}
}

func TestQuizHandler_StartErrors(t *testing.T) {
	fsys := chapterFS(3)
	fsys["chapters.json"] = &fstest.MapFile{Data: []byte(`{"chapters":[
		{"id":"w1","title":"One","fileName":"w1.json"},
		{"id":"w7","title":"Broken","fileName":"missing.json"},
		{"id":"w8","title":"Empty","fileName":"empty.json"}]}`)}
	fsys["data/empty.json"] = &fstest.MapFile{Data: []byte(`[]`)}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing chapter id", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed body", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown chapter", `{"chapter_id":"w9"}`, http.StatusNotFound, "CHAPTER_NOT_FOUND"},
		{"missing file", `{"chapter_id":"w7"}`, http.StatusBadGateway, "LOAD_FAILED"},
		{"empty chapter", `{"chapter_id":"w8"}`, http.StatusUnprocessableEntity, "NO_QUESTIONS"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newQuizHandler(fsys)
			rr := call(h.Start, http.MethodPost, tc.body, uuid.New())

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d (%s)", tc.status, rr.Code, rr.Body.String())
			}
			if got := decodeError(t, rr.Body); got.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, got.Code)
			}
		})
	}
}

func TestQuizHandler_AllChapters(t *testing.T) {
	h := newQuizHandler(chapterFS(30, 30))

	rr := call(h.Start, http.MethodPost, `{"chapter_id":"all"}`, uuid.New())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if snap := decodeSnapshot(t, rr); snap.Total != catalog.DefaultSampleSize {
		t.Fatalf("expected %d questions, got %d", catalog.DefaultSampleSize, snap.Total)
	}
}

func TestQuizHandler_QuestionAndGoTo(t *testing.T) {
	h := newQuizHandler(chapterFS(5))
	guest := uuid.New()

	if rr := call(h.Start, http.MethodPost, `{"chapter_id":"w1"}`, guest); rr.Code != http.StatusOK {
		t.Fatalf("start: expected %d, got %d", http.StatusOK, rr.Code)
	}

	tests := []struct {
		name   string
		index  string
		status int
	}{
		{"first", "0", http.StatusOK},
		{"last", "4", http.StatusOK},
		{"past end", "5", http.StatusBadRequest},
		{"not a number", "two", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/quiz/questions/"+tc.index, nil)
			req = withURLParam(withIdentity(req, guest), "index", tc.index)
			rr := httptest.NewRecorder()

			h.Question(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}

	rr := call(h.GoTo, http.MethodPost, `{"index":3}`, guest)
	var q quiz.QuestionView
	if err := json.NewDecoder(rr.Body).Decode(&q); err != nil {
		t.Fatalf("failed to decode question: %v", err)
	}
	if q.Index != 3 {
		t.Fatalf("expected index 3, got %d", q.Index)
	}

	if rr := call(h.GoTo, http.MethodPost, `{}`, guest); rr.Code != http.StatusBadRequest {
		t.Fatalf("goto without index: expected %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestQuizHandler_AnswerValidation(t *testing.T) {
	h := newQuizHandler(chapterFS(3))
	guest := uuid.New()

	if rr := call(h.Answer, http.MethodPost, `{"index":0,"choice":1}`, guest); rr.Code != http.StatusConflict {
		t.Fatalf("answer before start: expected %d, got %d", http.StatusConflict, rr.Code)
	}

	call(h.Start, http.MethodPost, `{"chapter_id":"w1"}`, guest)

	rr := call(h.Answer, http.MethodPost, `{"index":0}`, guest)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if got := decodeError(t, rr.Body); got.Fields["choice"] != "required" {
		t.Errorf("expected choice field error, got %+v", got.Fields)
	}

	if rr := call(h.Answer, http.MethodPost, `{"index":0,"choice":9}`, guest); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid choice: expected %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestQuizHandler_ChaptersUnavailable(t *testing.T) {
	h := newQuizHandler(fstest.MapFS{})

	rr := call(h.State, http.MethodGet, "", uuid.New())
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rr.Code)
	}
}

func TestQuizHandler_SessionsAreIsolated(t *testing.T) {
	h := newQuizHandler(chapterFS(3))
	alice, bob := uuid.New(), uuid.New()

	call(h.Start, http.MethodPost, `{"chapter_id":"w1"}`, alice)

	rr := call(h.State, http.MethodGet, "", bob)
	if snap := decodeSnapshot(t, rr); snap.State != quiz.StateChapterSelect {
		t.Fatalf("expected second guest untouched, got %s", snap.State)
	}
}

func TestQuizHandler_End(t *testing.T) {
	h := newQuizHandler(chapterFS(3))
	guest := uuid.New()

	call(h.Start, http.MethodPost, `{"chapter_id":"w1"}`, guest)

	if rr := call(h.End, http.MethodDelete, "", guest); rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	rr := call(h.State, http.MethodGet, "", guest)
	if snap := decodeSnapshot(t, rr); snap.State != quiz.StateChapterSelect || snap.Total != 0 {
		t.Fatalf("expected a fresh session after end, got %+v", snap)
	}
}

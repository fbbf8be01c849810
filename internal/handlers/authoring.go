package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quizrunner-backend/internal/catalog"
	"quizrunner-backend/internal/middleware"
	"quizrunner-backend/internal/models"
	"quizrunner-backend/internal/services"
)

const maxUploadBytes = 50 * 1024 * 1024

var chapterIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	CountActiveForChapter(ctx context.Context, chapterID models.ChapterID) (int, error)
}

// JobQueue is satisfied by *worker.Pool.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// AuthoringHandler edits the chapter index and queues question generation.
type AuthoringHandler struct {
	chapters    *catalog.Manager
	jobs        JobStore
	queue       JobQueue
	storagePath string
	clamp       func(n int) int
}

func NewAuthoringHandler(chapters *catalog.Manager, jobs JobStore, queue JobQueue, storagePath string, clamp func(n int) int) *AuthoringHandler {
	return &AuthoringHandler{
		chapters:    chapters,
		jobs:        jobs,
		queue:       queue,
		storagePath: storagePath,
		clamp:       clamp,
	}
}

func (h *AuthoringHandler) NextWeek(w http.ResponseWriter, r *http.Request) {
	week, err := h.chapters.NextWeek()
	if err != nil {
		log.Printf("Failed to read chapter index: %v", err)
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"week": week})
}

type updateChapterRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Week        *string `json:"week"`
	Instructor  *string `json:"instructor"`
	Date        *string `json:"date"`
}

// UpdateChapter patches the display fields of an existing entry.
func (h *AuthoringHandler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	id := models.ChapterID(chi.URLParam(r, "id"))

	var req updateChapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	chapter, err := h.chapters.Get(id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&chapter.Title, req.Title)
	apply(&chapter.Description, req.Description)
	apply(&chapter.Week, req.Week)
	apply(&chapter.Instructor, req.Instructor)
	apply(&chapter.Date, req.Date)

	if chapter.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"title": "cannot be empty"}, r))
		return
	}

	if err := h.chapters.Update(id, chapter); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

// Generate accepts either a multipart lecture upload (field "file") or a
// JSON body with a youtube_url, records a job and queues it.
func (h *AuthoringHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var (
		req models.GenerateChapterRequest
		err error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if req, err = h.readUpload(w, r); err != nil {
			handleServiceError(w, r, err)
			return
		}
	} else {
		if !decodeJSON(w, r, &req) {
			return
		}
		req.SourceType = "youtube"
		req.FilePath = ""
	}

	if fields := h.normalize(&req); len(fields) > 0 {
		h.discardUpload(req)
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	active, err := h.jobs.CountActiveForChapter(r.Context(), req.ChapterID)
	if err != nil {
		h.discardUpload(req)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to check running jobs", r))
		return
	}
	if active > 0 {
		h.discardUpload(req)
		handleServiceError(w, r, &services.ConflictError{Message: "Questions for this chapter are already being generated"})
		return
	}

	configBytes, _ := json.Marshal(req)
	job := &models.Job{
		UserID:     middleware.GetUserID(r.Context()),
		Type:       models.JobTypeQuestionGeneration,
		ChapterID:  req.ChapterID,
		ConfigJSON: configBytes,
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.discardUpload(req)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		log.Printf("Failed to enqueue job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"chapter_id": job.ChapterID,
		"status":     job.Status,
	})
}

func (h *AuthoringHandler) readUpload(w http.ResponseWriter, r *http.Request) (models.GenerateChapterRequest, error) {
	var req models.GenerateChapterRequest

	if r.ContentLength > maxUploadBytes {
		return req, &services.ValidationError{Fields: map[string]string{"file": "exceeds 50MB limit"}}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, &services.ValidationError{Fields: map[string]string{"file": "required"}}
	}
	defer file.Close()

	if !services.IsLectureFile(header.Filename) {
		return req, &services.ValidationError{Fields: map[string]string{"file": "must be .txt, .pdf or .docx"}}
	}

	req.ChapterID = models.ChapterID(r.FormValue("chapter_id"))
	req.Title = r.FormValue("title")
	req.Description = r.FormValue("description")
	req.Week = r.FormValue("week")
	req.Instructor = r.FormValue("instructor")
	req.Date = r.FormValue("date")
	req.Difficulty = r.FormValue("difficulty")
	if n := r.FormValue("num_questions"); n != "" {
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return req, &services.ValidationError{Fields: map[string]string{"num_questions": "must be a number"}}
		}
		req.NumQuestions = parsed
	}
	req.SourceType = "file"

	if err := os.MkdirAll(h.storagePath, 0o755); err != nil {
		return req, err
	}
	name := uuid.New().String() + strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.Create(filepath.Join(h.storagePath, name))
	if err != nil {
		return req, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dst.Name())
		return req, &services.ValidationError{Fields: map[string]string{"file": "upload failed"}}
	}

	req.FilePath = name
	if req.Title == "" {
		req.Title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	return req, nil
}

func (h *AuthoringHandler) discardUpload(req models.GenerateChapterRequest) {
	if req.SourceType == "file" && req.FilePath != "" {
		os.Remove(filepath.Join(h.storagePath, filepath.Base(req.FilePath)))
	}
}

// normalize validates the request in place and returns per-field problems.
func (h *AuthoringHandler) normalize(req *models.GenerateChapterRequest) map[string]string {
	fields := map[string]string{}

	req.ChapterID = models.ChapterID(strings.TrimSpace(string(req.ChapterID)))
	switch {
	case !chapterIDPattern.MatchString(string(req.ChapterID)):
		fields["chapter_id"] = "letters, digits, '-' and '_' only"
	case strings.EqualFold(string(req.ChapterID), catalog.AllChapters):
		fields["chapter_id"] = "reserved"
	}

	if req.SourceType == "youtube" {
		req.YouTubeURL = strings.TrimSpace(req.YouTubeURL)
		if services.ExtractVideoID(req.YouTubeURL) == "" {
			fields["youtube_url"] = "must be a YouTube video URL"
		}
	}

	switch req.Difficulty {
	case "easy", "medium", "hard":
	case "":
		req.Difficulty = "medium"
	default:
		fields["difficulty"] = "must be easy, medium or hard"
	}

	req.NumQuestions = h.clamp(req.NumQuestions)

	req.Title = strings.TrimSpace(req.Title)
	if strings.TrimSpace(req.Week) == "" {
		if week, err := h.chapters.NextWeek(); err == nil {
			req.Week = week
		}
	}
	return fields
}

func (h *AuthoringHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if job.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

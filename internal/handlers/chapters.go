package handlers

import (
	"context"
	"log"
	"net/http"

	"quizrunner-backend/internal/models"
)

type ChapterLister interface {
	LoadChapters(ctx context.Context) ([]models.Chapter, error)
}

type ChapterHandler struct {
	chapters ChapterLister
}

func NewChapterHandler(chapters ChapterLister) *ChapterHandler {
	return &ChapterHandler{chapters: chapters}
}

func (h *ChapterHandler) List(w http.ResponseWriter, r *http.Request) {
	chapters, err := h.chapters.LoadChapters(r.Context())
	if err != nil {
		log.Printf("Failed to load chapters: %v", err)
		writeJSON(w, http.StatusBadGateway, errorResp("CONTENT_UNAVAILABLE", "Failed to load chapters", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ChapterIndex{Chapters: chapters})
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeQuestionGeneration = "question-generation"

	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	ChapterID    ChapterID       `json:"chapter_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// GenerateChapterRequest is stored as the job config of a question-generation job.
type GenerateChapterRequest struct {
	ChapterID    ChapterID `json:"chapter_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Week         string    `json:"week"`
	Instructor   string    `json:"instructor"`
	Date         string    `json:"date"`
	NumQuestions int       `json:"num_questions"`
	Difficulty   string    `json:"difficulty"`
	SourceType   string    `json:"source_type"` // "file" | "youtube"
	FilePath     string    `json:"file_path,omitempty"`
	YouTubeURL   string    `json:"youtube_url,omitempty"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID `json:"job_id"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
}

type CompletedEvent struct {
	JobID         uuid.UUID `json:"job_id"`
	ChapterID     ChapterID `json:"chapter_id"`
	QuestionCount int       `json:"question_count"`
	Result        string    `json:"result"` // "added" | "updated"
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

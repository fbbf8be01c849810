package quiz

import (
	"time"

	"quizrunner-backend/internal/models"
)

// Submission is handed to the results view as-is; grading happens there.
type Submission struct {
	AttemptID      string            `json:"attempt_id"`
	ChapterID      string            `json:"chapter_id"`
	TimedOut       bool              `json:"timed_out"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Questions      []models.Question `json:"questions"`
	Answers        []int             `json:"answers"`
	SubmittedAt    time.Time         `json:"submitted_at"`
}

func (s Submission) AnsweredCount() int {
	n := 0
	for _, a := range s.Answers {
		if a != Unanswered {
			n++
		}
	}
	return n
}

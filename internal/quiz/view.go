package quiz

import "quizrunner-backend/internal/models"

type Panel string

const (
	PanelChapterSelect Panel = "chapterSelect"
	PanelLoading       Panel = "loading"
	PanelQuiz          Panel = "quizContainer"
	PanelResults       Panel = "results"
)

// QuestionView is what the page needs to draw one question card.
type QuestionView struct {
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	Prompt     string   `json:"question"`
	Type       string   `json:"type,omitempty"`
	Options    []string `json:"options"`
	Selected   int      `json:"selected"`
	Hint       string   `json:"hint,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// View is the rendering surface a Session drives. Implementations must be
// safe for concurrent use; the timer renders from its own goroutine.
type View interface {
	ShowPanel(panel Panel, visible bool)
	RenderChapters(chapters []models.Chapter)
	RenderQuestion(q QuestionView)
	RenderTimer(text string)
	RenderResults(sub Submission)
}

// Notifier shows a user-facing message, e.g. a failed load.
type Notifier interface {
	Notify(message string)
}

// Surface is a View that can also notify; one is built per identity.
type Surface interface {
	View
	Notifier
}

package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizrunner-backend/internal/models"
)

type State string

const (
	StateChapterSelect State = "chapter_select"
	StateLoading       State = "loading"
	StateActive        State = "active"
	StateResults       State = "results"
)

// Unanswered marks a question with no recorded choice.
const Unanswered = -1

var (
	ErrNoQuestions    = errors.New("no questions available for this chapter")
	ErrNotActive      = errors.New("no quiz in progress")
	ErrLoadInProgress = errors.New("a quiz is already loading")
	ErrOutOfRange     = errors.New("question index out of range")
	ErrInvalidChoice  = errors.New("choice does not match any option")
)

// QuestionLoader is satisfied by *catalog.Loader.
type QuestionLoader interface {
	LoadChapters(ctx context.Context) ([]models.Chapter, error)
	LoadQuestions(ctx context.Context, chapters []models.Chapter, selector string) ([]models.Question, error)
}

type Options struct {
	Duration  time.Duration
	Scheduler Scheduler
	Now       func() time.Time
}

// Session drives one browser's quiz: chapter selection, the question
// cursor, recorded answers and the countdown.
type Session struct {
	mu       sync.Mutex
	identity string
	loader   QuestionLoader
	view     View
	notifier Notifier
	timer    *Timer
	now      func() time.Time

	state     State
	chapters  []models.Chapter
	chapterID string
	attemptID string
	questions []models.Question
	answers   []int
	index     int
	last      *Submission
}

func NewSession(identity string, loader QuestionLoader, view View, notifier Notifier, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		identity: identity,
		loader:   loader,
		view:     view,
		notifier: notifier,
		timer:    NewTimer(opts.Duration, opts.Scheduler, view.RenderTimer),
		now:      now,
		state:    StateChapterSelect,
	}
}

// Snapshot is a read-only copy of the session for API responses.
type Snapshot struct {
	State            State            `json:"state"`
	ChapterID        string           `json:"chapter_id,omitempty"`
	AttemptID        string           `json:"attempt_id,omitempty"`
	Index            int              `json:"index"`
	Total            int              `json:"total"`
	Answers          []int            `json:"answers"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Clock            string           `json:"clock"`
	TimerRunning     bool             `json:"timer_running"`
	Current          *QuestionView    `json:"current,omitempty"`
	Chapters         []models.Chapter `json:"chapters"`
	LastSubmission   *Submission      `json:"last_submission,omitempty"`
}

// LoadChapters fetches the chapter index and renders the chapter cards.
func (s *Session) LoadChapters(ctx context.Context) error {
	chapters, err := s.loader.LoadChapters(ctx)
	if err != nil {
		log.Printf("session %s: failed to load chapters: %v", s.identity, err)
		s.notifier.Notify(fmt.Sprintf("Failed to load chapters: %v", err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chapters = chapters
	s.view.RenderChapters(chapters)
	if s.state == StateChapterSelect {
		s.view.ShowPanel(PanelChapterSelect, true)
	}
	return nil
}

// Start loads chapterID (or "all") and begins a fresh timed attempt.
// On failure the user is notified, the chapter list is shown again and the
// previous attempt's data is left as it was.
func (s *Session) Start(ctx context.Context, chapterID string) error {
	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	s.state = StateLoading
	s.timer.Stop()
	chapters := s.chapters
	s.view.ShowPanel(PanelChapterSelect, false)
	s.view.ShowPanel(PanelQuiz, false)
	s.view.ShowPanel(PanelResults, false)
	s.view.ShowPanel(PanelLoading, true)
	s.mu.Unlock()

	questions, err := s.loadQuestions(ctx, chapters, chapterID)
	if err == nil && len(questions) == 0 {
		err = ErrNoQuestions
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		log.Printf("session %s: failed to load questions for %q: %v", s.identity, chapterID, err)
		s.notifier.Notify(err.Error())
		s.state = StateChapterSelect
		s.view.ShowPanel(PanelLoading, false)
		s.view.ShowPanel(PanelChapterSelect, true)
		return err
	}

	s.chapterID = chapterID
	s.attemptID = uuid.New().String()
	s.questions = questions
	s.answers = make([]int, len(questions))
	for i := range s.answers {
		s.answers[i] = Unanswered
	}
	s.index = 0
	s.last = nil
	s.state = StateActive

	attemptID := s.attemptID
	s.timer.Start(func() { s.expire(attemptID) })

	s.view.ShowPanel(PanelLoading, false)
	s.view.ShowPanel(PanelQuiz, true)
	s.view.RenderQuestion(s.questionView(0))
	return nil
}

func (s *Session) loadQuestions(ctx context.Context, chapters []models.Chapter, chapterID string) ([]models.Question, error) {
	if len(chapters) == 0 {
		loaded, err := s.loader.LoadChapters(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load chapters: %w", err)
		}
		chapters = loaded

		s.mu.Lock()
		s.chapters = loaded
		s.mu.Unlock()
	}
	return s.loader.LoadQuestions(ctx, chapters, chapterID)
}

// ShowQuestion renders question i without moving the cursor.
func (s *Session) ShowQuestion(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	s.view.RenderQuestion(s.questionView(i))
	return nil
}

// QuestionAt returns the view of question i without rendering it.
func (s *Session) QuestionAt(i int) (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(i); err != nil {
		return QuestionView{}, err
	}
	return s.questionView(i), nil
}

func (s *Session) Next() (QuestionView, error) {
	return s.move(func(i int) int { return i + 1 })
}

func (s *Session) Prev() (QuestionView, error) {
	return s.move(func(i int) int { return i - 1 })
}

// move applies step and clamps the result to the question range.
func (s *Session) move(step func(int) int) (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return QuestionView{}, ErrNotActive
	}
	s.index = max(0, min(step(s.index), len(s.questions)-1))

	qv := s.questionView(s.index)
	s.view.RenderQuestion(qv)
	return qv, nil
}

func (s *Session) GoTo(i int) (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(i); err != nil {
		return QuestionView{}, err
	}
	s.index = i

	qv := s.questionView(i)
	s.view.RenderQuestion(qv)
	return qv, nil
}

// Answer records choice for question i; Unanswered clears it.
func (s *Session) Answer(i, choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	if !validChoice(choice, len(s.questions[i].Options)) {
		return ErrInvalidChoice
	}
	s.answers[i] = choice

	if i == s.index {
		s.view.RenderQuestion(s.questionView(i))
	}
	return nil
}

func (s *Session) Submit() (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return Submission{}, ErrNotActive
	}
	return s.submitLocked(false), nil
}

// expire submits on timeout, unless attemptID has since been replaced or
// already submitted.
func (s *Session) expire(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.attemptID != attemptID {
		return
	}
	log.Printf("session %s: time expired for attempt %s", s.identity, attemptID)
	s.submitLocked(true)
}

func (s *Session) submitLocked(timedOut bool) Submission {
	elapsed := s.timer.DurationSeconds() - s.timer.Remaining()
	s.timer.Stop()

	sub := Submission{
		AttemptID:      s.attemptID,
		ChapterID:      s.chapterID,
		TimedOut:       timedOut,
		ElapsedSeconds: elapsed,
		Questions:      s.questions,
		Answers:        slices.Clone(s.answers),
		SubmittedAt:    s.now().UTC(),
	}
	s.last = &sub
	s.state = StateResults
	log.Printf("session %s: attempt %s submitted, %d of %d answered", s.identity, sub.AttemptID, sub.AnsweredCount(), len(sub.Answers))

	s.view.ShowPanel(PanelQuiz, false)
	s.view.ShowPanel(PanelResults, true)
	s.view.RenderResults(sub)
	return sub
}

// Reset abandons the current attempt and returns to chapter selection.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLoading {
		return ErrLoadInProgress
	}
	s.timer.Stop()

	s.chapterID = ""
	s.attemptID = ""
	s.questions = nil
	s.answers = nil
	s.index = 0
	s.last = nil
	s.state = StateChapterSelect

	s.view.ShowPanel(PanelQuiz, false)
	s.view.ShowPanel(PanelResults, false)
	s.view.ShowPanel(PanelLoading, false)
	s.view.ShowPanel(PanelChapterSelect, true)
	s.view.RenderChapters(s.chapters)
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops the countdown; the session must not be used afterwards.
// It also releases the view when the view holds resources.
func (s *Session) Close() {
	s.timer.Stop()
	if c, ok := s.view.(interface{ Close() }); ok {
		c.Close()
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.timer.Remaining()
	snap := Snapshot{
		State:            s.state,
		ChapterID:        s.chapterID,
		AttemptID:        s.attemptID,
		Index:            s.index,
		Total:            len(s.questions),
		Answers:          slices.Clone(s.answers),
		RemainingSeconds: remaining,
		Clock:            FormatClock(remaining),
		TimerRunning:     s.timer.Running(),
		Chapters:         slices.Clone(s.chapters),
		LastSubmission:   s.last,
	}
	if snap.Answers == nil {
		snap.Answers = []int{}
	}
	if snap.Chapters == nil {
		snap.Chapters = []models.Chapter{}
	}
	if s.state == StateActive {
		qv := s.questionView(s.index)
		snap.Current = &qv
	}
	return snap
}

func (s *Session) checkIndexLocked(i int) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	if i < 0 || i >= len(s.questions) {
		return ErrOutOfRange
	}
	return nil
}

// validChoice bounds choice by the option count. Records whose options
// could not be read accept any non-negative choice.
func validChoice(choice, options int) bool {
	if choice == Unanswered {
		return true
	}
	if choice < 0 {
		return false
	}
	return options == 0 || choice < options
}

func (s *Session) questionView(i int) QuestionView {
	q := s.questions[i]
	return QuestionView{
		Index:      i,
		Total:      len(s.questions),
		Prompt:     q.Question,
		Type:       q.Type,
		Options:    slices.Clone(q.Options),
		Selected:   s.answers[i],
		Hint:       q.Hint,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
	}
}

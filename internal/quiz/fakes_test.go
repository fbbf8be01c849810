package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing/fstest"
	"time"

	"quizrunner-backend/internal/catalog"
	"quizrunner-backend/internal/models"
)

type fakeTask struct {
	fn        func()
	cancelled bool
}

// fakeScheduler runs tasks only when tick is called.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

func (f *fakeScheduler) Every(_ time.Duration, fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	task := &fakeTask{fn: fn}
	f.tasks = append(f.tasks, task)
	return func() {
		f.mu.Lock()
		task.cancelled = true
		f.mu.Unlock()
	}
}

func (f *fakeScheduler) active() []*fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	var live []*fakeTask
	for _, t := range f.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	return live
}

func (f *fakeScheduler) tick(n int) {
	for i := 0; i < n; i++ {
		for _, t := range f.active() {
			t.fn()
		}
	}
}

type fakeView struct {
	mu        sync.Mutex
	panels    map[Panel]bool
	chapters  [][]models.Chapter
	questions []QuestionView
	timers    []string
	results   []Submission
	notes     []string
}

func newFakeView() *fakeView {
	return &fakeView{panels: map[Panel]bool{}}
}

func (v *fakeView) ShowPanel(panel Panel, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.panels[panel] = visible
}

func (v *fakeView) RenderChapters(chapters []models.Chapter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chapters = append(v.chapters, chapters)
}

func (v *fakeView) RenderQuestion(q QuestionView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.questions = append(v.questions, q)
}

func (v *fakeView) RenderTimer(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.timers = append(v.timers, text)
}

func (v *fakeView) RenderResults(sub Submission) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results = append(v.results, sub)
}

func (v *fakeView) Notify(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes = append(v.notes, message)
}

func (v *fakeView) visible(p Panel) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.panels[p]
}

func (v *fakeView) lastQuestion() QuestionView {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.questions) == 0 {
		return QuestionView{Index: -1}
	}
	return v.questions[len(v.questions)-1]
}

func (v *fakeView) lastTimer() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.timers) == 0 {
		return ""
	}
	return v.timers[len(v.timers)-1]
}

func (v *fakeView) resultCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.results)
}

func (v *fakeView) notifications() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.notes...)
}

// contentFS builds a data directory with one chapter per entry in counts,
// ids ch1..chN, plus an "empty" chapter with no questions.
func contentFS(counts ...int) fstest.MapFS {
	fsys := fstest.MapFS{}
	index := models.ChapterIndex{}

	for i, n := range counts {
		id := fmt.Sprintf("ch%d", i+1)
		index.Chapters = append(index.Chapters, models.Chapter{ID: models.ChapterID(id), Title: id, FileName: id + ".json"})

		file := models.QuestionFile{}
		for j := 0; j < n; j++ {
			file.Questions = append(file.Questions, models.Question{
				Question: fmt.Sprintf("%s question %d", id, j),
				Options:  []string{"A", "B", "C", "D"},
			})
		}
		data, _ := json.Marshal(file)
		fsys["data/"+id+".json"] = &fstest.MapFile{Data: data}
	}

	index.Chapters = append(index.Chapters, models.Chapter{ID: "empty", Title: "Empty", FileName: "empty.json"})
	fsys["data/empty.json"] = &fstest.MapFile{Data: []byte(`{"questions": []}`)}

	data, _ := json.Marshal(index)
	fsys[catalog.IndexFile] = &fstest.MapFile{Data: data}
	return fsys
}

// blockingLoader holds LoadQuestions until release is closed.
type blockingLoader struct {
	QuestionLoader
	started chan struct{}
	release chan struct{}
}

func (b *blockingLoader) LoadQuestions(ctx context.Context, chapters []models.Chapter, selector string) ([]models.Question, error) {
	close(b.started)
	<-b.release
	return b.QuestionLoader.LoadQuestions(ctx, chapters, selector)
}

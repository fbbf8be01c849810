package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quizrunner-backend/internal/models"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m := NewManager(root)
	m.now = func() time.Time { return time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC) }
	return m, root
}

func readIndex(t *testing.T, path string) models.ChapterIndex {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var index models.ChapterIndex
	if err := json.Unmarshal(data, &index); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return index
}

func TestManager_ChaptersMissingIndex(t *testing.T) {
	m, _ := newTestManager(t)

	chapters, err := m.Chapters()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chapters == nil || len(chapters) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", chapters)
	}
}

func TestManager_AddAndDuplicate(t *testing.T) {
	m, root := newTestManager(t)

	if err := m.Add(models.Chapter{ID: "w1", Title: "One", FileName: "w1.json"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := m.Add(models.Chapter{ID: "w1", Title: "Again"})
	if !errors.Is(err, ErrChapterExists) {
		t.Fatalf("expected ErrChapterExists, got %v", err)
	}

	index := readIndex(t, filepath.Join(root, IndexFile))
	if len(index.Chapters) != 1 || index.Chapters[0].Title != "One" {
		t.Fatalf("unexpected index: %+v", index.Chapters)
	}

	if _, err := m.Get("w1"); err != nil {
		t.Fatalf("expected w1 to exist, got %v", err)
	}
}

func TestManager_UpdateAndBackup(t *testing.T) {
	m, root := newTestManager(t)

	if err := m.Add(models.Chapter{ID: "w1", Title: "Before"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Update("w1", models.Chapter{ID: "w1", Title: "After"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	current := readIndex(t, filepath.Join(root, IndexFile))
	if current.Chapters[0].Title != "After" {
		t.Fatalf("expected updated title, got %q", current.Chapters[0].Title)
	}
	backup := readIndex(t, filepath.Join(root, IndexFile+".backup"))
	if backup.Chapters[0].Title != "Before" {
		t.Fatalf("expected backup of previous index, got %q", backup.Chapters[0].Title)
	}

	var notFound *ChapterNotFoundError
	if err := m.Update("missing", models.Chapter{ID: "missing"}); !errors.As(err, &notFound) {
		t.Fatalf("expected ChapterNotFoundError, got %v", err)
	}
}

func TestManager_Upsert(t *testing.T) {
	m, _ := newTestManager(t)

	action, err := m.Upsert(models.Chapter{ID: "a", Title: "First"})
	if err != nil || action != UpsertAdded {
		t.Fatalf("expected added, got %q err=%v", action, err)
	}
	action, err = m.Upsert(models.Chapter{ID: "a", Title: "Second"})
	if err != nil || action != UpsertUpdated {
		t.Fatalf("expected updated, got %q err=%v", action, err)
	}

	chapters, err := m.Chapters()
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if len(chapters) != 1 || chapters[0].Title != "Second" {
		t.Fatalf("unexpected chapters: %+v", chapters)
	}
}

func TestManager_IndexIsIndentedWithoutHTMLEscaping(t *testing.T) {
	m, root := newTestManager(t)

	if err := m.Add(models.Chapter{ID: "q&a", Title: "Q&A <live>"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, IndexFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "Q&A <live>") {
		t.Fatalf("expected unescaped title, got %s", data)
	}
	if !strings.Contains(string(data), "\n  \"chapters\"") {
		t.Fatalf("expected two-space indentation, got %s", data)
	}
}

func TestManager_SaveQuestionsAndCount(t *testing.T) {
	m, _ := newTestManager(t)

	questions := []models.Question{
		{Question: "1+1?", Options: []string{"1", "2"}, CorrectIndex: 1},
		{Question: "2+2?", Options: []string{"4", "5"}, CorrectIndex: 0},
	}
	if err := m.SaveQuestions("w3.json", questions); err != nil {
		t.Fatalf("save: %v", err)
	}

	path := m.QuestionPath("w3.json")
	if got := CountQuestions(path); got != 2 {
		t.Fatalf("expected 2 questions, got %d", got)
	}
	if got := CountQuestions(filepath.Join(filepath.Dir(path), "absent.json")); got != 0 {
		t.Fatalf("expected 0 for missing file, got %d", got)
	}
}

func TestManager_QuestionPathStaysInDataDir(t *testing.T) {
	m, root := newTestManager(t)

	got := m.QuestionPath("../../etc/passwd")
	want := filepath.Join(root, DataDir, "passwd")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestManager_NewChapterDefaults(t *testing.T) {
	m, _ := newTestManager(t)

	chapter := m.NewChapter(models.ChapterDraft{ID: "w4", Title: "Graphs"})

	if chapter.FileName != "w4.json" {
		t.Fatalf("expected fileName w4.json, got %q", chapter.FileName)
	}
	if chapter.Week != "TBD" || chapter.Instructor != "TBD" {
		t.Fatalf("expected TBD placeholders, got week=%q instructor=%q", chapter.Week, chapter.Instructor)
	}
	if chapter.Date != "07-Mar-2025" {
		t.Fatalf("expected today's date, got %q", chapter.Date)
	}
	if chapter.Description != "Graphs" {
		t.Fatalf("expected description to fall back to title, got %q", chapter.Description)
	}
	if chapter.QuestionCount != 0 {
		t.Fatalf("expected 0 questions without a file, got %d", chapter.QuestionCount)
	}
}

func TestManager_NewChapterCountsQuestionFile(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.SaveQuestions("w5.json", []models.Question{{Question: "q", Options: []string{"a", "b"}}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	chapter := m.NewChapter(models.ChapterDraft{
		ID:           "w5",
		Title:        "Trees",
		Week:         "W5",
		Instructor:   "Dr. Okafor",
		Date:         "01-Feb-2025",
		Description:  "Binary trees",
		QuestionFile: m.QuestionPath("w5.json"),
	})

	if chapter.QuestionCount != 1 || chapter.Week != "W5" || chapter.Date != "01-Feb-2025" {
		t.Fatalf("unexpected chapter: %+v", chapter)
	}
}

func TestManager_NextWeek(t *testing.T) {
	tests := []struct {
		name  string
		weeks []string
		want  string
	}{
		{"empty index", nil, "W1"},
		{"sequential", []string{"W1", "W2", "W3"}, "W4"},
		{"gaps and order", []string{"W7", "W2"}, "W8"},
		{"ignores non-numeric", []string{"W2", "TBD", "Wx", "W", "W+9"}, "W3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestManager(t)
			for i, w := range tc.weeks {
				id := models.ChapterID(string(rune('a' + i)))
				if err := m.Add(models.Chapter{ID: id, Week: w}); err != nil {
					t.Fatalf("add: %v", err)
				}
			}

			got, err := m.NextWeek()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestManager_Get(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Add(models.Chapter{ID: "w1", Title: "Intro"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	c, err := m.Get("w1")
	if err != nil || c.Title != "Intro" {
		t.Fatalf("expected Intro, got %+v (err %v)", c, err)
	}

	var notFound *ChapterNotFoundError
	if _, err := m.Get("w9"); !errors.As(err, &notFound) {
		t.Fatalf("expected ChapterNotFoundError, got %v", err)
	}
}

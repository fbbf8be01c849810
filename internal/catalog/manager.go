package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"quizrunner-backend/internal/models"
)

var ErrChapterExists = errors.New("chapter already exists")

const (
	UpsertAdded   = "added"
	UpsertUpdated = "updated"

	placeholder = "TBD"
	dateLayout  = "02-Jan-2006"
)

// Manager edits chapters.json and the question files under the data path.
type Manager struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

func NewManager(root string) *Manager {
	return &Manager{root: root, now: time.Now}
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.root, IndexFile)
}

// QuestionPath returns the on-disk path of a chapter question file.
func (m *Manager) QuestionPath(fileName string) string {
	return filepath.Join(m.root, DataDir, filepath.Base(fileName))
}

// Chapters returns the current index; a missing index is an empty list.
func (m *Manager) Chapters() ([]models.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) load() ([]models.Chapter, error) {
	data, err := os.ReadFile(m.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return []models.Chapter{}, nil
	}
	if err != nil {
		return nil, err
	}

	var index models.ChapterIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%s is malformed: %w", IndexFile, err)
	}
	if index.Chapters == nil {
		index.Chapters = []models.Chapter{}
	}
	return index.Chapters, nil
}

// Get returns the index entry for id.
func (m *Manager) Get(id models.ChapterID) (models.Chapter, error) {
	chapters, err := m.Chapters()
	if err != nil {
		return models.Chapter{}, err
	}
	c, ok := findChapter(chapters, id)
	if !ok {
		return models.Chapter{}, &ChapterNotFoundError{ID: id}
	}
	return c, nil
}

func (m *Manager) Add(chapter models.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chapters, err := m.load()
	if err != nil {
		return err
	}
	if _, ok := findChapter(chapters, chapter.ID); ok {
		return fmt.Errorf("%w: %s", ErrChapterExists, chapter.ID)
	}

	return m.save(append(chapters, chapter))
}

func (m *Manager) Update(id models.ChapterID, chapter models.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chapters, err := m.load()
	if err != nil {
		return err
	}

	for i := range chapters {
		if chapters[i].ID == id {
			chapters[i] = chapter
			return m.save(chapters)
		}
	}
	return &ChapterNotFoundError{ID: id}
}

// Upsert adds the chapter or replaces the entry with the same id.
func (m *Manager) Upsert(chapter models.Chapter) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chapters, err := m.load()
	if err != nil {
		return "", err
	}

	for i := range chapters {
		if chapters[i].ID == chapter.ID {
			chapters[i] = chapter
			return UpsertUpdated, m.save(chapters)
		}
	}
	return UpsertAdded, m.save(append(chapters, chapter))
}

func (m *Manager) save(chapters []models.Chapter) error {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}

	indexPath := m.indexPath()
	if current, err := os.ReadFile(indexPath); err == nil {
		if err := os.WriteFile(indexPath+".backup", current, 0o644); err != nil {
			return fmt.Errorf("failed to back up %s: %w", IndexFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err := marshalIndented(models.ChapterIndex{Chapters: chapters})
	if err != nil {
		return err
	}
	return os.WriteFile(indexPath, data, 0o644)
}

// SaveQuestions writes data/<fileName> in the wrapped {"questions": [...]} shape.
func (m *Manager) SaveQuestions(fileName string, questions []models.Question) error {
	if questions == nil {
		questions = []models.Question{}
	}

	target := m.QuestionPath(fileName)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	data, err := marshalIndented(models.QuestionFile{Questions: questions})
	if err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// CountQuestions returns the number of questions in a wrapped question file,
// or 0 when it cannot be read.
func CountQuestions(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	var file struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return 0
	}
	return len(file.Questions)
}

// NewChapter builds an index entry, filling defaults for missing fields.
func (m *Manager) NewChapter(draft models.ChapterDraft) models.Chapter {
	date := draft.Date
	if date == "" {
		date = m.now().Format(dateLayout)
	}

	count := 0
	if draft.QuestionFile != "" {
		count = CountQuestions(draft.QuestionFile)
	}

	return models.Chapter{
		ID:            draft.ID,
		Title:         draft.Title,
		Week:          orDefault(draft.Week, placeholder),
		Instructor:    orDefault(draft.Instructor, placeholder),
		Date:          date,
		FileName:      string(draft.ID) + ".json",
		QuestionCount: count,
		Description:   orDefault(draft.Description, draft.Title),
	}
}

// NextWeek returns the label after the highest "W<n>" week, or "W1".
func (m *Manager) NextWeek() (string, error) {
	chapters, err := m.Chapters()
	if err != nil {
		return "", err
	}

	highest := 0
	for _, c := range chapters {
		digits, ok := strings.CutPrefix(c.Week, "W")
		if !ok || !isDigits(digits) {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("W%d", highest+1), nil
}

func marshalIndented(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

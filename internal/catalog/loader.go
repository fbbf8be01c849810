package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"golang.org/x/sync/errgroup"

	"quizrunner-backend/internal/models"
	"quizrunner-backend/internal/random"
)

const (
	// AllChapters selects a random mix drawn from every chapter.
	AllChapters = "all"

	IndexFile         = "chapters.json"
	DataDir           = "data"
	DefaultSampleSize = 50

	fetchConcurrency = 4
)

type ChapterNotFoundError struct {
	ID models.ChapterID
}

func (e *ChapterNotFoundError) Error() string {
	return fmt.Sprintf("chapter not found: %s", e.ID)
}

type Loader struct {
	src        Source
	sampleSize int
}

func NewLoader(src Source, sampleSize int) *Loader {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Loader{src: src, sampleSize: sampleSize}
}

// LoadChapters fetches and decodes the chapter index.
func (l *Loader) LoadChapters(ctx context.Context) ([]models.Chapter, error) {
	data, err := l.src.Fetch(ctx, IndexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", IndexFile, err)
	}

	var index models.ChapterIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", IndexFile, err)
	}
	if index.Chapters == nil {
		index.Chapters = []models.Chapter{}
	}
	return index.Chapters, nil
}

// LoadChapterQuestions fetches data/<fileName>, accepting either
// {"questions": [...]} or a bare list.
func (l *Loader) LoadChapterQuestions(ctx context.Context, fileName string) ([]models.Question, error) {
	data, err := l.src.Fetch(ctx, path.Join(DataDir, fileName))
	if err != nil {
		return nil, fmt.Errorf("file %s is missing or malformed: %w", fileName, err)
	}

	questions, err := decodeQuestions(data)
	if err != nil {
		return nil, fmt.Errorf("file %s is missing or malformed: %w", fileName, err)
	}
	return questions, nil
}

// LoadQuestions resolves a chapter id (or AllChapters) to a shuffled question set.
func (l *Loader) LoadQuestions(ctx context.Context, chapters []models.Chapter, selector string) ([]models.Question, error) {
	var questions []models.Question

	if selector == AllChapters {
		pool, err := l.loadAll(ctx, chapters)
		if err != nil {
			return nil, err
		}
		questions = random.Sample(pool, l.sampleSize)
	} else {
		chapter, ok := findChapter(chapters, models.ChapterID(selector))
		if !ok {
			return nil, &ChapterNotFoundError{ID: models.ChapterID(selector)}
		}

		loaded, err := l.LoadChapterQuestions(ctx, chapter.FileName)
		if err != nil {
			return nil, err
		}
		questions = loaded
	}

	return random.Shuffle(questions), nil
}

func (l *Loader) loadAll(ctx context.Context, chapters []models.Chapter) ([]models.Question, error) {
	perChapter := make([][]models.Question, len(chapters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, chapter := range chapters {
		g.Go(func() error {
			questions, err := l.LoadChapterQuestions(gctx, chapter.FileName)
			if err != nil {
				return err
			}
			perChapter[i] = questions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pool []models.Question
	for _, questions := range perChapter {
		pool = append(pool, questions...)
	}
	return pool, nil
}

func findChapter(chapters []models.Chapter, id models.ChapterID) (models.Chapter, bool) {
	for _, c := range chapters {
		if c.ID == id {
			return c, true
		}
	}
	return models.Chapter{}, false
}

func decodeQuestions(data []byte) ([]models.Question, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}

	if trimmed[0] == '[' {
		var questions []models.Question
		if err := json.Unmarshal(trimmed, &questions); err != nil {
			return nil, err
		}
		return questions, nil
	}

	var wrapped struct {
		Questions *[]models.Question `json:"questions"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Questions == nil {
		return nil, errors.New(`no "questions" field`)
	}
	return *wrapped.Questions, nil
}

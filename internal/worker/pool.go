package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quizrunner-backend/internal/catalog"
	"quizrunner-backend/internal/models"
	"quizrunner-backend/internal/services"
)

const (
	QuestionGenerationQueue = "queue:question-generation"

	maxAttempts = 3
	lockTTL     = 10 * time.Minute
	jobTimeout  = 10 * time.Minute
	popTimeout  = 30 * time.Second
)

type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, content string, prompt services.QuestionPrompt) ([]models.Question, error)
	TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type VideoSource interface {
	GetTranscript(ctx context.Context, videoID string) (string, error)
	DownloadAudio(ctx context.Context, videoURL string) ([]byte, string, error)
	GetLectureMetadata(ctx context.Context, videoURL string) (*services.LectureMetadata, error)
}

type TextExtractor interface {
	ExtractLecture(path string) (string, error)
}

type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

// Pool runs question-generation jobs popped from Redis.
type Pool struct {
	redis       *redis.Client
	generator   QuestionGenerator
	youtube     VideoSource
	fileExtract TextExtractor
	jobs        JobStore
	chapters    *catalog.Manager
	publisher   services.EventPublisher
	storagePath string
	workerCount int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	generator QuestionGenerator,
	youtube VideoSource,
	fileExtract TextExtractor,
	jobs JobStore,
	chapters *catalog.Manager,
	publisher services.EventPublisher,
	storagePath string,
	workerCount int,
) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		generator:   generator,
		youtube:     youtube,
		fileExtract: fileExtract,
		jobs:        jobs,
		chapters:    chapters,
		publisher:   publisher,
		storagePath: storagePath,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// Enqueue pushes a recorded job onto the generation queue.
func (p *Pool) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	return p.redis.LPush(ctx, QuestionGenerationQueue, string(jobBytes)).Err()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, QuestionGenerationQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (chapter: %s)", id, job.ID, job.ChapterID)
		p.runJob(&job)

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) runJob(job *models.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusProcessing)

	completed, err := p.process(ctx, job)
	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, completed)
}

// process turns one generation job into a question file and a chapter entry.
func (p *Pool) process(ctx context.Context, job *models.Job) (*models.CompletedEvent, error) {
	if job.Type != models.JobTypeQuestionGeneration {
		return nil, fmt.Errorf("unknown job type: %s", job.Type)
	}

	var req models.GenerateChapterRequest
	if err := json.Unmarshal(job.ConfigJSON, &req); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}
	if req.ChapterID == "" {
		req.ChapterID = job.ChapterID
	}

	p.publishStatus(ctx, job, 1, "Reading lecture")

	var (
		text string
		err  error
	)
	switch req.SourceType {
	case "file":
		text, err = p.fileExtract.ExtractLecture(filepath.Join(p.storagePath, filepath.Base(req.FilePath)))
		if err != nil {
			return nil, fmt.Errorf("failed to extract lecture text: %w", err)
		}
	case "youtube":
		text, err = p.readVideo(ctx, job, &req)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown source type: %q", req.SourceType)
	}

	p.publishStatus(ctx, job, 2, "Generating questions")

	questions, err := p.generator.GenerateQuestions(ctx, text, services.QuestionPrompt{
		ChapterTitle: req.Title,
		NumQuestions: req.NumQuestions,
		Difficulty:   req.Difficulty,
	})
	if err != nil {
		return nil, fmt.Errorf("question generation failed: %w", err)
	}

	p.publishStatus(ctx, job, 3, "Saving chapter")

	fileName := string(req.ChapterID) + ".json"
	if err := p.chapters.SaveQuestions(fileName, questions); err != nil {
		return nil, fmt.Errorf("failed to save questions: %w", err)
	}

	chapter := p.chapters.NewChapter(models.ChapterDraft{
		ID:           req.ChapterID,
		Title:        req.Title,
		Description:  req.Description,
		Week:         req.Week,
		Instructor:   req.Instructor,
		Date:         req.Date,
		QuestionFile: p.chapters.QuestionPath(fileName),
	})
	action, err := p.chapters.Upsert(chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to update chapter index: %w", err)
	}

	return &models.CompletedEvent{
		JobID:         job.ID,
		ChapterID:     chapter.ID,
		QuestionCount: chapter.QuestionCount,
		Result:        action,
	}, nil
}

// readVideo returns the lecture transcript and fills blank chapter fields
// from the video's metadata.
func (p *Pool) readVideo(ctx context.Context, job *models.Job, req *models.GenerateChapterRequest) (string, error) {
	videoID := services.ExtractVideoID(req.YouTubeURL)
	if videoID == "" {
		return "", fmt.Errorf("invalid YouTube URL: %s", req.YouTubeURL)
	}

	if meta, err := p.youtube.GetLectureMetadata(ctx, req.YouTubeURL); err != nil {
		log.Printf("Metadata lookup failed for %s: %v", videoID, err)
	} else {
		req.Title = firstNonEmpty(req.Title, meta.Title)
		req.Instructor = firstNonEmpty(req.Instructor, meta.Author)
		req.Description = firstNonEmpty(req.Description, meta.Description)
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = string(req.ChapterID)
	}

	p.publishStatus(ctx, job, 1, "Extracting transcript from video")

	transcript, err := p.youtube.GetTranscript(ctx, videoID)
	if err == nil {
		log.Printf("Fetched transcript for video %s (%d chars)", videoID, len(transcript))
		return transcript, nil
	}
	log.Printf("Transcript extraction failed for %s: %v", videoID, err)

	audio, mimeType, audioErr := p.youtube.DownloadAudio(ctx, req.YouTubeURL)
	if audioErr != nil {
		return "", fmt.Errorf("transcript extraction failed for video %s: %v; audio fallback download failed: %w", videoID, err, audioErr)
	}

	transcribed, transcribeErr := p.generator.TranscribeAudio(ctx, audio, mimeType)
	if transcribeErr != nil {
		return "", fmt.Errorf("transcript extraction failed for video %s: %v; audio transcription failed: %w", videoID, err, transcribeErr)
	}
	return transcribed, nil
}

func (p *Pool) publishStatus(ctx context.Context, job *models.Job, step int, name string) {
	p.publish(ctx, job, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     step,
			StepName: name,
		},
	})
}

func (p *Pool) publish(ctx context.Context, job *models.Job, msg models.WSMessage) {
	if err := p.publisher.Publish(ctx, job.UserID.String(), msg); err != nil {
		log.Printf("Job %s: failed to publish %s: %v", job.ID, msg.Type, err)
	}
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, completed *models.CompletedEvent) {
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted)

	p.publish(ctx, job, models.WSMessage{Type: "completed", Payload: completed})

	log.Printf("Job %s completed: chapter %s %s with %d questions",
		job.ID, completed.ChapterID, completed.Result, completed.QuestionCount)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < maxAttempts {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusPending)
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		jobBytes, _ := json.Marshal(job)
		time.AfterFunc(retryBackoff(job.RetryCount), func() {
			p.redis.LPush(context.Background(), QuestionGenerationQueue, string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	p.publish(ctx, job, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

// retryBackoff doubles from 2s: 2s, 4s, 8s...
func retryBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"quizrunner-backend/internal/models"
)

const (
	geminiModel     = "gemini-3-flash-preview"
	maxPromptChars  = 60000
	trueFalseType   = "true_false"
	multipleChoice  = "multiple_choice"
	multipleOptions = 4
)

var ErrNoValidQuestions = errors.New("model returned no usable questions")

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(geminiModel)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	model.ResponseMIMEType = "application/json"

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// QuestionPrompt describes the question set to request for a chapter.
type QuestionPrompt struct {
	ChapterTitle string
	NumQuestions int
	Difficulty   string
}

// GenerateQuestions asks the model for a question set over lecture content
// and returns the questions that survive validation.
func (s *GeminiService) GenerateQuestions(ctx context.Context, content string, prompt QuestionPrompt) ([]models.Question, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	resp, err := s.model.GenerateContent(ctx, genai.Text(buildQuestionPrompt(prompt, content)))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	questions, err := parseQuestions(extractText(resp))
	if err != nil {
		return nil, err
	}

	valid := validateQuestions(questions, prompt.NumQuestions)
	if len(valid) == 0 {
		return nil, ErrNoValidQuestions
	}
	if len(valid) < prompt.NumQuestions {
		log.Printf("Gemini returned %d usable questions, %d requested", len(valid), prompt.NumQuestions)
	}
	return valid, nil
}

// TranscribeAudio uses Gemini File API to transcribe uploaded audio bytes.
func (s *GeminiService) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	file, err := s.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{
		DisplayName: "lecture-audio",
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio to Gemini: %w", err)
	}
	defer s.client.DeleteFile(context.Background(), file.Name)

	for i := 0; i < 20 && file.State != genai.FileStateActive; i++ {
		current, getErr := s.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}
		file = current

		switch file.State {
		case genai.FileStateActive:
			continue
		case genai.FileStateFailed:
			return "", fmt.Errorf("Gemini failed to process uploaded audio file")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if file.State != genai.FileStateActive {
		return "", fmt.Errorf("audio file did not become active in time")
	}

	// The transcription is plain text, not the JSON the question model returns.
	transcriber := s.client.GenerativeModel(geminiModel)
	transcriber.SetTemperature(0)

	resp, err := transcriber.GenerateContent(ctx,
		genai.Text("Transcribe the provided lecture audio verbatim. Return plain text only, without markdown, headers, or explanations."),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini transcription error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty transcription")
	}

	return text, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func buildQuestionPrompt(p QuestionPrompt, content string) string {
	var b strings.Builder

	b.WriteString("You are an expert educational assessor. Write quiz questions that test understanding of the lecture below.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	if p.ChapterTitle != "" {
		b.WriteString(fmt.Sprintf("Chapter: %s\n", p.ChapterTitle))
	}
	b.WriteString(fmt.Sprintf("Generate exactly %d questions.\n", p.NumQuestions))

	tfCount := p.NumQuestions / 5
	b.WriteString(fmt.Sprintf("Include at most %d true/false questions; the rest must be multiple choice.\n", tfCount))

	if p.Difficulty != "" {
		b.WriteString(fmt.Sprintf("Difficulty: %s\n", p.Difficulty))
	}
	switch p.Difficulty {
	case "easy":
		b.WriteString("Easy = direct recall from the lecture.\n")
	case "medium":
		b.WriteString("Medium = application of concepts.\n")
	case "hard":
		b.WriteString("Hard = analysis, synthesis, or inference beyond what is explicitly stated.\n")
	}

	b.WriteString(`
JSON schema per question:
{"question": "string", "type": "multiple_choice"|"true_false", "options": ["string"], "correct_index": int, "explanation": "string", "hint": "string", "difficulty": "easy"|"medium"|"hard", "topic": "string"}

For multiple_choice: exactly 4 options. For true_false: exactly 2 options ["True", "False"].
Every question must be answerable from the lecture alone.
`)

	if len(content) > maxPromptChars {
		content = content[:maxPromptChars]
	}
	b.WriteString("\n---LECTURE---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}

// parseQuestions accepts a bare array, optionally fenced or wrapped in prose,
// or a {"questions": [...]} object.
func parseQuestions(rawText string) ([]models.Question, error) {
	rawText = strings.TrimSpace(rawText)
	rawText = strings.TrimPrefix(rawText, "```json")
	rawText = strings.TrimPrefix(rawText, "```")
	rawText = strings.TrimSuffix(rawText, "```")
	rawText = strings.TrimSpace(rawText)

	var questions []models.Question
	if err := json.Unmarshal([]byte(rawText), &questions); err == nil {
		return questions, nil
	}

	var wrapped models.QuestionFile
	if err := json.Unmarshal([]byte(rawText), &wrapped); err == nil && wrapped.Questions != nil {
		return wrapped.Questions, nil
	}

	start := strings.Index(rawText, "[")
	end := strings.LastIndex(rawText, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(rawText[start:end+1]), &questions); err == nil {
			return questions, nil
		}
	}

	return nil, fmt.Errorf("could not parse questions from model output (%d chars)", len(rawText))
}

// validateQuestions drops unusable entries, repairs fixable ones and keeps
// at most limit questions. Returned questions carry only normalised fields.
func validateQuestions(questions []models.Question, limit int) []models.Question {
	valid := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		q = q.Detached()
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" || len(q.Options) < 2 {
			continue
		}

		if q.Type == trueFalseType || (q.Type == "" && len(q.Options) == 2) {
			q.Type = trueFalseType
			if len(q.Options) != 2 {
				q.Options = []string{"True", "False"}
			}
		} else {
			q.Type = multipleChoice
			if len(q.Options) > multipleOptions {
				q.Options = q.Options[:multipleOptions]
			}
		}

		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			q.CorrectIndex = 0
		}

		switch q.Difficulty {
		case "easy", "medium", "hard":
		default:
			q.Difficulty = "medium"
		}

		valid = append(valid, q)
		if limit > 0 && len(valid) == limit {
			break
		}
	}
	return valid
}

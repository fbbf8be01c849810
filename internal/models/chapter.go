package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChapterID accepts both string and numeric ids from chapters.json.
type ChapterID string

func (id *ChapterID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ChapterID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chapter id must be a string or number: %w", err)
	}
	*id = ChapterID(n.String())
	return nil
}

type Chapter struct {
	ID            ChapterID `json:"id"`
	Week          string    `json:"week"`
	Title         string    `json:"title"`
	Instructor    string    `json:"instructor"`
	Date          string    `json:"date"`
	Description   string    `json:"description"`
	FileName      string    `json:"fileName"`
	QuestionCount int       `json:"questionCount"` // display hint only
}

type ChapterIndex struct {
	Chapters []Chapter `json:"chapters"`
}

// ChapterDraft is the input for building a chapter config entry.
type ChapterDraft struct {
	ID           ChapterID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Week         string    `json:"week"`
	Instructor   string    `json:"instructor"`
	Date         string    `json:"date"`
	QuestionFile string    `json:"-"`
}

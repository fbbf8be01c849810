package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Question is owned by the data files and is never validated on load. The
// raw bytes are kept and written back unchanged; the known fields below are
// filled best-effort for rendering and stay zero when absent or mistyped.
type Question struct {
	Question     string   `json:"question"`
	Type         string   `json:"type,omitempty"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
	Hint         string   `json:"hint,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Topic        string   `json:"topic,omitempty"`

	raw json.RawMessage
}

type questionFields Question

// UnmarshalJSON accepts any JSON value and never fails on the record's shape.
func (q *Question) UnmarshalJSON(data []byte) error {
	*q = Question{CorrectIndex: -1, raw: append(json.RawMessage(nil), data...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	q.Question = stringField(fields, "question")
	q.Type = stringField(fields, "type")
	q.Options = optionsField(fields["options"])
	q.CorrectIndex = indexField(fields["correct_index"])
	q.Explanation = stringField(fields, "explanation")
	q.Hint = stringField(fields, "hint")
	q.Difficulty = stringField(fields, "difficulty")
	q.Topic = stringField(fields, "topic")
	return nil
}

func (q Question) MarshalJSON() ([]byte, error) {
	if len(q.raw) > 0 {
		return q.raw, nil
	}
	return json.Marshal(questionFields(q))
}

// Detached drops the retained source bytes so edits to the decoded fields
// are what gets marshalled.
func (q Question) Detached() Question {
	q.raw = nil
	return q
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// optionsField reads a list of strings, or the string values of an object
// such as {"A": "...", "B": "..."} in document order.
func optionsField(raw json.RawMessage) []string {
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var options []string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil
		}
		var s string
		if json.Unmarshal(v, &s) != nil {
			return nil
		}
		options = append(options, s)
	}
	return options
}

// indexField reads a number or a numeric string; anything else is -1.
func indexField(raw json.RawMessage) int {
	if len(raw) == 0 {
		return -1
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return -1
}

// QuestionFile is the wrapped on-disk shape of a chapter's questions.
type QuestionFile struct {
	Questions []Question `json:"questions"`
}

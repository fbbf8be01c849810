package models

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestQuestion_UnmarshalNeverRejectsShape(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		prompt  string
		options []string
		correct int
	}{
		{"standard", `{"question":"q","options":["x","y"],"correct_index":1}`, "q", []string{"x", "y"}, 1},
		{"string index", `{"question":"q1","options":["x","y"],"correct_index":"1"}`, "q1", []string{"x", "y"}, 1},
		{"object options", `{"question":"q2","options":{"A":"x","B":"y"},"answer":"B"}`, "q2", []string{"x", "y"}, -1},
		{"missing options", `{"question":"q3"}`, "q3", nil, -1},
		{"mistyped prompt", `{"question":7,"options":[1,2]}`, "", nil, -1},
		{"not an object", `"just text"`, "", nil, -1},
		{"null", `null`, "", nil, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var q Question
			if err := json.Unmarshal([]byte(tc.data), &q); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Question != tc.prompt {
				t.Errorf("expected prompt %q, got %q", tc.prompt, q.Question)
			}
			if !slices.Equal(q.Options, tc.options) {
				t.Errorf("expected options %v, got %v", tc.options, q.Options)
			}
			if q.CorrectIndex != tc.correct {
				t.Errorf("expected correct index %d, got %d", tc.correct, q.CorrectIndex)
			}

			out, err := json.Marshal(q)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(out) != tc.data {
				t.Fatalf("expected record written back unchanged, got %s", out)
			}
		})
	}
}

func TestQuestion_DetachedMarshalsFields(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"question":"q","options":["a","b"],"extra":true}`), &q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q = q.Detached()
	q.Question = "edited"

	out, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]interface{}
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back["question"] != "edited" {
		t.Fatalf("expected edited prompt, got %v", back["question"])
	}
	if _, ok := back["extra"]; ok {
		t.Fatalf("detached question should not keep source fields: %s", out)
	}
}

package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type stubTokens struct {
	id  uuid.UUID
	err error
}

func (s stubTokens) ParseToken(string) (uuid.UUID, error) {
	return s.id, s.err
}

func TestHandleWebSocket_RejectsMissingToken(t *testing.T) {
	hub := NewHub(nil, stubTokens{id: uuid.New()}, nil)

	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHandleWebSocket_RejectsBadToken(t *testing.T) {
	hub := NewHub(nil, stubTokens{err: errors.New("bad signature")}, nil)

	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=abc", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if hub.connectionCount(uuid.Nil) != 0 {
		t.Fatalf("expected no registered connections")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"https://evil.test", false},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		if got := check(req); got != tc.want {
			t.Errorf("origin %q: expected %v, got %v", tc.origin, tc.want, got)
		}
	}

	if !originChecker([]string{"*"})(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Errorf("expected wildcard to allow any origin")
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRateLimiter_LimitsPerIdentity(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	alice := uuid.New()
	bob := uuid.New()
	send := func(id uuid.UUID) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/authoring/generate", nil)
		req = req.WithContext(WithUserID(req.Context(), id))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if send(alice) != http.StatusAccepted || send(alice) != http.StatusAccepted {
		t.Fatalf("expected first two requests allowed")
	}
	if code := send(alice); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request, got %d", code)
	}
	if code := send(bob); code != http.StatusAccepted {
		t.Fatalf("expected other identity unaffected, got %d", code)
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Stop()

	if !rl.Allow("ip:10.0.0.1") {
		t.Fatalf("expected first hit allowed")
	}
	if rl.Allow("ip:10.0.0.1") {
		t.Fatalf("expected second hit limited")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("ip:10.0.0.1") {
		t.Fatalf("expected hit allowed after the window")
	}
}

func TestVisitorKey_FallsBackToHost(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"

	if got := visitorKey(req); got != "ip:192.0.2.7" {
		t.Fatalf("unexpected key %q", got)
	}
}

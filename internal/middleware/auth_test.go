package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGuestToken_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	id := uuid.New()

	token, expiresAt, err := auth.GenerateGuestToken(id)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) < 6*24*time.Hour {
		t.Fatalf("expected about a week of validity, got %v", time.Until(expiresAt))
	}

	got, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
}

func TestParseToken_RejectsOtherSecret(t *testing.T) {
	token, _, _ := NewJWTAuth("one").GenerateGuestToken(uuid.New())

	if _, err := NewJWTAuth("two").ParseToken(token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestMiddleware(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	id := uuid.New()
	valid, _, _ := auth.GenerateGuestToken(id)

	expired := NewJWTAuth("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	stale, _, _ := expired.GenerateGuestToken(id)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Token " + valid, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired token", "Bearer " + stale, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen uuid.UUID
			handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetUserID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/quiz/state", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantCode == "" {
				if seen != id {
					t.Fatalf("expected identity %s in context, got %s", id, seen)
				}
				return
			}

			var body map[string]map[string]interface{}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"]["code"] != tc.wantCode {
				t.Fatalf("expected code %s, got %v", tc.wantCode, body["error"]["code"])
			}
		})
	}
}

func TestParseToken_RejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": uuid.New().String()})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewJWTAuth("secret").ParseToken(signed); err == nil {
		t.Fatalf("expected unsigned token to be rejected")
	}
}

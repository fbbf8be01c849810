package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

type TokenIssuer interface {
	GenerateGuestToken(identity uuid.UUID) (string, time.Time, error)
}

// SessionHandler hands out anonymous browser identities.
type SessionHandler struct {
	tokens TokenIssuer
}

func NewSessionHandler(tokens TokenIssuer) *SessionHandler {
	return &SessionHandler{tokens: tokens}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := uuid.New()

	token, expiresAt, err := h.tokens.GenerateGuestToken(identity)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue session token", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"identity":   identity,
		"token":      token,
		"expires_at": expiresAt,
	})
}

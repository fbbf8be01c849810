package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const AuthoringKeyHeader = "X-Authoring-Key"

// RequireAuthoringKey guards the authoring routes with a bcrypt-hashed
// operator key. An empty hash rejects every request.
func RequireAuthoringKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AuthoringKeyHeader)
			if hash == "" || key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Authoring key required", r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/animegen/animegen-api/internal/api/shared"
)

// accessTokenHeader carries the shared access token on every request.
const accessTokenHeader = "ACCESS-TOKEN"

// AuthMiddleware guards routes with a single pre-shared access token.
// Callers are trusted gateway processes, not end users, so there is no
// per-user identity to establish.
type AuthMiddleware struct {
	token string
}

// NewAuthMiddleware creates a new AuthMiddleware with the given token.
func NewAuthMiddleware(token string) *AuthMiddleware {
	return &AuthMiddleware{
		token: token,
	}
}

// Authenticate validates the ACCESS-TOKEN header on incoming requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(accessTokenHeader)
		if token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Access token required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid access token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

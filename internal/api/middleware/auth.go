package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kariro/kariro/internal/api/response"
	"github.com/kariro/kariro/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const tokenPrefixLen = 8

// Auth provides session-token authentication middleware.
type Auth struct {
	store store.Store
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer session token and sets user_id in the
// request context. Tokens are looked up by prefix, then matched by bcrypt
// comparison so the raw token is never stored.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken := extractBearerToken(r)
		if rawToken == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawToken) < tokenPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid session token format", nil)
			return
		}

		prefix := rawToken[:tokenPrefixLen]

		sessions, err := a.store.GetSessionsByPrefix(r.Context(), prefix)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate session", nil)
			return
		}

		now := time.Now()
		var matched bool
		for _, session := range sessions {
			if session.ExpiresAt.Before(now) {
				continue
			}
			if bcrypt.CompareHashAndPassword([]byte(session.TokenHash), []byte(rawToken)) == nil {
				r = r.WithContext(SetUserID(r.Context(), session.UserID))
				matched = true

				// Update last_used_at async
				go a.store.TouchSession(context.Background(), session.ID)
				break
			}
		}

		if !matched {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired session token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

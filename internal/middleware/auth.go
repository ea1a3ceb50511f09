package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/auth"
)

const SessionCookieName = "homewise_session"

// Authenticator resolves a session token. *auth.Provider satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Session, error)
}

// SessionToken returns the session token from the session cookie or, failing
// that, an "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// RequireAuth resolves the caller's session and stores it in the request
// context. Requests without a valid session get a JSON 401.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}

			sess, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				status := apperr.KindOf(err).Status()
				msg := "authentication required"
				if status == http.StatusInternalServerError {
					msg = "internal server error"
				}
				writeMessage(w, status, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

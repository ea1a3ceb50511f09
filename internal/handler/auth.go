package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/middleware"
	"github.com/dukerupert/homewise/internal/model"
)

type AuthHandler struct {
	provider *auth.Provider
	// redirectOrigins are the origins verify-email may redirect back to.
	redirectOrigins []string
	logger          *slog.Logger
}

func NewAuthHandler(provider *auth.Provider, redirectOrigins []string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, redirectOrigins: redirectOrigins, logger: logger}
}

type sessionResponse struct {
	Token     *string     `json:"token"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	User      *model.User `json:"user"`
}

func newSessionResponse(user *model.User, sess *auth.Session) sessionResponse {
	resp := sessionResponse{User: user}
	if sess != nil {
		resp.Token = &sess.Token
		resp.ExpiresAt = &sess.ExpiresAt
		if resp.User == nil {
			resp.User = sess.User
		}
	}
	return resp
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(h.provider.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in auth.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, sess, err := h.provider.SignUp(r.Context(), in, clientInfo(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if sess != nil {
		h.setSessionCookie(w, r, sess)
	}
	writeJSON(w, http.StatusOK, newSessionResponse(user, sess))
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in auth.SignInInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sess, err := h.provider.SignIn(r.Context(), in, clientInfo(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusOK, newSessionResponse(nil, sess))
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.provider.SignOut(r.Context(), token); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	clearSessionCookie(w)
	writeSuccess(w, http.StatusOK)
}

// GetSession answers null when the request carries no valid session.
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.provider.Authenticate(r.Context(), middleware.SessionToken(r))
	if apperr.Is(err, apperr.KindUnauthorized) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": map[string]any{
			"id":         sess.ID,
			"user_id":    sess.UserID,
			"expires_at": sess.ExpiresAt,
		},
		"user": sess.User,
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, h.logger, apperr.Invalid("token", "invalid_type", "token is required"))
		return
	}

	sess, err := h.provider.VerifyEmail(r.Context(), token, clientInfo(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSessionCookie(w, r, sess)

	if callback := r.URL.Query().Get("callbackURL"); callback != "" && h.safeRedirect(callback) {
		http.Redirect(w, r, callback, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "user": sess.User})
}

// safeRedirect allows relative paths and absolute URLs on a known origin.
func (h *AuthHandler) safeRedirect(target string) bool {
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return true
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return slices.Contains(h.redirectOrigins, u.Scheme+"://"+u.Host)
}

func (h *AuthHandler) GenerateOneTimeToken(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	token, err := h.provider.GenerateOneTimeToken(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) VerifyOneTimeToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Token == "" {
		writeError(w, r, h.logger, apperr.Invalid("token", "invalid_type", "token is required"))
		return
	}

	userID, err := h.provider.VerifyOneTimeToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.provider.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/middleware"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 1 << 20

type successResponse struct {
	Success bool `json:"success"`
}

type dataResponse[T any] struct {
	Data T `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int) {
	writeJSON(w, status, successResponse{Success: true})
}

// writeError maps err to its status. Failures with issues are written as
// the issue array; everything else as {"message": ...}. Internal errors are
// logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e := apperr.As(err)
	status := e.Kind.Status()

	if e.Kind == apperr.KindInternal {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, status, messageResponse{Message: "internal server error"})
		return
	}
	if len(e.Issues) > 0 {
		writeJSON(w, status, e.Issues)
		return
	}
	writeJSON(w, status, messageResponse{Message: e.Message})
}

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation(apperr.RootIssue("too_big", "request body too large"))
		}
		return apperr.Validation(apperr.RootIssue("invalid_json", "request body must be valid JSON"))
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "invalid_type", "id must be a positive integer")
	}
	return id, nil
}

// session returns the caller attached by middleware.RequireAuth.
func session(r *http.Request) (auth.Session, error) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Session{}, apperr.Unauthorized("authentication required")
	}
	return sess, nil
}

func clientInfo(r *http.Request) auth.ClientInfo {
	return auth.ClientInfo{IPAddress: middleware.RealIP(r), UserAgent: r.UserAgent()}
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/images"
	"github.com/dukerupert/homewise/internal/profile"
)

// maxProfileForm leaves room for the name field and multipart framing.
const maxProfileForm = images.MaxUploadSize + 64<<10

type UserHandler struct {
	svc    *profile.Service
	logger *slog.Logger
}

func NewUserHandler(svc *profile.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// UpdateMe accepts multipart/form-data with optional "name" and "image"
// parts. An "image" sent as a plain (empty) value leaves the avatar alone.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProfileForm)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, h.logger, apperr.Invalid("image", "too_big", "image must be at most 5 MiB"))
			return
		}
		writeError(w, r, h.logger, apperr.Validation(apperr.RootIssue("invalid_type", "request must be multipart/form-data")))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var in profile.UpdateInput
	if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
		in.Name = &values[0]
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, r, h.logger, apperr.Invalid("image", "invalid_type", "image could not be read"))
		return
	default:
		defer file.Close()
		in.Image = &profile.Upload{Filename: header.Filename, Body: file}
	}

	user, err := h.svc.Update(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteProfilePicture(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, removed, err := h.svc.RemovePicture(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !removed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusAccepted, user)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/household"
	"github.com/dukerupert/homewise/internal/model"
)

type HouseholdHandler struct {
	svc    *household.Service
	logger *slog.Logger
}

func NewHouseholdHandler(svc *household.Service, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{svc: svc, logger: logger}
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in household.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	hh, err := h.svc.Create(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, hh)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hh, err := h.svc.ReadForUser(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Patch(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in household.PatchInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	hh, err := h.svc.Patch(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.DeleteOwned(r.Context(), sess); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusAccepted)
}

func (h *HouseholdHandler) Invite(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in household.InviteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.svc.Invite(r.Context(), sess, in, r.URL.Query().Get("callbackUrl")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK)
}

func (h *HouseholdHandler) ListActiveInvites(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	invites, err := h.svc.ListActiveInvites(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if invites == nil {
		invites = []model.HouseholdInvite{}
	}
	writeJSON(w, http.StatusOK, dataResponse[[]model.HouseholdInvite]{Data: invites})
}

func (h *HouseholdHandler) DeleteInvite(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.DeleteInvite(r.Context(), sess, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusAccepted)
}

// ReadInvite is public: the token itself is the credential.
func (h *HouseholdHandler) ReadInvite(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, h.logger, apperr.Invalid("token", "invalid_type", "token is required"))
		return
	}
	details, err := h.svc.ReadInvite(r.Context(), token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *HouseholdHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, h.logger, apperr.Invalid("token", "invalid_type", "token is required"))
		return
	}

	if _, err := h.svc.AcceptInvite(r.Context(), sess, id, token); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusAccepted)
}

func (h *HouseholdHandler) PatchMember(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in household.PatchMemberInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	member, err := h.svc.PatchMember(r.Context(), sess, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *HouseholdHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.DeleteMember(r.Context(), sess, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusAccepted)
}

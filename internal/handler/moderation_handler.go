package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/model"
	"go-auth-service/internal/service"
)

type ModerationHandler struct {
	service *service.ModerationService
}

func NewModerationHandler(service *service.ModerationService) *ModerationHandler {
	return &ModerationHandler{service: service}
}

func (h *ModerationHandler) Ban(w http.ResponseWriter, r *http.Request) {
	actor, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.BanRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.Ban(r.Context(), actor, chi.URLParam(r, "id"), payload, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user}, nil)
}

func (h *ModerationHandler) Unban(w http.ResponseWriter, r *http.Request) {
	actor, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.Unban(r.Context(), actor, chi.URLParam(r, "id"), clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user}, nil)
}

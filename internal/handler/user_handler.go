package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
	"go-auth-service/internal/service"
	"go-auth-service/pkg/apierror"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

// Profile serves a public profile. The email is included only when the
// optional viewer may see it.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		writeError(w, r, apierror.BadRequest("username is required", "username"))
		return
	}

	var viewer *model.Identity
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		viewer = &identity
	}

	user, err := h.service.PublicProfile(r.Context(), username, viewer)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user}, nil)
}

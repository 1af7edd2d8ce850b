package handler

import (
	"net/http"

	"github.com/mcoot/movienight/internal/api/middleware"
	"github.com/mcoot/movienight/internal/api/request"
	"github.com/mcoot/movienight/internal/api/response"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/services/auth"
	"github.com/mcoot/movienight/internal/services/membership"
)

// UserHandler handles account and session endpoints
type UserHandler struct {
	authService *auth.Service
	coordinator *membership.Coordinator
}

// NewUserHandler creates a new user handler
func NewUserHandler(authService *auth.Service, coordinator *membership.Coordinator) *UserHandler {
	return &UserHandler{
		authService: authService,
		coordinator: coordinator,
	}
}

// Register handles POST /api/v1/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	user, err := h.authService.Register(r.Context(), model.UserInfo{Username: req.Username, Password: req.Password})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.UserFromModel(user))
}

// Login handles POST /api/v1/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	tokens, err := h.authService.Login(r.Context(), model.UserInfo{Username: req.Username, Password: req.Password})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TokensFromSession(tokens))
}

// Refresh handles POST /api/v1/users/refresh
func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req request.RefreshRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TokensFromSession(tokens))
}

// Logout handles POST /api/v1/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req request.RefreshRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	user, err := h.coordinator.GetUser(r.Context(), username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// UpdatePassword handles PUT /api/v1/users/me/password
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	var req request.UpdatePasswordRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	err := h.authService.UpdatePassword(r.Context(),
		model.UserInfo{Username: username, Password: req.OldPassword},
		model.UserInfo{Username: username, Password: req.NewPassword},
	)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Repair handles POST /api/v1/users/me/repair
func (h *UserHandler) Repair(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	repaired, err := h.coordinator.RepairUserIndex(r.Context(), username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Repair{Repaired: repaired})
}

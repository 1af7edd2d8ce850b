package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/movienight/internal/api/middleware"
	"github.com/mcoot/movienight/internal/api/request"
	"github.com/mcoot/movienight/internal/api/response"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/services/membership"
	"github.com/mcoot/movienight/internal/services/watch"
)

// GroupHandler handles group membership and watch-state endpoints
type GroupHandler struct {
	coordinator *membership.Coordinator
	watch       *watch.Controller
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(coordinator *membership.Coordinator, watch *watch.Controller) *GroupHandler {
	return &GroupHandler{
		coordinator: coordinator,
		watch:       watch,
	}
}

// Create handles POST /api/v1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	var req request.CreateGroupRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	ref, err := h.coordinator.CreateGroup(r.Context(), model.GroupForm{GroupName: req.GroupName, Username: username})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.GroupRefFromModel(ref))
}

// Get handles GET /api/v1/groups/{id}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, ok := h.memberGroup(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// AddMember handles POST /api/v1/groups/{id}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	group, ok := h.memberGroup(w, r)
	if !ok {
		return
	}

	var req request.AddMemberRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.coordinator.JoinGroup(r.Context(), group.ID, req.Username); err != nil {
		WriteError(w, err)
		return
	}

	h.writeGroup(w, r, group.ID)
}

// Join handles POST /api/v1/groups/{id}/join
func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())
	groupID := model.GroupID(mux.Vars(r)["id"])

	if err := h.coordinator.JoinGroup(r.Context(), groupID, username); err != nil {
		WriteError(w, err)
		return
	}

	h.writeGroup(w, r, groupID)
}

// Leave handles POST /api/v1/groups/{id}/leave
func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())
	groupID := model.GroupID(mux.Vars(r)["id"])

	if err := h.coordinator.LeaveGroup(r.Context(), groupID, username); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// AddMovie handles POST /api/v1/groups/{id}/movies
func (h *GroupHandler) AddMovie(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())
	groupID := model.GroupID(mux.Vars(r)["id"])

	var req request.AddMovieRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.watch.AddMovie(r.Context(), groupID, username, model.Movie{ID: req.ID, Title: req.Title, Year: req.Year})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.GroupFromModel(group))
}

// SetReady handles POST /api/v1/groups/{id}/ready
func (h *GroupHandler) SetReady(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())
	groupID := model.GroupID(mux.Vars(r)["id"])

	var req request.ReadyRequest
	if err := request.Decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.watch.SetReady(r.Context(), groupID, username, *req.Ready)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// Repair handles POST /api/v1/groups/{id}/repair
func (h *GroupHandler) Repair(w http.ResponseWriter, r *http.Request) {
	group, ok := h.memberGroup(w, r)
	if !ok {
		return
	}

	repaired, err := h.coordinator.RepairGroupIndex(r.Context(), group.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Repair{Repaired: repaired})
}

// memberGroup loads the routed group and checks the caller belongs to it
func (h *GroupHandler) memberGroup(w http.ResponseWriter, r *http.Request) (*model.Group, bool) {
	username := middleware.MustGetUsername(r.Context())
	groupID := model.GroupID(mux.Vars(r)["id"])

	group, err := h.coordinator.GetGroup(r.Context(), groupID)
	if err != nil {
		WriteError(w, err)
		return nil, false
	}
	if !group.HasMember(username) {
		WriteError(w, model.Ef(model.KindNotMember, "group access", username, model.ErrUserNotInGroup))
		return nil, false
	}
	return group, true
}

func (h *GroupHandler) writeGroup(w http.ResponseWriter, r *http.Request, groupID model.GroupID) {
	group, err := h.coordinator.GetGroup(r.Context(), groupID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

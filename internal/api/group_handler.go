package api

import (
	"net/http"

	"github.com/jjoniel/secretsanta/internal/middleware"
	"github.com/jjoniel/secretsanta/internal/service"
)

type GroupHandler struct {
	groups *service.GroupService
}

type groupRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListGroups(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newGroupViews(groups))
}

// Create handles POST /api/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	group, err := h.groups.CreateGroup(r.Context(), middleware.GetUserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newGroupView(group))
}

// Get handles GET /api/groups/{group_id}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}

	group, err := h.groups.GetGroup(r.Context(), middleware.GetUserID(r.Context()), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newGroupView(group))
}

// Update handles PUT /api/groups/{group_id}
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}
	var req groupRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	group, err := h.groups.UpdateGroup(r.Context(), middleware.GetUserID(r.Context()), groupID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newGroupView(group))
}

// Delete handles DELETE /api/groups/{group_id}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}

	if err := h.groups.DeleteGroup(r.Context(), middleware.GetUserID(r.Context()), groupID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

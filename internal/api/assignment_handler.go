package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jjoniel/secretsanta/internal/service"
)

type AssignmentHandler struct {
	assignments *service.AssignmentService
}

type assignmentRequest struct {
	GroupID int64 `json:"group_id"`
	Year    *int  `json:"year"`
}

// Create handles POST /api/groups/{group_id}/assignments?send_emails=
func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	sendEmails, ok := queryBool(w, r, "send_emails")
	if !ok {
		return
	}
	var req assignmentRequest
	if !parseJSONBody(w, r, &req) {
		return
	}
	if req.GroupID != 0 && req.GroupID != groupID {
		validationResponse(w, "group_id: must match the group in the path")
		return
	}

	year := 0
	if req.Year != nil {
		year = *req.Year
		if year == 0 {
			validationResponse(w, "year: must be between 1 and 9999")
			return
		}
	}

	res, err := h.assignments.CreateAssignments(r.Context(), ownerID, groupID, year, sendEmails)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newAssignmentResultView(res))
}

// History handles GET /api/groups/{group_id}/assignments/history?year=
func (h *AssignmentHandler) History(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}

	records, err := h.assignments.GetHistory(r.Context(), ownerID, groupID, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newHistoryViews(records))
}

// Delete handles DELETE /api/groups/{group_id}/assignments/{year}
func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil || year < 1 {
		validationResponse(w, "path.year: must be a positive integer")
		return
	}

	if err := h.assignments.DeleteAssignments(r.Context(), ownerID, groupID, year); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"context"
	"net/http"

	"github.com/jjoniel/secretsanta/internal/middleware"
	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/service"
)

type ParticipantHandler struct {
	participants *service.ParticipantService
}

type participantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type bulkParticipantRequest struct {
	Participants []participantRequest `json:"participants"`
}

type participantUpdateRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type restrictionRequest struct {
	GiverID            int64   `json:"giver_id"`
	AllowedReceiverIDs []int64 `json:"allowed_receiver_ids"`
}

// groupPath reads the owner and group for a participant route.
func groupPath(w http.ResponseWriter, r *http.Request) (ownerID, groupID int64, ok bool) {
	groupID, ok = pathID(w, r, "group_id")
	return middleware.GetUserID(r.Context()), groupID, ok
}

// withRestrictions renders p with its allowed receivers resolved to names.
func (h *ParticipantHandler) withRestrictions(ctx context.Context, ownerID, groupID int64, p *models.Participant) (participantWithRestrictionsView, error) {
	all, err := h.participants.ListParticipants(ctx, ownerID, groupID)
	if err != nil {
		return participantWithRestrictionsView{}, err
	}
	return newNameResolver(all).withRestrictions(p), nil
}

// List handles GET /api/groups/{group_id}/participants
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}

	participants, err := h.participants.ListParticipants(r.Context(), ownerID, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	names := newNameResolver(participants)
	out := make([]participantWithRestrictionsView, len(participants))
	for i, p := range participants {
		out[i] = names.withRestrictions(p)
	}
	jsonResponse(w, http.StatusOK, out)
}

// Create handles POST /api/groups/{group_id}/participants
func (h *ParticipantHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	var req participantRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	p, err := h.participants.AddParticipant(r.Context(), ownerID, groupID, service.ParticipantInput{Name: req.Name, Email: req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newParticipantView(p))
}

// CreateBulk handles POST /api/groups/{group_id}/participants/bulk
func (h *ParticipantHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	var req bulkParticipantRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	in := make([]service.ParticipantInput, len(req.Participants))
	for i, p := range req.Participants {
		in[i] = service.ParticipantInput{Name: p.Name, Email: p.Email}
	}
	added, err := h.participants.AddParticipants(r.Context(), ownerID, groupID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newParticipantViews(added))
}

// Get handles GET /api/groups/{group_id}/participants/{participant_id}
func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	participantID, ok := pathID(w, r, "participant_id")
	if !ok {
		return
	}

	p, err := h.participants.GetParticipant(r.Context(), ownerID, groupID, participantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.withRestrictions(r.Context(), ownerID, groupID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

// Update handles PUT /api/groups/{group_id}/participants/{participant_id}
func (h *ParticipantHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	participantID, ok := pathID(w, r, "participant_id")
	if !ok {
		return
	}
	var req participantUpdateRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	p, err := h.participants.UpdateParticipant(r.Context(), ownerID, groupID, participantID,
		service.ParticipantUpdate{Name: req.Name, Email: req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newParticipantView(p))
}

// Delete handles DELETE /api/groups/{group_id}/participants/{participant_id}
func (h *ParticipantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	participantID, ok := pathID(w, r, "participant_id")
	if !ok {
		return
	}

	if err := h.participants.RemoveParticipant(r.Context(), ownerID, groupID, participantID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetRestrictions handles PUT /api/groups/{group_id}/participants/{participant_id}/restrictions
func (h *ParticipantHandler) SetRestrictions(w http.ResponseWriter, r *http.Request) {
	ownerID, groupID, ok := groupPath(w, r)
	if !ok {
		return
	}
	participantID, ok := pathID(w, r, "participant_id")
	if !ok {
		return
	}
	var req restrictionRequest
	if !parseJSONBody(w, r, &req) {
		return
	}
	if req.GiverID != 0 && req.GiverID != participantID {
		validationResponse(w, "giver_id: must match the participant in the path")
		return
	}

	p, err := h.participants.SetRestrictions(r.Context(), ownerID, groupID, participantID, req.AllowedReceiverIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.withRestrictions(r.Context(), ownerID, groupID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage"
)

// ParticipantInput is the name and email of a participant to add.
type ParticipantInput struct {
	Name  string
	Email string
}

// ParticipantUpdate changes the fields that are non-nil.
type ParticipantUpdate struct {
	Name  *string
	Email *string
}

// ParticipantService manages the participants of a group and their restrictions.
type ParticipantService struct {
	store storage.Store
}

// NewParticipantService creates a new ParticipantService with the given storage backend.
func NewParticipantService(store storage.Store) *ParticipantService {
	return &ParticipantService{store: store}
}

// ListParticipants returns the group's participants ordered by ID.
func (s *ParticipantService) ListParticipants(ctx context.Context, ownerID, groupID int64) ([]*models.Participant, error) {
	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, groupID)
	if err != nil {
		slog.Error("ListParticipants failed", "group_id", groupID, "error", err)
		return nil, err
	}
	return participants, nil
}

// GetParticipant returns one participant of the group.
func (s *ParticipantService) GetParticipant(ctx context.Context, ownerID, groupID, participantID int64) (*models.Participant, error) {
	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return nil, err
	}
	p, err := s.store.GetParticipant(ctx, groupID, participantID)
	if err != nil {
		return nil, notFoundOr(err, "Participant")
	}
	return p, nil
}

// AddParticipant adds one participant.
func (s *ParticipantService) AddParticipant(ctx context.Context, ownerID, groupID int64, in ParticipantInput) (*models.Participant, error) {
	added, err := s.AddParticipants(ctx, ownerID, groupID, []ParticipantInput{in})
	if err != nil {
		return nil, err
	}
	return added[0], nil
}

// AddParticipants adds all participants or none.
func (s *ParticipantService) AddParticipants(ctx context.Context, ownerID, groupID int64, in []ParticipantInput) ([]*models.Participant, error) {
	slog.Info("AddParticipants request received", "group_id", groupID, "count", len(in))

	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return nil, invalid("participants: at least one participant is required")
	}

	var problems []string
	seen := make(map[string]bool, len(in))
	participants := make([]*models.Participant, len(in))
	for i, p := range in {
		field := "participants"
		if len(in) > 1 {
			field = fmt.Sprintf("participants[%d]", i)
		}
		var name, email string
		name, problems = checkName(field+".name", p.Name, problems)
		email, problems = checkEmail(field+".email", p.Email, problems)
		if email != "" && seen[email] {
			problems = append(problems, field+".email: "+email+" appears more than once")
		}
		seen[email] = true
		participants[i] = &models.Participant{Name: name, Email: email}
	}
	if len(problems) > 0 {
		slog.Warn("AddParticipants rejected", "group_id", groupID, "problems", problems)
		return nil, invalid(problems...)
	}

	if err := s.store.AddParticipants(ctx, groupID, participants); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, &BadRequestError{Err: err}
		}
		slog.Error("AddParticipants failed", "group_id", groupID, "error", err)
		return nil, notFoundOr(err, "Group")
	}

	slog.Info("Participants added", "group_id", groupID, "count", len(participants))
	return participants, nil
}

// UpdateParticipant changes a participant's name or email.
func (s *ParticipantService) UpdateParticipant(ctx context.Context, ownerID, groupID, participantID int64, upd ParticipantUpdate) (*models.Participant, error) {
	slog.Info("UpdateParticipant request received", "group_id", groupID, "participant_id", participantID)

	p, err := s.GetParticipant(ctx, ownerID, groupID, participantID)
	if err != nil {
		return nil, err
	}

	var problems []string
	if upd.Name != nil {
		p.Name, problems = checkName("name", *upd.Name, problems)
	}
	if upd.Email != nil {
		p.Email, problems = checkEmail("email", *upd.Email, problems)
	}
	if len(problems) > 0 {
		return nil, invalid(problems...)
	}

	if err := s.store.UpdateParticipant(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, &BadRequestError{Err: err}
		}
		slog.Error("UpdateParticipant failed", "participant_id", participantID, "error", err)
		return nil, notFoundOr(err, "Participant")
	}
	return p, nil
}

// RemoveParticipant deletes a participant. Every restriction naming it goes
// too; a giver whose allowed set becomes empty is then unrestricted.
func (s *ParticipantService) RemoveParticipant(ctx context.Context, ownerID, groupID, participantID int64) error {
	slog.Info("RemoveParticipant request received", "group_id", groupID, "participant_id", participantID)

	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return err
	}
	if err := s.store.RemoveParticipant(ctx, groupID, participantID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("RemoveParticipant failed", "participant_id", participantID, "error", err)
		}
		return notFoundOr(err, "Participant")
	}
	return nil
}

// SetRestrictions replaces the receivers participantID may give to. An empty
// list makes the participant unrestricted.
func (s *ParticipantService) SetRestrictions(ctx context.Context, ownerID, groupID, participantID int64, receiverIDs []int64) (*models.Participant, error) {
	slog.Info("SetRestrictions request received",
		"group_id", groupID,
		"participant_id", participantID,
		"receivers_count", len(receiverIDs),
	)

	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return nil, err
	}
	if slices.Contains(receiverIDs, participantID) {
		return nil, invalid(storage.ErrSelfRestriction.Error())
	}

	err := s.store.SetRestrictions(ctx, groupID, participantID, receiverIDs)
	switch {
	case errors.Is(err, storage.ErrUnknownReceiver):
		return nil, &BadRequestError{Err: err}
	case errors.Is(err, storage.ErrSelfRestriction):
		return nil, invalid(err.Error())
	case err != nil:
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("SetRestrictions failed", "participant_id", participantID, "error", err)
		}
		return nil, notFoundOr(err, "Participant")
	}

	return s.store.GetParticipant(ctx, groupID, participantID)
}

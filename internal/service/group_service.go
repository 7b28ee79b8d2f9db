package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage"
)

// GroupService manages the groups owned by a user.
type GroupService struct {
	store storage.GroupStore
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.GroupStore) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a new group owned by ownerID.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID int64, name string) (*models.Group, error) {
	slog.Info("CreateGroup request received", "owner_id", ownerID, "name", name)

	name, problems := checkName("name", name, nil)
	if len(problems) > 0 {
		return nil, invalid(problems...)
	}

	group := &models.Group{OwnerID: ownerID, Name: name}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, err
	}

	slog.Info("Group created", "group_id", group.ID)
	return group, nil
}

// ListGroups retrieves all groups of ownerID.
func (s *GroupService) ListGroups(ctx context.Context, ownerID int64) ([]*models.Group, error) {
	groups, err := s.store.ListGroupsByOwner(ctx, ownerID)
	if err != nil {
		slog.Error("ListGroups failed", "owner_id", ownerID, "error", err)
		return nil, err
	}
	return groups, nil
}

// GetGroup retrieves a group. Groups owned by someone else are not found.
func (s *GroupService) GetGroup(ctx context.Context, ownerID, groupID int64) (*models.Group, error) {
	return ownedGroup(ctx, s.store, ownerID, groupID)
}

// UpdateGroup renames a group.
func (s *GroupService) UpdateGroup(ctx context.Context, ownerID, groupID int64, name string) (*models.Group, error) {
	slog.Info("UpdateGroup request received", "group_id", groupID, "name", name)

	group, err := ownedGroup(ctx, s.store, ownerID, groupID)
	if err != nil {
		return nil, err
	}

	name, problems := checkName("name", name, nil)
	if len(problems) > 0 {
		return nil, invalid(problems...)
	}

	group.Name = name
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		slog.Error("UpdateGroup failed", "group_id", groupID, "error", err)
		return nil, notFoundOr(err, "Group")
	}

	slog.Info("Group updated", "group_id", groupID)
	return group, nil
}

// DeleteGroup removes a group with its participants, restrictions and history.
func (s *GroupService) DeleteGroup(ctx context.Context, ownerID, groupID int64) error {
	slog.Info("DeleteGroup request received", "group_id", groupID)

	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		slog.Error("DeleteGroup failed", "group_id", groupID, "error", err)
		return notFoundOr(err, "Group")
	}

	slog.Info("Group deleted", "group_id", groupID)
	return nil
}

// ownedGroup loads a group and checks it belongs to ownerID.
func ownedGroup(ctx context.Context, store storage.GroupStore, ownerID, groupID int64) (*models.Group, error) {
	group, err := store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{What: "Group"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	if group.OwnerID != ownerID {
		return nil, &NotFoundError{What: "Group"}
	}
	return group, nil
}

// notFoundOr turns storage.ErrNotFound into a NotFoundError for what.
func notFoundOr(err error, what string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{What: what}
	}
	return err
}

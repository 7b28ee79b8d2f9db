package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage"
)

const groupColumns = "id, owner_id, name, revision, created_at, updated_at"

// CreateGroup persists a new group and populates ID and CreatedAt.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	err := s.db.QueryRowContext(ctx,
		s.rebind("INSERT INTO groups (owner_id, name, created_at) VALUES (?, ?, ?) RETURNING id"),
		group.OwnerID, group.Name, group.CreatedAt,
	).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	return nil
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, groupID int64) (*models.Group, error) {
	return s.getGroup(ctx, s.db, groupID)
}

func (s *Store) getGroup(ctx context.Context, q querier, groupID int64) (*models.Group, error) {
	group := &models.Group{}
	err := q.QueryRowContext(ctx,
		s.rebind("SELECT "+groupColumns+" FROM groups WHERE id = ?"),
		groupID,
	).Scan(&group.ID, &group.OwnerID, &group.Name, &group.Revision, &group.CreatedAt, &group.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %d: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListGroupsByOwner retrieves all groups owned by a user, oldest first.
func (s *Store) ListGroupsByOwner(ctx context.Context, ownerID int64) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+groupColumns+" FROM groups WHERE owner_id = ? ORDER BY id"),
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.OwnerID, &group.Name, &group.Revision, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, nil
}

// UpdateGroup renames a group.
func (s *Store) UpdateGroup(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().Unix()

	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE groups SET name = ?, updated_at = ? WHERE id = ?"),
		group.Name, group.UpdatedAt, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return expectRows(res, fmt.Errorf("group %d: %w", group.ID, storage.ErrNotFound))
}

// DeleteGroup removes a group. Participants, restrictions and history go with
// it through ON DELETE CASCADE.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM groups WHERE id = ?"), groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return expectRows(res, fmt.Errorf("group %d: %w", groupID, storage.ErrNotFound))
}

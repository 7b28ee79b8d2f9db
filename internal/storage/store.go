// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/jjoniel/secretsanta/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEmailExists     = errors.New("email already registered")
	ErrDuplicateEmail  = errors.New("a participant with this email already exists in the group")
	ErrUnknownReceiver = errors.New("some receiver IDs do not belong to this group")
	ErrSelfRestriction = errors.New("a participant cannot be assigned to themselves")
	ErrAlreadyAssigned = errors.New("assignments already exist for this group and year")

	// ErrSnapshotChanged means participants or restrictions changed between
	// the snapshot an assignment was computed from and its persistence.
	ErrSnapshotChanged = errors.New("group changed while assignments were being created")
)

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts the user and populates ID and CreatedAt.
	// Returns ErrEmailExists if the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns ErrNotFound if no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns ErrNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// GroupStore persists groups.
type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID int64) (*models.Group, error)
	ListGroupsByOwner(ctx context.Context, ownerID int64) ([]*models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes the group with its participants, restrictions and history.
	DeleteGroup(ctx context.Context, groupID int64) error
}

// Registry holds the participants of a group and their restriction sets.
// Every mutation bumps the group's revision.
type Registry interface {
	// ListParticipants returns participants ordered by ID, with AllowedReceivers populated.
	ListParticipants(ctx context.Context, groupID int64) ([]*models.Participant, error)

	GetParticipant(ctx context.Context, groupID, participantID int64) (*models.Participant, error)

	// AddParticipants inserts all participants or none.
	// Returns ErrDuplicateEmail if an email is already used in the group.
	AddParticipants(ctx context.Context, groupID int64, participants []*models.Participant) error

	// UpdateParticipant changes name and email.
	UpdateParticipant(ctx context.Context, participant *models.Participant) error

	// RemoveParticipant deletes the participant and purges it from every
	// other participant's allowed receivers.
	RemoveParticipant(ctx context.Context, groupID, participantID int64) error

	// SetRestrictions replaces the giver's allowed receivers. An empty list
	// removes all restrictions. Returns ErrSelfRestriction or ErrUnknownReceiver.
	SetRestrictions(ctx context.Context, groupID, giverID int64, receiverIDs []int64) error
}

// HistoryStore holds the assignment history of groups.
type HistoryStore interface {
	// Snapshot reads the group, its participants with restrictions, and its
	// history in one consistent read.
	Snapshot(ctx context.Context, groupID int64) (*models.GroupSnapshot, error)

	// RecordAssignmentHistory persists a run atomically. It returns
	// ErrAlreadyAssigned if the year already has records and
	// ErrSnapshotChanged if the group revision differs from revision.
	RecordAssignmentHistory(ctx context.Context, run *models.AssignmentRun, revision int64) error

	// GetHistory returns records for the group, for one year if year > 0,
	// ordered by year then giver name.
	GetHistory(ctx context.Context, groupID int64, year int) ([]models.AssignmentRecord, error)

	// DeleteAssignments removes a year's records. Returns ErrNotFound if there are none.
	DeleteAssignments(ctx context.Context, groupID int64, year int) error
}

// Store defines the full storage surface used by the services.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	Registry
	HistoryStore

	// Close releases any resources held by the store.
	Close() error
}

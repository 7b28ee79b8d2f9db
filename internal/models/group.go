package models

// Group represents one gift exchange, owned by a single user.
// Deleting a group removes its participants, restrictions and history.
type Group struct {
	// ID is the unique identifier for the group.
	ID int64

	// OwnerID is the user who created the group.
	OwnerID int64

	// Name is the display name of the group (e.g., "Family 2025").
	Name string

	// Revision is bumped by every participant or restriction change.
	// The assignment engine uses it to detect a stale snapshot.
	Revision int64

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last rename, 0 if never updated.
	UpdatedAt int64
}

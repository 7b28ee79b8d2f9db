package models

// Participant is a member of a group.
type Participant struct {
	// ID is the unique identifier for the participant.
	ID int64

	// GroupID is the group this participant belongs to.
	GroupID int64

	// Name is the display name used in emails and responses.
	Name string

	// Email is unique within the group and receives the assignment notification.
	Email string

	// AllowedReceivers restricts who this participant may give to.
	// Empty means anyone but themselves. Never contains the participant's own ID.
	AllowedReceivers []int64

	// CreatedAt is the Unix timestamp when the participant was added.
	CreatedAt int64
}

// Unrestricted reports whether the participant may give to anyone but themselves.
func (p *Participant) Unrestricted() bool {
	return len(p.AllowedReceivers) == 0
}

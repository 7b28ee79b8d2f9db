package models

// AssignmentRecord is one giver -> receiver pair for a group and year.
// Names are snapshotted so history stays readable after a participant is removed.
type AssignmentRecord struct {
	GroupID      int64
	Year         int
	GiverID      int64
	ReceiverID   int64
	GiverName    string
	ReceiverName string
	CreatedAt    int64
}

// AssignmentRun is the set of records written atomically for one (group, year).
type AssignmentRun struct {
	// ID is the unique identifier for the run (UUID format).
	ID string

	GroupID   int64
	Year      int
	CreatedAt int64
	Records   []AssignmentRecord
}

// GroupSnapshot is a consistent read of everything the assignment engine needs.
type GroupSnapshot struct {
	Group        Group
	Participants []*Participant
	History      []AssignmentRecord
}

// HasYear reports whether history already holds records for year.
func (s *GroupSnapshot) HasYear(year int) bool {
	for _, rec := range s.History {
		if rec.Year == year {
			return true
		}
	}
	return false
}

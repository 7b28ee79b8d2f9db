package rpc

// Messages of secretsanta.v1.AssignmentService.

type CreateAssignmentsRequest struct {
	GroupID int64 `json:"group_id"`
	// Year defaults to the current year when 0.
	Year       int32 `json:"year,omitempty"`
	SendEmails bool  `json:"send_emails,omitempty"`
}

type Assignment struct {
	GiverID       int64  `json:"giver_id"`
	GiverName     string `json:"giver_name"`
	GiverEmail    string `json:"giver_email"`
	ReceiverID    int64  `json:"receiver_id"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverEmail string `json:"receiver_email"`
}

type NotificationFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type NotificationReport struct {
	Attempted int32                  `json:"attempted"`
	Failed    []*NotificationFailure `json:"failed,omitempty"`
}

type CreateAssignmentsResponse struct {
	RunID         string              `json:"run_id"`
	Year          int32               `json:"year"`
	Assignments   []*Assignment       `json:"assignments"`
	Warnings      []string            `json:"warnings,omitempty"`
	Message       string              `json:"message"`
	Notifications *NotificationReport `json:"notifications,omitempty"`
}

type GetHistoryRequest struct {
	GroupID int64 `json:"group_id"`
	// Year limits the records to one year when non-zero.
	Year int32 `json:"year,omitempty"`
}

type HistoryRecord struct {
	Year         int32     `json:"year"`
	GiverID      int64     `json:"giver_id"`
	GiverName    string    `json:"giver_name"`
	ReceiverID   int64     `json:"receiver_id"`
	ReceiverName string    `json:"receiver_name"`
	CreatedAt    Timestamp `json:"created_at"`
}

type GetHistoryResponse struct {
	Records []*HistoryRecord `json:"records"`
}

package api

import (
	"time"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/notify"
	"github.com/jjoniel/secretsanta/internal/service"
)

// Response shapes. IDs stay canonical in the service layer; names are only
// resolved here.

type userView struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type tokenView struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type groupView struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	OwnerID   int64   `json:"owner_id"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

type participantView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	GroupID   int64  `json:"group_id"`
	CreatedAt string `json:"created_at"`
}

type participantWithRestrictionsView struct {
	participantView
	AllowedReceivers []string `json:"allowed_receivers"`
}

type assignmentView struct {
	GiverName     string `json:"giver_name"`
	GiverEmail    string `json:"giver_email"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverEmail string `json:"receiver_email"`
}

type notificationFailureView struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type notificationsView struct {
	Attempted int                       `json:"attempted"`
	Failed    []notificationFailureView `json:"failed"`
}

type assignmentResultView struct {
	Assignments   []assignmentView   `json:"assignments"`
	Success       bool               `json:"success"`
	Message       string             `json:"message"`
	RunID         string             `json:"run_id"`
	Year          int                `json:"year"`
	Warnings      []string           `json:"warnings"`
	Notifications *notificationsView `json:"notifications,omitempty"`
}

type historyView struct {
	GiverName    string `json:"giver_name"`
	ReceiverName string `json:"receiver_name"`
	Year         int    `json:"year"`
}

func timestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, IsActive: u.IsActive, CreatedAt: timestamp(u.CreatedAt)}
}

func newGroupView(g *models.Group) groupView {
	v := groupView{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID, CreatedAt: timestamp(g.CreatedAt)}
	if g.UpdatedAt != 0 {
		updated := timestamp(g.UpdatedAt)
		v.UpdatedAt = &updated
	}
	return v
}

func newGroupViews(groups []*models.Group) []groupView {
	out := make([]groupView, len(groups))
	for i, g := range groups {
		out[i] = newGroupView(g)
	}
	return out
}

func newParticipantView(p *models.Participant) participantView {
	return participantView{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		GroupID:   p.GroupID,
		CreatedAt: timestamp(p.CreatedAt),
	}
}

func newParticipantViews(participants []*models.Participant) []participantView {
	out := make([]participantView, len(participants))
	for i, p := range participants {
		out[i] = newParticipantView(p)
	}
	return out
}

// nameResolver maps participant IDs to display names within one group.
type nameResolver map[int64]string

func newNameResolver(participants []*models.Participant) nameResolver {
	names := make(nameResolver, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	return names
}

func (n nameResolver) withRestrictions(p *models.Participant) participantWithRestrictionsView {
	allowed := make([]string, 0, len(p.AllowedReceivers))
	for _, id := range p.AllowedReceivers {
		if name, ok := n[id]; ok {
			allowed = append(allowed, name)
		}
	}
	return participantWithRestrictionsView{participantView: newParticipantView(p), AllowedReceivers: allowed}
}

func newAssignmentResultView(res *service.AssignmentResult) assignmentResultView {
	v := assignmentResultView{
		Assignments: make([]assignmentView, len(res.Assignments)),
		Success:     true,
		Message:     res.Message,
		RunID:       res.RunID,
		Year:        res.Year,
		Warnings:    res.Warnings,
	}
	if v.Warnings == nil {
		v.Warnings = []string{}
	}
	for i, a := range res.Assignments {
		v.Assignments[i] = assignmentView{
			GiverName:     a.Giver.Name,
			GiverEmail:    a.Giver.Email,
			ReceiverName:  a.Receiver.Name,
			ReceiverEmail: a.Receiver.Email,
		}
	}
	if res.Notifications != nil {
		v.Notifications = newNotificationsView(res.Notifications)
	}
	return v
}

func newNotificationsView(r *notify.Report) *notificationsView {
	v := &notificationsView{Attempted: r.Attempted, Failed: make([]notificationFailureView, len(r.Failed))}
	for i, f := range r.Failed {
		v.Failed[i] = notificationFailureView{Email: f.Email, Error: f.Err.Error()}
	}
	return v
}

func newHistoryViews(records []models.AssignmentRecord) []historyView {
	out := make([]historyView, len(records))
	for i, rec := range records {
		out[i] = historyView{GiverName: rec.GiverName, ReceiverName: rec.ReceiverName, Year: rec.Year}
	}
	return out
}

// Package rpc serves the assignment engine over Connect.
package rpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/jjoniel/secretsanta/internal/auth"
	"github.com/jjoniel/secretsanta/internal/middleware"
	"github.com/jjoniel/secretsanta/internal/service"
)

const (
	// AssignmentServiceName is the fully-qualified name of the service.
	AssignmentServiceName = "secretsanta.v1.AssignmentService"

	CreateAssignmentsProcedure = "/secretsanta.v1.AssignmentService/CreateAssignments"
	GetHistoryProcedure        = "/secretsanta.v1.AssignmentService/GetHistory"
)

// AssignmentServer implements secretsanta.v1.AssignmentService.
type AssignmentServer struct {
	assignments *service.AssignmentService
}

// NewAssignmentServer creates the RPC front of the assignment engine.
func NewAssignmentServer(assignments *service.AssignmentService) *AssignmentServer {
	return &AssignmentServer{assignments: assignments}
}

// NewAssignmentServiceHandler returns the mount path and handler for the
// service. The JSON codec is always installed; opts typically add interceptors.
func NewAssignmentServiceHandler(svc *AssignmentServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	createAssignments := connect.NewUnaryHandler(CreateAssignmentsProcedure, svc.CreateAssignments, opts...)
	getHistory := connect.NewUnaryHandler(GetHistoryProcedure, svc.GetHistory, opts...)

	return "/" + AssignmentServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case CreateAssignmentsProcedure:
			createAssignments.ServeHTTP(w, r)
		case GetHistoryProcedure:
			getHistory.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// CreateAssignments computes, stores and optionally announces a year's assignments.
func (s *AssignmentServer) CreateAssignments(ctx context.Context, req *connect.Request[CreateAssignmentsRequest]) (*connect.Response[CreateAssignmentsResponse], error) {
	msg := req.Msg
	if msg.GroupID <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id is required"))
	}

	res, err := s.assignments.CreateAssignments(ctx, middleware.GetUserID(ctx), msg.GroupID, int(msg.Year), msg.SendEmails)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := &CreateAssignmentsResponse{
		RunID:       res.RunID,
		Year:        int32(res.Year),
		Assignments: make([]*Assignment, len(res.Assignments)),
		Warnings:    res.Warnings,
		Message:     res.Message,
	}
	for i, a := range res.Assignments {
		out.Assignments[i] = &Assignment{
			GiverID:       a.Giver.ID,
			GiverName:     a.Giver.Name,
			GiverEmail:    a.Giver.Email,
			ReceiverID:    a.Receiver.ID,
			ReceiverName:  a.Receiver.Name,
			ReceiverEmail: a.Receiver.Email,
		}
	}
	if r := res.Notifications; r != nil {
		out.Notifications = &NotificationReport{Attempted: int32(r.Attempted)}
		for _, f := range r.Failed {
			out.Notifications.Failed = append(out.Notifications.Failed, &NotificationFailure{Email: f.Email, Error: f.Err.Error()})
		}
	}
	return connect.NewResponse(out), nil
}

// GetHistory returns a group's assignment records.
func (s *AssignmentServer) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	msg := req.Msg
	if msg.GroupID <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id is required"))
	}

	records, err := s.assignments.GetHistory(ctx, middleware.GetUserID(ctx), msg.GroupID, int(msg.Year))
	if err != nil {
		return nil, toConnectError(err)
	}

	out := &GetHistoryResponse{Records: make([]*HistoryRecord, len(records))}
	for i, rec := range records {
		out.Records[i] = &HistoryRecord{
			Year:         int32(rec.Year),
			GiverID:      rec.GiverID,
			GiverName:    rec.GiverName,
			ReceiverID:   rec.ReceiverID,
			ReceiverName: rec.ReceiverName,
			CreatedAt:    newTimestamp(rec.CreatedAt),
		}
	}
	return connect.NewResponse(out), nil
}

// toConnectError maps the service error taxonomy onto Connect codes. Storage
// failures become a generic internal error.
func toConnectError(err error) error {
	var (
		ve  *service.ValidationError
		bad *service.BadRequestError
		nf  *service.NotFoundError
		ue  *service.UnsatisfiableError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &bad):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &nf):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &ue), errors.Is(err, service.ErrInsufficientParticipants):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, service.ErrAlreadyAssigned):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return connect.NewError(connect.CodeUnauthenticated, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal server error"))
	}
}

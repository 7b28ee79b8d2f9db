package rpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// AssignmentServiceClient calls secretsanta.v1.AssignmentService.
type AssignmentServiceClient struct {
	createAssignments *connect.Client[CreateAssignmentsRequest, CreateAssignmentsResponse]
	getHistory        *connect.Client[GetHistoryRequest, GetHistoryResponse]
}

// NewAssignmentServiceClient creates a client for the service at baseURL,
// e.g. http://localhost:8000. It always speaks the JSON codec.
func NewAssignmentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AssignmentServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &AssignmentServiceClient{
		createAssignments: connect.NewClient[CreateAssignmentsRequest, CreateAssignmentsResponse](
			httpClient, baseURL+CreateAssignmentsProcedure, opts...),
		getHistory: connect.NewClient[GetHistoryRequest, GetHistoryResponse](
			httpClient, baseURL+GetHistoryProcedure, opts...),
	}
}

// CreateAssignments calls secretsanta.v1.AssignmentService.CreateAssignments.
func (c *AssignmentServiceClient) CreateAssignments(ctx context.Context, req *connect.Request[CreateAssignmentsRequest]) (*connect.Response[CreateAssignmentsResponse], error) {
	return c.createAssignments.CallUnary(ctx, req)
}

// GetHistory calls secretsanta.v1.AssignmentService.GetHistory.
func (c *AssignmentServiceClient) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	return c.getHistory.CallUnary(ctx, req)
}

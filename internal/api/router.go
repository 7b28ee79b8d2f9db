// Package api serves the REST interface consumed by the browser front end.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jjoniel/secretsanta/internal/auth"
	"github.com/jjoniel/secretsanta/internal/metrics"
	"github.com/jjoniel/secretsanta/internal/middleware"
	"github.com/jjoniel/secretsanta/internal/service"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Services are the application services the handlers call.
type Services struct {
	Auth         *service.AuthService
	Groups       *service.GroupService
	Participants *service.ParticipantService
	Assignments  *service.AssignmentService
}

// Options configure the router beyond the services.
type Options struct {
	JWT     *auth.JWTManager
	Metrics *metrics.Metrics

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the REST routes. CORS and request logging are applied
// by the caller around the whole server so preflight requests and the RPC
// surface get them too.
func NewRouter(svc Services, opts Options) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(opts.Metrics))

	authHandler := &AuthHandler{auth: svc.Auth}
	groupHandler := &GroupHandler{groups: svc.Groups}
	participantHandler := &ParticipantHandler{participants: svc.Participants}
	assignmentHandler := &AssignmentHandler{assignments: svc.Assignments}

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"message": "Secret Santa API", "version": Version})
	}).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Public auth routes
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/check-email/{email}", authHandler.CheckEmail).Methods(http.MethodGet)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.RequireAuthHTTP(opts.JWT))

	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet)

	// Groups
	protected.HandleFunc("/groups", groupHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/groups", groupHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/groups/{group_id:[0-9]+}", groupHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/groups/{group_id:[0-9]+}", groupHandler.Update).Methods(http.MethodPut)
	protected.HandleFunc("/groups/{group_id:[0-9]+}", groupHandler.Delete).Methods(http.MethodDelete)

	// Participants
	participants := "/groups/{group_id:[0-9]+}/participants"
	participant := participants + "/{participant_id:[0-9]+}"
	protected.HandleFunc(participants, participantHandler.List).Methods(http.MethodGet)
	protected.HandleFunc(participants, participantHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc(participants+"/bulk", participantHandler.CreateBulk).Methods(http.MethodPost)
	protected.HandleFunc(participant, participantHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc(participant, participantHandler.Update).Methods(http.MethodPut)
	protected.HandleFunc(participant, participantHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc(participant+"/restrictions", participantHandler.SetRestrictions).Methods(http.MethodPut)

	// Assignments
	assignments := "/groups/{group_id:[0-9]+}/assignments"
	protected.HandleFunc(assignments, assignmentHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc(assignments+"/history", assignmentHandler.History).Methods(http.MethodGet)
	protected.HandleFunc(assignments+"/{year:[0-9]+}", assignmentHandler.Delete).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

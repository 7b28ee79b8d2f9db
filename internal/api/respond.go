package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jjoniel/secretsanta/internal/auth"
	"github.com/jjoniel/secretsanta/internal/middleware"
	"github.com/jjoniel/secretsanta/internal/service"
)

// maxBodyBytes bounds request bodies; bulk participant lists are the largest.
const maxBodyBytes = 1 << 20

type detailMsg struct {
	Msg string `json:"msg"`
}

// jsonResponse writes v as JSON with the given status.
func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// errorResponse writes {"detail": "..."}.
func errorResponse(w http.ResponseWriter, status int, detail string) {
	jsonResponse(w, status, map[string]string{"detail": detail})
}

// validationResponse writes {"detail": [{"msg": "..."}]} with 422.
func validationResponse(w http.ResponseWriter, problems ...string) {
	details := make([]detailMsg, len(problems))
	for i, p := range problems {
		details[i] = detailMsg{Msg: p}
	}
	jsonResponse(w, http.StatusUnprocessableEntity, map[string][]detailMsg{"detail": details})
}

// writeError maps a service error onto its status code and body. Anything
// unrecognised is a 500 whose cause is only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *service.ValidationError
		bad *service.BadRequestError
		nf  *service.NotFoundError
		ue  *service.UnsatisfiableError
	)
	switch {
	case errors.As(err, &ve):
		validationResponse(w, ve.Problems...)
	case errors.As(err, &bad):
		errorResponse(w, http.StatusBadRequest, bad.Error())
	case errors.As(err, &nf):
		errorResponse(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &ue):
		errorResponse(w, http.StatusBadRequest, ue.Error())
	case errors.Is(err, service.ErrInsufficientParticipants):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAlreadyAssigned):
		errorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		errorResponse(w, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		errorResponse(w, http.StatusUnauthorized, err.Error())
	default:
		slog.Error("request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		errorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

// parseJSONBody decodes the request body into v. A malformed body is a
// validation error (422), like any other schema problem.
func parseJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var (
			syntax    *json.SyntaxError
			typeError *json.UnmarshalTypeError
		)
		switch {
		case errors.Is(err, io.EOF):
			validationResponse(w, "body: field required")
		case errors.As(err, &typeError):
			validationResponse(w, fmt.Sprintf("body.%s: must be %s", typeError.Field, typeError.Type))
		case errors.As(err, &syntax):
			validationResponse(w, "body: invalid JSON")
		default:
			validationResponse(w, "body: "+err.Error())
		}
		return false
	}
	return true
}

// pathID reads a numeric mux variable. Routes constrain these to digits, so
// a failure here is an overflow.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		validationResponse(w, "path."+name+": must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter; absent is 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		validationResponse(w, "query."+name+": must be an integer")
		return 0, false
	}
	return n, true
}

// queryBool reads an optional boolean query parameter; absent is false.
func queryBool(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		validationResponse(w, "query."+name+": must be a boolean")
		return false, false
	}
	return b, true
}

package api

import (
	"mime"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jjoniel/secretsanta/internal/middleware"
	"github.com/jjoniel/secretsanta/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newUserView(user))
}

// Login handles POST /api/auth/login. It accepts the OAuth2 password form
// (username, password) the front end sends, or the same fields as JSON.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var email, password string

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req credentialsRequest
		if !parseJSONBody(w, r, &req) {
			return
		}
		email, password = req.Username, req.Password
		if email == "" {
			email = req.Email
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			validationResponse(w, "body: invalid form")
			return
		}
		email, password = r.PostForm.Get("username"), r.PostForm.Get("password")
	}

	var problems []string
	if email == "" {
		problems = append(problems, "username: field required")
	}
	if password == "" {
		problems = append(problems, "password: field required")
	}
	if len(problems) > 0 {
		validationResponse(w, problems...)
		return
	}

	token, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tokenView{AccessToken: token, TokenType: "bearer"})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newUserView(user))
}

// CheckEmail handles GET /api/auth/check-email/{email}
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	exists, err := h.auth.EmailExists(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"exists": exists})
}

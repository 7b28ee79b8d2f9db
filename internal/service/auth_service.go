package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jjoniel/secretsanta/internal/auth"
	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage"
)

// AuthService registers users and issues access tokens.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger,
	}
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	s.logger.Info("Register request", "email", email)

	var problems []string
	email, problems = checkEmail("email", email, problems)
	if err := s.authenticator.ValidateCredential(password); err != nil {
		problems = append(problems, "password: "+err.Error())
	}
	if len(problems) > 0 {
		return nil, invalid(problems...)
	}

	user, err := s.authenticator.Register(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			s.logger.Warn("Registration rejected", "email", email, "error", err)
			return nil, &BadRequestError{Err: ErrEmailExists}
		}
		s.logger.Error("Registration failed", "email", email, "error", err)
		return nil, err
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates a user and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	s.logger.Info("Login request", "email", email)

	normalized, ok := normalizeEmail(email)
	if !ok || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.authenticator.Authenticate(ctx, normalized, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("Login failed", "email", normalized)
			return "", ErrInvalidCredentials
		}
		s.logger.Error("Login failed", "email", normalized, "error", err)
		return "", err
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return "", err
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return token, nil
}

// CurrentUser returns the authenticated user's account. A token for a
// deleted or disabled user is treated as invalid.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		s.logger.Error("CurrentUser failed", "user_id", userID, "error", err)
		return nil, err
	}
	if !user.IsActive {
		return nil, auth.ErrInvalidToken
	}
	return user, nil
}

// EmailExists reports whether an account uses email.
func (s *AuthService) EmailExists(ctx context.Context, email string) (bool, error) {
	normalized, ok := normalizeEmail(email)
	if !ok {
		return false, nil
	}
	_, err := s.users.GetUserByEmail(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package services

import (
	"context"
	"errors"

	"camwatch/internal/auth"
	"camwatch/internal/middleware"
)

// LoginPayload is the body of POST /auth/login.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuthStatus describes the authentication state of a request.
type AuthStatus struct {
	Enabled       bool    `json:"enabled"`
	Authenticated bool    `json:"authenticated"`
	Username      *string `json:"username,omitempty"`
}

// UnauthorizedError is returned when a login is rejected.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// AuthService implements operator login
type AuthService struct {
	authenticator *auth.Authenticator
}

// NewAuthService creates a new auth service
func NewAuthService(authenticator *auth.Authenticator) *AuthService {
	return &AuthService{authenticator: authenticator}
}

// Login authenticates the operator and returns a JWT token
func (a *AuthService) Login(ctx context.Context, payload *LoginPayload) (*LoginResult, error) {
	token, expiresAt, err := a.authenticator.Authenticate(payload.Username, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return nil, &UnauthorizedError{Message: "Invalid username or password"}
		case errors.Is(err, auth.ErrAuthDisabled):
			return nil, &UnauthorizedError{Message: "Authentication is disabled"}
		}
		return nil, err
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// Status returns the current authentication status
func (a *AuthService) Status(ctx context.Context) *AuthStatus {
	st := &AuthStatus{Enabled: a.authenticator.IsEnabled()}

	// Claims are only present when the middleware accepted a token
	if claims := middleware.GetUserFromContext(ctx); claims != nil {
		st.Authenticated = true
		st.Username = &claims.Username
	}
	return st
}

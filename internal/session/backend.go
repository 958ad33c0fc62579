package session

import (
	"context"
	"errors"
	"time"

	"github.com/sunlease/portal/internal/identity"
)

// ErrUnauthenticated reports an invalid or expired bearer token.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// Credentials are submitted on login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse is what a backend returns for valid credentials.
type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      *identity.Identity `json:"user"`
}

// LoginError is a credential failure with a message safe to show users.
type LoginError struct {
	Message string
}

func (e *LoginError) Error() string {
	return "session: login rejected: " + e.Message
}

// Backend is the authentication service the session store depends on.
type Backend interface {
	Login(ctx context.Context, creds Credentials) (LoginResponse, error)
	Verify(ctx context.Context, token string) (*identity.Identity, error)
	Logout(ctx context.Context, token string) error
}

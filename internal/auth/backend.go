package auth

import (
	"context"
	"errors"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/session"
	"github.com/sunlease/portal/internal/shared"
)

// InvalidCredentialsMessage is shown to users whose login was rejected.
const InvalidCredentialsMessage = "Invalid email or password"

// LocalBackend serves the session store from the in-process service.
type LocalBackend struct {
	service *Service
}

// NewLocalBackend wraps service as a session.Backend.
func NewLocalBackend(service *Service) *LocalBackend {
	return &LocalBackend{service: service}
}

// Login implements session.Backend.
func (b *LocalBackend) Login(ctx context.Context, creds session.Credentials) (session.LoginResponse, error) {
	sess, err := b.service.Login(ctx, creds.Email, creds.Password, "", "")
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			return session.LoginResponse{}, &session.LoginError{Message: InvalidCredentialsMessage}
		}
		return session.LoginResponse{}, err
	}
	return session.LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: sess.User}, nil
}

// Verify implements session.Backend.
func (b *LocalBackend) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	id, err := b.service.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			return nil, session.ErrUnauthenticated
		}
		return nil, err
	}
	return id, nil
}

// Logout implements session.Backend.
func (b *LocalBackend) Logout(ctx context.Context, token string) error {
	return b.service.Logout(ctx, token)
}

var _ session.Backend = (*LocalBackend)(nil)
